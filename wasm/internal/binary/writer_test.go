package binary

import (
	"bytes"
	"testing"
)

func TestWriterU32(t *testing.T) {
	tests := []struct {
		want  []byte
		value uint32
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x7f}, 127},
		{[]byte{0x80, 0x01}, 128},
		{[]byte{0xff, 0xff, 0xff, 0xff, 0x0f}, 0xFFFFFFFF},
	}

	for _, tt := range tests {
		w := NewWriter()
		w.WriteU32(tt.value)
		if !bytes.Equal(w.Bytes(), tt.want) {
			t.Errorf("WriteU32(%d) = %v, want %v", tt.value, w.Bytes(), tt.want)
		}
	}
}

func TestWriterNameAndLE(t *testing.T) {
	w := NewWriter()
	w.WriteName("ab")
	w.WriteU32LE(0x01020304)
	w.Byte(0xff)
	w.WriteBytes([]byte{0x01, 0x02})

	want := []byte{0x02, 'a', 'b', 0x04, 0x03, 0x02, 0x01, 0xff, 0x01, 0x02}
	if !bytes.Equal(w.Bytes(), want) {
		t.Errorf("got %v, want %v", w.Bytes(), want)
	}
	if w.Len() != len(want) {
		t.Errorf("Len = %d, want %d", w.Len(), len(want))
	}
}
