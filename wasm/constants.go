package wasm

// WebAssembly binary format magic number and version.
const (
	// Magic is the WebAssembly binary magic number ("\0asm" in little-endian).
	Magic uint32 = 0x6D736100

	// Version is the supported WebAssembly binary format version.
	Version uint32 = 0x01
)

// Section IDs. Sections are written in increasing order by ID, custom
// sections last.
const (
	SectionCustom   byte = 0
	SectionType     byte = 1
	SectionImport   byte = 2
	SectionFunction byte = 3
	SectionMemory   byte = 5
	SectionExport   byte = 7
	SectionStart    byte = 8
	SectionCode     byte = 10
)

// Import/Export descriptor kinds.
const (
	KindFunc   byte = 0
	KindMemory byte = 2
)

// Value type encodings.
const (
	ValI32 ValType = 0x7F
	ValI64 ValType = 0x7E
	ValF32 ValType = 0x7D
	ValF64 ValType = 0x7C
)

// FuncTypeByte prefixes every function type in the type section.
const FuncTypeByte byte = 0x60

// Limits flags
const (
	LimitsHasMax byte = 0x01
)

// Control flow opcodes
const (
	OpUnreachable byte = 0x00
	OpNop         byte = 0x01
	OpEnd         byte = 0x0B
	OpReturn      byte = 0x0F
	OpCall        byte = 0x10
)

// Parametric opcodes
const (
	OpDrop byte = 0x1A
)

// Variable access opcodes
const (
	OpLocalGet byte = 0x20
	OpLocalSet byte = 0x21
	OpLocalTee byte = 0x22
)

// Constant opcodes
const (
	OpI32Const byte = 0x41
	OpI64Const byte = 0x42
)

// Numeric opcodes
const (
	OpI32Add byte = 0x6A
	OpI32Sub byte = 0x6B
	OpI32Mul byte = 0x6C
	OpI64Add byte = 0x7C
	OpI64Sub byte = 0x7D
	OpI64Mul byte = 0x7E
)
