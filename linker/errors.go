package linker

import (
	"strconv"
	"strings"

	"github.com/wippyai/wasm-trampoline/errors"
)

// InstantiationError reports the import slot that stopped an instantiation.
// Cause carries the underlying error, typically an *UnresolvedError.
type InstantiationError struct {
	Cause      error
	Phase      errors.Phase
	ImportPath string
	Reason     string
	Slot       int
}

// Error renders "instantiate import 1 store@^2.0.0#get (resolve): reason: cause".
func (e *InstantiationError) Error() string {
	var b strings.Builder
	b.WriteString("instantiate")

	if e.Slot >= 0 {
		b.WriteString(" import ")
		b.WriteString(strconv.Itoa(e.Slot))
	}
	if e.ImportPath != "" {
		b.WriteByte(' ')
		b.WriteString(e.ImportPath)
	}
	if e.Phase != "" {
		b.WriteString(" (")
		b.WriteString(string(e.Phase))
		b.WriteByte(')')
	}
	for _, part := range []string{e.Reason, causeText(e.Cause)} {
		if part != "" {
			b.WriteString(": ")
			b.WriteString(part)
		}
	}
	return b.String()
}

func (e *InstantiationError) Unwrap() error {
	return e.Cause
}

func causeText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func slotError(phase errors.Phase, slot int, importPath, reason string, cause error) *InstantiationError {
	return &InstantiationError{
		Phase:      phase,
		Slot:       slot,
		ImportPath: importPath,
		Reason:     reason,
		Cause:      cause,
	}
}
