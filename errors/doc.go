// Package errors provides the structured error type shared by the linker and
// its engine adapters.
//
// Errors are categorized by Phase (where the error occurred) and Kind (what
// went wrong). An Error may name the interface key or import path it concerns.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseBuild, errors.KindDuplicateRegistration).
//		Key("demo:counter/counter@1.0.0#increment").
//		Detail("already registered").
//		Build()
//
// Kind sentinels match any phase, so callers can test categories directly:
//
//	if errors.Is(err, errors.ErrImportUnsatisfied) { ... }
package errors
