package linker

import (
	"go.uber.org/zap"

	"github.com/wippyai/wasm-trampoline/errors"
)

// Resolve binds req to the highest registration in snap that satisfies its
// requirement. It is a pure function of its inputs.
func Resolve[C any](req ImportRequest, snap *Snapshot[C]) (*Registration[C], error) {
	candidates := snap.Candidates(req.Namespace, req.Name)

	// candidates are ascending; the first match from the top is the highest
	for i := len(candidates) - 1; i >= 0; i-- {
		if req.Requirement.Matches(candidates[i].Key.Version) {
			Logger().Debug("resolved",
				zap.Stringer("import", req),
				zap.Stringer("key", candidates[i].Key))
			return candidates[i], nil
		}
	}

	available := make([]Version, len(candidates))
	for i, c := range candidates {
		available[i] = c.Key.Version
	}
	return nil, &UnresolvedError{
		Request:   req,
		Available: available,
		Nearest:   nearest(available, req.Requirement.Version),
	}
}

// nearest returns the closest available version below want and the closest
// above it, in that order, omitting either if absent.
func nearest(available []Version, want Version) []Version {
	var below, above *Version
	for i := range available {
		v := &available[i]
		switch c := v.Compare(want); {
		case c < 0:
			below = v
		case c > 0 && above == nil:
			above = v
		case c == 0 && above == nil:
			// equal but rejected, e.g. a pre-release under a caret range
			above = v
		}
	}

	var out []Version
	if below != nil {
		out = append(out, *below)
	}
	if above != nil {
		out = append(out, *above)
	}
	return out
}

// UnresolvedError reports an import no registration satisfies. It matches
// errors.ErrImportUnsatisfied, and errors.ErrVersionIncompatible when
// versions of the interface exist but none is compatible.
type UnresolvedError struct {
	Request   ImportRequest
	Available []Version
	Nearest   []Version
}

func (e *UnresolvedError) Error() string {
	msg := "import unsatisfied: " + e.Request.Target() + " " + e.Request.Requirement.String()
	if len(e.Available) == 0 {
		return msg + ": no implementation registered"
	}
	msg += ": no compatible version"
	if len(e.Nearest) > 0 {
		msg += " (nearest:"
		for _, v := range e.Nearest {
			msg += " " + v.String()
		}
		msg += ")"
	}
	return msg
}

// Is reports whether target is the import_unsatisfied or, when candidates
// exist, the version_incompatible kind.
func (e *UnresolvedError) Is(target error) bool {
	t, ok := target.(*errors.Error)
	if !ok || (t.Phase != "" && t.Phase != errors.PhaseResolve) {
		return false
	}
	switch t.Kind {
	case errors.KindImportUnsatisfied:
		return true
	case errors.KindVersionIncompatible:
		return len(e.Available) > 0
	}
	return false
}

// VersionIncompatible reports whether candidates existed under the
// requested namespace and name.
func (e *UnresolvedError) VersionIncompatible() bool {
	return len(e.Available) > 0
}
