package linker

import (
	"strings"

	"github.com/wippyai/wasm-trampoline/errors"
)

// InterfaceKey identifies one registered implementation.
type InterfaceKey struct {
	Namespace string
	Name      string
	Version   Version
}

// Key builds an InterfaceKey from a version literal. It panics on an invalid
// version and is meant for registrations written in code.
func Key(namespace, name, version string) InterfaceKey {
	return InterfaceKey{Namespace: namespace, Name: name, Version: MustParseVersion(version)}
}

// String returns "namespace@version#name".
func (k InterfaceKey) String() string {
	return k.Namespace + "@" + k.Version.String() + "#" + k.Name
}

// ParseKey parses "namespace@version#name".
func ParseKey(path string) (InterfaceKey, error) {
	ns, ver, name, err := splitFuncPath(path)
	if err != nil {
		return InterfaceKey{}, err
	}
	if ver == "" {
		return InterfaceKey{}, errors.InvalidInput(errors.PhaseParse, path, "interface key requires a version")
	}
	v, ok := ParseVersion(ver)
	if !ok {
		return InterfaceKey{}, errors.InvalidInput(errors.PhaseParse, path, "invalid version "+ver)
	}
	return InterfaceKey{Namespace: ns, Name: name, Version: v}, nil
}

// ImportRequest is one import declared by a component.
type ImportRequest struct {
	Namespace   string
	Name        string
	Requirement Requirement
}

// String returns "namespace@requirement#name", or "namespace#name" for an
// unconstrained request.
func (r ImportRequest) String() string {
	if r.Requirement.Kind == RequireAny {
		return r.Namespace + "#" + r.Name
	}
	return r.Namespace + "@" + r.Requirement.String() + "#" + r.Name
}

// Target returns "namespace.name", the requirement-free form used in
// diagnostics.
func (r ImportRequest) Target() string {
	return r.Namespace + "." + r.Name
}

// ParseImport parses "namespace@requirement#name" or "namespace#name".
func ParseImport(path string) (ImportRequest, error) {
	ns, ver, name, err := splitFuncPath(path)
	if err != nil {
		return ImportRequest{}, err
	}
	return NewImportRequest(ns, name, ver)
}

// NewImportRequest builds a request from its parts; requirement uses the
// ParseRequirement grammar.
func NewImportRequest(namespace, name, requirement string) (ImportRequest, error) {
	if namespace == "" || name == "" {
		return ImportRequest{}, errors.InvalidInput(errors.PhaseParse, namespace+"#"+name, "namespace and name are required")
	}
	req, err := ParseRequirement(requirement)
	if err != nil {
		return ImportRequest{}, err
	}
	return ImportRequest{Namespace: namespace, Name: name, Requirement: req}, nil
}

// splitFuncPath splits "ns@ver#name" into its parts. The version is optional.
func splitFuncPath(path string) (namespace, version, name string, err error) {
	base, name, ok := strings.Cut(path, "#")
	if !ok || base == "" || name == "" {
		return "", "", "", errors.InvalidInput(errors.PhaseParse, path, "expected namespace[@version]#name")
	}
	if idx := strings.LastIndexByte(base, '@'); idx >= 0 {
		return base[:idx], base[idx+1:], name, nil
	}
	return base, "", name, nil
}
