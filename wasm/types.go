package wasm

// Module is a core WebAssembly module ready to be encoded.
type Module struct {
	Start          *uint32
	Types          []FuncType
	Imports        []Import
	Funcs          []uint32 // Type indices for declared functions
	Memories       []MemoryType
	Exports        []Export
	Code           []FuncBody
	CustomSections []CustomSection
}

// FuncType represents a WebAssembly function signature with parameter and result types.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// ValType represents a WebAssembly value type.
type ValType byte

func (v ValType) String() string {
	switch v {
	case ValI32:
		return "i32"
	case ValI64:
		return "i64"
	case ValF32:
		return "f32"
	case ValF64:
		return "f64"
	default:
		return "unknown"
	}
}

// Import represents an imported function or memory.
type Import struct {
	Desc   ImportDesc
	Module string
	Name   string
}

// ImportDesc describes an imported item.
// Kind uses KindFunc or KindMemory.
type ImportDesc struct {
	Memory  *MemoryType
	TypeIdx uint32
	Kind    byte
}

// MemoryType describes a linear memory with size limits.
type MemoryType struct {
	Limits Limits
}

// Limits describes size constraints for memories, in pages.
type Limits struct {
	Max *uint64
	Min uint64
}

// Export describes an exported item.
type Export struct {
	Name string
	Kind byte
	Idx  uint32
}

// FuncBody represents a function's local declarations and bytecode.
type FuncBody struct {
	Locals []LocalEntry
	Code   []byte // Raw code bytes including end opcode
}

// LocalEntry represents a group of local variables with the same type.
type LocalEntry struct {
	Count   uint32
	ValType ValType
}

// CustomSection holds a named custom section's data.
type CustomSection struct {
	Name string
	Data []byte
}

// NumImportedFuncs returns the number of imported functions
func (m *Module) NumImportedFuncs() int {
	count := 0
	for _, imp := range m.Imports {
		if imp.Desc.Kind == KindFunc {
			count++
		}
	}
	return count
}

// AddType adds a function type and returns its index, reusing existing if equal
func (m *Module) AddType(ft FuncType) uint32 {
	for i, t := range m.Types {
		if typesEqual(t, ft) {
			return uint32(i)
		}
	}
	idx := uint32(len(m.Types))
	m.Types = append(m.Types, ft)
	return idx
}

// AddImportFunc appends a function import and returns its function index.
// Function imports take the lowest indices, so every import must be added
// before the first AddFunc.
func (m *Module) AddImportFunc(module, name string, ft FuncType) uint32 {
	if len(m.Funcs) > 0 {
		panic("wasm: function import " + module + "." + name + " added after a function body")
	}
	m.Imports = append(m.Imports, Import{
		Module: module,
		Name:   name,
		Desc:   ImportDesc{Kind: KindFunc, TypeIdx: m.AddType(ft)},
	})
	return uint32(m.NumImportedFuncs() - 1)
}

// AddFunc declares a function with the given body and returns its index.
func (m *Module) AddFunc(ft FuncType, locals []LocalEntry, code []byte) uint32 {
	m.Funcs = append(m.Funcs, m.AddType(ft))
	m.Code = append(m.Code, FuncBody{Locals: locals, Code: code})
	return uint32(m.NumImportedFuncs() + len(m.Funcs) - 1)
}

// ExportFunc exports the function at idx under name.
func (m *Module) ExportFunc(name string, idx uint32) {
	m.Exports = append(m.Exports, Export{Name: name, Kind: KindFunc, Idx: idx})
}

func typesEqual(a, b FuncType) bool {
	if len(a.Params) != len(b.Params) || len(a.Results) != len(b.Results) {
		return false
	}
	for i := range a.Params {
		if a.Params[i] != b.Params[i] {
			return false
		}
	}
	for i := range a.Results {
		if a.Results[i] != b.Results[i] {
			return false
		}
	}
	return true
}
