// Package wasm encodes core WebAssembly modules.
//
// Guests, fixtures and the example CLI build modules as plain values and
// encode them to the binary format accepted by the wazero engine:
//
//	m := &wasm.Module{}
//	inc := m.AddImportFunc("demo:counter/counter@^1.0.0", "increment", wasm.FuncType{Results: []wasm.ValType{wasm.ValI32}})
//	bump := m.AddFunc(wasm.FuncType{Results: []wasm.ValType{wasm.ValI32}}, nil, wasm.EncodeInstructions([]wasm.Instruction{
//	    {Opcode: wasm.OpCall, Imm: wasm.CallImm{FuncIdx: inc}},
//	    {Opcode: wasm.OpEnd},
//	}))
//	m.ExportFunc("bump", bump)
//	data := m.Encode()
//
// Only the MVP function, memory, export, start and custom sections are
// supported. Decoding is left to the engine.
package wasm
