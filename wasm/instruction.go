package wasm

import (
	"bytes"
)

// Instruction is a single instruction with its immediate, if any.
type Instruction struct {
	Imm    interface{}
	Opcode byte
}

// CallImm holds the function index for call instruction.
type CallImm struct {
	FuncIdx uint32
}

// LocalImm holds the local index for local.get, local.set, local.tee.
type LocalImm struct {
	LocalIdx uint32
}

// I32Imm holds the constant value for i32.const instruction.
type I32Imm struct {
	Value int32
}

// I64Imm holds the constant value for i64.const instruction.
type I64Imm struct {
	Value int64
}

// EncodeInstructionTo writes a single instruction to buf. Opcodes without an
// immediate are written as a single byte.
func EncodeInstructionTo(buf *bytes.Buffer, instr *Instruction) {
	buf.WriteByte(instr.Opcode)

	switch instr.Opcode {
	case OpCall:
		imm := instr.Imm.(CallImm)
		WriteLEB128u(buf, imm.FuncIdx)

	case OpLocalGet, OpLocalSet, OpLocalTee:
		imm := instr.Imm.(LocalImm)
		WriteLEB128u(buf, imm.LocalIdx)

	case OpI32Const:
		imm := instr.Imm.(I32Imm)
		WriteLEB128s(buf, imm.Value)

	case OpI64Const:
		imm := instr.Imm.(I64Imm)
		WriteLEB128s64(buf, imm.Value)
	}
}

// EncodeInstructionsTo writes multiple instructions to the provided buffer.
func EncodeInstructionsTo(buf *bytes.Buffer, instrs []Instruction) {
	for i := range instrs {
		EncodeInstructionTo(buf, &instrs[i])
	}
}

// EncodeInstructions encodes instructions to bytes
func EncodeInstructions(instrs []Instruction) []byte {
	var buf bytes.Buffer
	buf.Grow(len(instrs) * 3)
	EncodeInstructionsTo(&buf, instrs)
	return buf.Bytes()
}

// Body encodes instrs followed by the end opcode, the shape every function
// body takes.
func Body(instrs ...Instruction) []byte {
	var buf bytes.Buffer
	EncodeInstructionsTo(&buf, instrs)
	buf.WriteByte(OpEnd)
	return buf.Bytes()
}

// Call returns a call instruction.
func Call(funcIdx uint32) Instruction {
	return Instruction{Opcode: OpCall, Imm: CallImm{FuncIdx: funcIdx}}
}

// LocalGet returns a local.get instruction.
func LocalGet(idx uint32) Instruction {
	return Instruction{Opcode: OpLocalGet, Imm: LocalImm{LocalIdx: idx}}
}

// I32Const returns an i32.const instruction.
func I32Const(v int32) Instruction {
	return Instruction{Opcode: OpI32Const, Imm: I32Imm{Value: v}}
}

// I64Const returns an i64.const instruction.
func I64Const(v int64) Instruction {
	return Instruction{Opcode: OpI64Const, Imm: I64Imm{Value: v}}
}

// Op returns an instruction with no immediate.
func Op(opcode byte) Instruction {
	return Instruction{Opcode: opcode}
}
