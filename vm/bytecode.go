package vm

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode represents a single bytecode instruction.
// All multi-byte operands are big-endian.
type Opcode byte

// Stack Operations
const (
	OpNOP   Opcode = 0x00 // no operation
	OpDrop  Opcode = 0x01 // discard top of stack
	OpEnter Opcode = 0x02 // reserve top-level local slots (32-bit count)
	OpLeave Opcode = 0x03 // release top-level local slots below TOS (32-bit count)
)

// Push Constants
const (
	OpVoid  Opcode = 0x10 // push void
	OpTrue  Opcode = 0x11 // push true
	OpFalse Opcode = 0x12 // push false
	OpInt1  Opcode = 0x13 // push integer (8-bit unsigned)
	OpInt2  Opcode = 0x14 // push integer (16-bit unsigned)
	OpInt8  Opcode = 0x15 // push integer (64-bit signed)
	OpReal  Opcode = 0x16 // push real (float64 bits)
	OpPtr   Opcode = 0x17 // push function pointer (32-bit address)
	OpNat   Opcode = 0x18 // push native reference (32-bit index)
	OpList  Opcode = 0x19 // push new empty list
)

// Variable Operations
const (
	OpLoad1        Opcode = 0x20 // push local (8-bit slot)
	OpLoad2        Opcode = 0x21 // push local (16-bit slot)
	OpLoad4        Opcode = 0x22 // push local (32-bit slot)
	OpStore1       Opcode = 0x23 // store TOS into local, keep TOS (8-bit slot)
	OpStore2       Opcode = 0x24 // store TOS into local, keep TOS (16-bit slot)
	OpStore4       Opcode = 0x25 // store TOS into local, keep TOS (32-bit slot)
	OpLoadGlobal1  Opcode = 0x26 // push global (8-bit index)
	OpLoadGlobal2  Opcode = 0x27 // push global (16-bit index)
	OpLoadGlobal4  Opcode = 0x28 // push global (32-bit index)
	OpStoreGlobal1 Opcode = 0x29 // store TOS into global, keep TOS (8-bit index)
	OpStoreGlobal2 Opcode = 0x2A // store TOS into global, keep TOS (16-bit index)
	OpStoreGlobal4 Opcode = 0x2B // store TOS into global, keep TOS (32-bit index)
)

// Arithmetic
const (
	OpAdd Opcode = 0x30 // numeric add, or list append when left is a list
	OpSub Opcode = 0x31
	OpMul Opcode = 0x32
	OpDiv Opcode = 0x33
	OpMod Opcode = 0x34
	OpNeg Opcode = 0x35
	OpNot Opcode = 0x36 // logical not on booleans, bitwise not on integers
	OpInc Opcode = 0x37
	OpDec Opcode = 0x38
)

// Comparison
const (
	OpEq Opcode = 0x40
	OpNe Opcode = 0x41
	OpLt Opcode = 0x42
	OpGt Opcode = 0x43
	OpLe Opcode = 0x44
	OpGe Opcode = 0x45
)

// List Access
const (
	OpGet Opcode = 0x48 // list, index -> element
	OpSet Opcode = 0x49 // list, index, value -> value
)

// Control Flow
//
// Every jump occupies five bytes. The 2-byte forms pad the remainder so a
// reserved placeholder can be patched to either width in place.
const (
	OpJump2      Opcode = 0x50 // jump (16-bit absolute address, 2 bytes padding)
	OpJump4      Opcode = 0x51 // jump (32-bit absolute address)
	OpJumpFalse2 Opcode = 0x52 // pop boolean, jump if false (16-bit, padded)
	OpJumpFalse4 Opcode = 0x53 // pop boolean, jump if false (32-bit)
	OpJumpTrue2  Opcode = 0x54 // pop boolean, jump if true (16-bit, padded)
	OpJumpTrue4  Opcode = 0x55 // pop boolean, jump if true (32-bit)
)

// Calls
const (
	OpCall   Opcode = 0x60 // call callee below argc arguments (8-bit argc)
	OpReturn Opcode = 0x61 // return TOS from the current frame
)

// FunctionHeaderSize is the width of the header at every function address:
// the declared argument count followed by the 32-bit count of extra slots.
const FunctionHeaderSize = 5

// JumpSize is the width of every jump instruction and jump placeholder.
const JumpSize = 5

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name         string // human-readable name
	OperandBytes int    // number of operand bytes, padding included
	StackEffect  int    // net effect on stack (-1 = variable)
}

// opcodeTable maps opcodes to their metadata.
var opcodeTable = map[Opcode]OpcodeInfo{
	// Stack operations
	OpNOP:   {"NOP", 0, 0},
	OpDrop:  {"DROP", 0, -1},
	OpEnter: {"ENTER", 4, -1},
	OpLeave: {"LEAVE", 4, -1},

	// Push constants
	OpVoid:  {"VOID", 0, 1},
	OpTrue:  {"TRUE", 0, 1},
	OpFalse: {"FALSE", 0, 1},
	OpInt1:  {"INT1", 1, 1},
	OpInt2:  {"INT2", 2, 1},
	OpInt8:  {"INT8", 8, 1},
	OpReal:  {"REAL", 8, 1},
	OpPtr:   {"PTR", 4, 1},
	OpNat:   {"NAT", 4, 1},
	OpList:  {"LIST", 0, 1},

	// Variables
	OpLoad1:        {"LD1", 1, 1},
	OpLoad2:        {"LD2", 2, 1},
	OpLoad4:        {"LD4", 4, 1},
	OpStore1:       {"ST1", 1, 0},
	OpStore2:       {"ST2", 2, 0},
	OpStore4:       {"ST4", 4, 0},
	OpLoadGlobal1:  {"GL1", 1, 1},
	OpLoadGlobal2:  {"GL2", 2, 1},
	OpLoadGlobal4:  {"GL4", 4, 1},
	OpStoreGlobal1: {"GS1", 1, 0},
	OpStoreGlobal2: {"GS2", 2, 0},
	OpStoreGlobal4: {"GS4", 4, 0},

	// Arithmetic
	OpAdd: {"ADD", 0, -1},
	OpSub: {"SUB", 0, -1},
	OpMul: {"MUL", 0, -1},
	OpDiv: {"DIV", 0, -1},
	OpMod: {"MOD", 0, -1},
	OpNeg: {"NEG", 0, 0},
	OpNot: {"NOT", 0, 0},
	OpInc: {"INC", 0, 0},
	OpDec: {"DEC", 0, 0},

	// Comparison
	OpEq: {"EQ", 0, -1},
	OpNe: {"NE", 0, -1},
	OpLt: {"LT", 0, -1},
	OpGt: {"GT", 0, -1},
	OpLe: {"LE", 0, -1},
	OpGe: {"GE", 0, -1},

	// Lists
	OpGet: {"GET", 0, -1},
	OpSet: {"SET", 0, -2},

	// Control flow
	OpJump2:      {"JP2", 4, 0},
	OpJump4:      {"JP4", 4, 0},
	OpJumpFalse2: {"JF2", 4, -1},
	OpJumpFalse4: {"JF4", 4, -1},
	OpJumpTrue2:  {"JT2", 4, -1},
	OpJumpTrue4:  {"JT4", 4, -1},

	// Calls
	OpCall:   {"CALL", 1, -1},
	OpReturn: {"RET", 0, -1},
}

// Info returns the metadata for an opcode.
func (op Opcode) Info() OpcodeInfo {
	if info, ok := opcodeTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN_%02X", byte(op)), OperandBytes: 0, StackEffect: 0}
}

// Name returns the human-readable name for an opcode.
func (op Opcode) Name() string {
	return op.Info().Name
}

// OperandBytes returns the number of operand bytes for an opcode.
func (op Opcode) OperandBytes() int {
	return op.Info().OperandBytes
}

// Width returns the full encoded width of the instruction.
func (op Opcode) Width() uint32 {
	return uint32(1 + op.OperandBytes())
}

// Known reports whether op is a defined instruction.
func (op Opcode) Known() bool {
	_, ok := opcodeTable[op]
	return ok
}

// String implements the Stringer interface.
func (op Opcode) String() string {
	return op.Name()
}

// ---------------------------------------------------------------------------
// Operand fetching
// ---------------------------------------------------------------------------

// fetchU8 reads the byte at offset, or fails with ErrOpcodeFetch.
func fetchU8(code []byte, offset uint32) (uint8, error) {
	if uint64(offset) >= uint64(len(code)) {
		return 0, ErrOpcodeFetch
	}
	return code[offset], nil
}

func fetchU16(code []byte, offset uint32) (uint16, error) {
	if uint64(offset)+2 > uint64(len(code)) {
		return 0, ErrOpcodeFetch
	}
	return binary.BigEndian.Uint16(code[offset:]), nil
}

func fetchU32(code []byte, offset uint32) (uint32, error) {
	if uint64(offset)+4 > uint64(len(code)) {
		return 0, ErrOpcodeFetch
	}
	return binary.BigEndian.Uint32(code[offset:]), nil
}

func fetchU64(code []byte, offset uint32) (uint64, error) {
	if uint64(offset)+8 > uint64(len(code)) {
		return 0, ErrOpcodeFetch
	}
	return binary.BigEndian.Uint64(code[offset:]), nil
}

// fetchIndex reads a 1, 2 or 4 byte unsigned operand.
func fetchIndex(code []byte, offset uint32, width int) (uint32, error) {
	switch width {
	case 1:
		v, err := fetchU8(code, offset)
		return uint32(v), err
	case 2:
		v, err := fetchU16(code, offset)
		return uint32(v), err
	default:
		return fetchU32(code, offset)
	}
}

// checkedAdd returns a+b, or ErrAddressOverflow when the sum leaves the
// 32-bit address space.
func checkedAdd(a, b uint32) (uint32, error) {
	sum := uint64(a) + uint64(b)
	if sum > math.MaxUint32 {
		return 0, ErrAddressOverflow
	}
	return uint32(sum), nil
}

// ---------------------------------------------------------------------------
// Disassembly
// ---------------------------------------------------------------------------

// DisassembleInstruction renders the instruction at pc and returns the
// address of the next one.
func DisassembleInstruction(code []byte, pc uint32) (string, uint32) {
	op := Opcode(code[pc])
	info := op.Info()
	if !op.Known() {
		return fmt.Sprintf("%04d  %s", pc, info.Name), pc + 1
	}
	next := pc + op.Width()
	if uint64(next) > uint64(len(code)) {
		return fmt.Sprintf("%04d  %s <truncated>", pc, info.Name), uint32(len(code))
	}
	operand := pc + 1

	switch op {
	case OpInt1, OpLoad1, OpStore1, OpLoadGlobal1, OpStoreGlobal1:
		return fmt.Sprintf("%04d  %s %d", pc, info.Name, code[operand]), next

	case OpCall:
		return fmt.Sprintf("%04d  %s argc=%d", pc, info.Name, code[operand]), next

	case OpInt2, OpLoad2, OpStore2, OpLoadGlobal2, OpStoreGlobal2:
		return fmt.Sprintf("%04d  %s %d", pc, info.Name, binary.BigEndian.Uint16(code[operand:])), next

	case OpLoad4, OpStore4, OpLoadGlobal4, OpStoreGlobal4, OpNat, OpEnter, OpLeave:
		return fmt.Sprintf("%04d  %s %d", pc, info.Name, binary.BigEndian.Uint32(code[operand:])), next

	case OpPtr:
		return fmt.Sprintf("%04d  %s @%04d", pc, info.Name, binary.BigEndian.Uint32(code[operand:])), next

	case OpInt8:
		return fmt.Sprintf("%04d  %s %d", pc, info.Name, int64(binary.BigEndian.Uint64(code[operand:]))), next

	case OpReal:
		f := math.Float64frombits(binary.BigEndian.Uint64(code[operand:]))
		return fmt.Sprintf("%04d  %s %g", pc, info.Name, f), next

	case OpJump2, OpJumpFalse2, OpJumpTrue2:
		return fmt.Sprintf("%04d  %s -> %04d", pc, info.Name, binary.BigEndian.Uint16(code[operand:])), next

	case OpJump4, OpJumpFalse4, OpJumpTrue4:
		return fmt.Sprintf("%04d  %s -> %04d", pc, info.Name, binary.BigEndian.Uint32(code[operand:])), next

	default:
		return fmt.Sprintf("%04d  %s", pc, info.Name), next
	}
}

// Disassemble returns a full listing of code. Functions maps body addresses
// to names; the header at each of those addresses is decoded instead of
// being read as instructions.
func Disassemble(code []byte, functions map[uint32]string) string {
	var sb strings.Builder
	pc := uint32(0)
	for uint64(pc) < uint64(len(code)) {
		if name, ok := functions[pc]; ok && uint64(pc)+FunctionHeaderSize <= uint64(len(code)) {
			argc := code[pc]
			slots := binary.BigEndian.Uint32(code[pc+1:])
			fmt.Fprintf(&sb, "\n%04d  fn %s argc=%d slots=%d\n", pc, name, argc, slots)
			pc += FunctionHeaderSize
			continue
		}
		line, next := DisassembleInstruction(code, pc)
		sb.WriteString(line)
		sb.WriteByte('\n')
		pc = next
	}
	return sb.String()
}

// FunctionLabels inverts a name-to-address table for Disassemble.
func FunctionLabels(table map[string]uint32) map[uint32]string {
	labels := make(map[uint32]string, len(table))
	for name, addr := range table {
		labels[addr] = name
	}
	return labels
}
