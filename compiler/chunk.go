package compiler

import (
	"encoding/binary"
	"math"
	"strconv"

	"github.com/chazu/rill/vm"
)

// Position is a byte range in one source unit. Source identifies the unit;
// End is exclusive.
type Position struct {
	Source int
	Start  int
	End    int
}

// Chunk is a growing bytecode buffer with source positions for the
// instructions that can fault at run time.
type Chunk struct {
	code      []byte
	positions map[uint32]Position
}

// NewChunk returns an empty chunk.
func NewChunk() *Chunk {
	return &Chunk{positions: make(map[uint32]Position)}
}

// ChunkFrom rebuilds a chunk from stored code and positions.
func ChunkFrom(code []byte, positions map[uint32]Position) *Chunk {
	if positions == nil {
		positions = make(map[uint32]Position)
	}
	return &Chunk{code: code, positions: positions}
}

// Code returns the bytecode. The slice is shared with the chunk.
func (c *Chunk) Code() []byte { return c.code }

// Len returns the current code length, which is also the next address.
func (c *Chunk) Len() uint32 { return uint32(len(c.code)) }

// Positions returns the address-to-range table. The map is shared.
func (c *Chunk) Positions() map[uint32]Position { return c.positions }

// PositionOf returns the source range recorded for the instruction at pc.
func (c *Chunk) PositionOf(pc uint32) (Position, bool) {
	pos, ok := c.positions[pc]
	return pos, ok
}

// Disassemble renders the chunk, labelling function headers.
func (c *Chunk) Disassemble(functions map[string]uint32) string {
	return vm.Disassemble(c.code, vm.FunctionLabels(functions))
}

// ---------------------------------------------------------------------------
// Emission
// ---------------------------------------------------------------------------

// mark attaches pos to the next instruction.
func (c *Chunk) mark(pos Position) {
	c.positions[c.Len()] = pos
}

func (c *Chunk) emit(op vm.Opcode) {
	c.code = append(c.code, byte(op))
}

func (c *Chunk) emitU8(op vm.Opcode, v uint8) {
	c.code = append(c.code, byte(op), v)
}

func (c *Chunk) emitU16(op vm.Opcode, v uint16) {
	c.code = append(c.code, byte(op))
	c.code = binary.BigEndian.AppendUint16(c.code, v)
}

func (c *Chunk) emitU32(op vm.Opcode, v uint32) {
	c.code = append(c.code, byte(op))
	c.code = binary.BigEndian.AppendUint32(c.code, v)
}

func (c *Chunk) emitU64(op vm.Opcode, v uint64) {
	c.code = append(c.code, byte(op))
	c.code = binary.BigEndian.AppendUint64(c.code, v)
}

// emitIndexed picks the narrowest of three opcode widths for idx.
func (c *Chunk) emitIndexed(op1, op2, op4 vm.Opcode, idx uint32) {
	switch {
	case idx <= math.MaxUint8:
		c.emitU8(op1, uint8(idx))
	case idx <= math.MaxUint16:
		c.emitU16(op2, uint16(idx))
	default:
		c.emitU32(op4, idx)
	}
}

// integer emits the narrowest push for an unsigned decimal literal. Values
// above the signed range wrap, so negating 9223372036854775808 yields the
// minimum integer.
func (c *Chunk) integer(literal string) error {
	v, err := strconv.ParseUint(literal, 10, 64)
	if err != nil {
		return err
	}
	switch {
	case v <= math.MaxUint8:
		c.emitU8(vm.OpInt1, uint8(v))
	case v <= math.MaxUint16:
		c.emitU16(vm.OpInt2, uint16(v))
	default:
		c.emitU64(vm.OpInt8, v)
	}
	return nil
}

func (c *Chunk) real(literal string) error {
	f, err := strconv.ParseFloat(literal, 64)
	if err != nil {
		return err
	}
	c.emitU64(vm.OpReal, math.Float64bits(f))
	return nil
}

func (c *Chunk) boolean(b bool) {
	if b {
		c.emit(vm.OpTrue)
	} else {
		c.emit(vm.OpFalse)
	}
}

func (c *Chunk) load(idx uint32, global bool) {
	if global {
		c.emitIndexed(vm.OpLoadGlobal1, vm.OpLoadGlobal2, vm.OpLoadGlobal4, idx)
		return
	}
	c.emitIndexed(vm.OpLoad1, vm.OpLoad2, vm.OpLoad4, idx)
}

func (c *Chunk) store(idx uint32, global bool) {
	if global {
		c.emitIndexed(vm.OpStoreGlobal1, vm.OpStoreGlobal2, vm.OpStoreGlobal4, idx)
		return
	}
	c.emitIndexed(vm.OpStore1, vm.OpStore2, vm.OpStore4, idx)
}

func (c *Chunk) call(argc uint8) {
	c.emitU8(vm.OpCall, argc)
}

// ---------------------------------------------------------------------------
// Placeholders and patching
// ---------------------------------------------------------------------------

// emptyAddress reserves a jump-sized placeholder and returns its address.
func (c *Chunk) emptyAddress() uint32 {
	at := c.Len()
	c.code = append(c.code, make([]byte, vm.JumpSize)...)
	return at
}

// patchJump writes a jump into the placeholder at at. Targets that fit in
// 16 bits use the short form; the trailing bytes stay as padding.
func (c *Chunk) patchJump(at, target uint32, short, long vm.Opcode) {
	if target <= math.MaxUint16 {
		c.code[at] = byte(short)
		binary.BigEndian.PutUint16(c.code[at+1:], uint16(target))
		c.code[at+3], c.code[at+4] = 0, 0
		return
	}
	c.code[at] = byte(long)
	binary.BigEndian.PutUint32(c.code[at+1:], target)
}

func (c *Chunk) patchJP(at, target uint32) {
	c.patchJump(at, target, vm.OpJump2, vm.OpJump4)
}

func (c *Chunk) patchJF(at, target uint32) {
	c.patchJump(at, target, vm.OpJumpFalse2, vm.OpJumpFalse4)
}

func (c *Chunk) patchJT(at, target uint32) {
	c.patchJump(at, target, vm.OpJumpTrue2, vm.OpJumpTrue4)
}

// jump emits an unconditional jump to target.
func (c *Chunk) jump(target uint32) {
	c.patchJP(c.emptyAddress(), target)
}

// startFunction writes a function header and returns the address of its
// slot count, to be patched once the body is compiled.
func (c *Chunk) startFunction(argc uint8) uint32 {
	c.code = append(c.code, argc)
	at := c.Len()
	c.code = append(c.code, 0, 0, 0, 0)
	return at
}

// enter emits ENTER with a zero count and returns the operand address.
func (c *Chunk) enter() uint32 {
	c.emitU32(vm.OpEnter, 0)
	return c.Len() - 4
}

func (c *Chunk) patchU32(at, v uint32) {
	binary.BigEndian.PutUint32(c.code[at:], v)
}

// popLast removes the final byte, used to reopen a unit ending in RET.
func (c *Chunk) popLast() {
	if len(c.code) > 0 {
		c.code = c.code[:len(c.code)-1]
	}
}

// truncate drops code and positions at or after n.
func (c *Chunk) truncate(n uint32) {
	if n >= c.Len() {
		return
	}
	c.code = c.code[:n]
	for pc := range c.positions {
		if pc >= n {
			delete(c.positions, pc)
		}
	}
}
