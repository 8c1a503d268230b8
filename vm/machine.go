package vm

import (
	"math"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("rill.vm")

// DefaultStackSize is the operand stack capacity used when none is given.
const DefaultStackSize = 4096

// Machine executes Rill bytecode.
//
// The operand stack is fixed at construction and never grows. Call frames
// live on it: a call overwrites the callee slot with a frame marker and the
// callee's locals start right above it. Globals persist across runs, so one
// Machine can execute a chunk that keeps growing (a REPL session).
//
// A Machine is not safe for concurrent use.
type Machine struct {
	stack   []Value
	sp      uint32
	pc      uint32
	locals  uint32
	globals []Value
	defined []bool
	natives *Natives

	// Trace logs every dispatched instruction at debug level.
	Trace bool
}

// NewMachine creates a machine with an operand stack of the given capacity.
func NewMachine(capacity int, natives *Natives) *Machine {
	if capacity <= 0 {
		capacity = DefaultStackSize
	}
	if uint64(capacity) > math.MaxUint32 {
		capacity = math.MaxUint32
	}
	if natives == nil {
		natives = NewNatives()
	}
	return &Machine{
		stack:   make([]Value, capacity),
		natives: natives,
	}
}

// Natives returns the native table the machine dispatches to.
func (m *Machine) Natives() *Natives { return m.natives }

// Arg returns argument i of the native being called.
func (m *Machine) Arg(i int) Value {
	idx := uint64(m.locals) + uint64(i)
	if i < 0 || idx >= uint64(m.sp) {
		return Void
	}
	return m.stack[idx]
}

// Global returns global slot i and whether it has been assigned.
func (m *Machine) Global(i int) (Value, bool) {
	if i < 0 || i >= len(m.globals) || !m.defined[i] {
		return Void, false
	}
	return m.globals[i], true
}

// Resume clears the operand stack and parks the machine at pc. Globals are
// kept. Hosts call it after a fault to continue with later code.
func (m *Machine) Resume(pc uint32) {
	m.clear(0, m.sp)
	m.sp = 0
	m.locals = 0
	m.pc = pc
}

// Run executes code from the current program counter until a top-level
// return, which leaves the program counter on that return. The value on top
// of the stack, if any, is the result.
func (m *Machine) Run(code []byte) (Value, error) {
	for {
		more, err := m.step(code)
		if err != nil {
			f := m.fault(err)
			log.Debugf("fault at %d: %s", f.PC, f.Error())
			return Void, f
		}
		if !more {
			break
		}
	}
	result := Void
	if m.sp > 0 {
		result = m.stack[m.sp-1]
	}
	m.clear(0, m.sp)
	m.sp = 0
	return result, nil
}

// step dispatches one instruction. It reports false when the run is over.
func (m *Machine) step(code []byte) (bool, error) {
	raw, err := fetchU8(code, m.pc)
	if err != nil {
		return false, err
	}
	op := Opcode(raw)
	if m.Trace && log.AllowLevel(commonlog.Debug) {
		line, _ := DisassembleInstruction(code, m.pc)
		log.Debugf("%s  [sp=%d lc=%d]", line, m.sp, m.locals)
	}

	switch op {
	// --- Stack operations ---
	case OpNOP:

	case OpDrop:
		if _, err := m.pop(); err != nil {
			return false, err
		}

	case OpEnter:
		n, err := fetchU32(code, m.pc+1)
		if err != nil {
			return false, err
		}
		if err := m.grow(n); err != nil {
			return false, err
		}

	case OpLeave:
		n, err := fetchU32(code, m.pc+1)
		if err != nil {
			return false, err
		}
		if err := m.leave(n); err != nil {
			return false, err
		}

	// --- Constants ---
	case OpVoid:
		err = m.push(Void)
	case OpTrue:
		err = m.push(Bool(true))
	case OpFalse:
		err = m.push(Bool(false))

	case OpInt1:
		v, ferr := fetchU8(code, m.pc+1)
		if ferr != nil {
			return false, ferr
		}
		err = m.push(Int(int64(v)))

	case OpInt2:
		v, ferr := fetchU16(code, m.pc+1)
		if ferr != nil {
			return false, ferr
		}
		err = m.push(Int(int64(v)))

	case OpInt8:
		v, ferr := fetchU64(code, m.pc+1)
		if ferr != nil {
			return false, ferr
		}
		err = m.push(Int(int64(v)))

	case OpReal:
		v, ferr := fetchU64(code, m.pc+1)
		if ferr != nil {
			return false, ferr
		}
		err = m.push(Real(math.Float64frombits(v)))

	case OpPtr:
		v, ferr := fetchU32(code, m.pc+1)
		if ferr != nil {
			return false, ferr
		}
		err = m.push(Pointer(v))

	case OpNat:
		v, ferr := fetchU32(code, m.pc+1)
		if ferr != nil {
			return false, ferr
		}
		err = m.push(NativeRef(v))

	case OpList:
		err = m.push(ListOf(NewList()))

	// --- Variables ---
	case OpLoad1, OpLoad2, OpLoad4:
		err = m.loadLocal(code, op.OperandBytes())
	case OpStore1, OpStore2, OpStore4:
		err = m.storeLocal(code, op.OperandBytes())
	case OpLoadGlobal1, OpLoadGlobal2, OpLoadGlobal4:
		err = m.loadGlobal(code, op.OperandBytes())
	case OpStoreGlobal1, OpStoreGlobal2, OpStoreGlobal4:
		err = m.storeGlobal(code, op.OperandBytes())

	// --- Arithmetic and comparison ---
	case OpAdd, OpSub, OpMul, OpDiv, OpMod,
		OpEq, OpNe, OpLt, OpGt, OpLe, OpGe:
		err = m.binary(op)

	case OpNeg, OpNot, OpInc, OpDec:
		err = m.unary(op)

	// --- Lists ---
	case OpGet:
		err = m.get()
	case OpSet:
		err = m.set()

	// --- Control flow ---
	case OpJump2, OpJump4:
		target, ferr := m.jumpTarget(code, op)
		if ferr != nil {
			return false, ferr
		}
		m.pc = target
		return true, nil

	case OpJumpFalse2, OpJumpFalse4, OpJumpTrue2, OpJumpTrue4:
		return true, m.branch(code, op)

	// --- Calls ---
	case OpCall:
		return true, m.call(code)

	case OpReturn:
		return m.ret()

	default:
		return false, m.faultf(ErrUnknownOpcode, "Unknown opcode 0x%02X.", raw)
	}

	if err != nil {
		return false, err
	}
	m.pc, err = checkedAdd(m.pc, op.Width())
	return err == nil, err
}

// ---------------------------------------------------------------------------
// Stack helpers
// ---------------------------------------------------------------------------

func (m *Machine) push(v Value) error {
	if uint64(m.sp) >= uint64(len(m.stack)) {
		return ErrStackOverflow
	}
	m.stack[m.sp] = v
	m.sp++
	return nil
}

// pop removes the top value, clearing its slot.
func (m *Machine) pop() (Value, error) {
	if m.sp == 0 {
		return Void, ErrStackUnderflow
	}
	m.sp--
	v := m.stack[m.sp]
	m.stack[m.sp] = Void
	return v, nil
}

func (m *Machine) peek() (Value, error) {
	if m.sp == 0 {
		return Void, ErrStackUnderflow
	}
	return m.stack[m.sp-1], nil
}

// grow reserves n zero-filled slots.
func (m *Machine) grow(n uint32) error {
	top := uint64(m.sp) + uint64(n)
	if top > uint64(len(m.stack)) {
		return ErrStackOverflow
	}
	m.clear(m.sp, uint32(top))
	m.sp = uint32(top)
	return nil
}

// leave drops the n slots directly beneath the top value.
func (m *Machine) leave(n uint32) error {
	if n == 0 {
		return nil
	}
	if uint64(m.sp) < uint64(n)+1 {
		return ErrStackUnderflow
	}
	top, _ := m.pop()
	m.clear(m.sp-n, m.sp)
	m.sp -= n
	return m.push(top)
}

// clear resets [from, to) to Void so dropped lists become unreachable.
func (m *Machine) clear(from, to uint32) {
	for i := from; i < to; i++ {
		m.stack[i] = Void
	}
}

// ---------------------------------------------------------------------------
// Variables
// ---------------------------------------------------------------------------

func (m *Machine) localSlot(code []byte, width int) (uint32, error) {
	idx, err := fetchIndex(code, m.pc+1, width)
	if err != nil {
		return 0, err
	}
	slot := uint64(m.locals) + uint64(idx)
	if slot >= uint64(len(m.stack)) {
		return 0, ErrStackOverflow
	}
	return uint32(slot), nil
}

func (m *Machine) loadLocal(code []byte, width int) error {
	slot, err := m.localSlot(code, width)
	if err != nil {
		return err
	}
	return m.push(m.stack[slot])
}

// storeLocal copies the top of the stack into a local and leaves it there.
func (m *Machine) storeLocal(code []byte, width int) error {
	slot, err := m.localSlot(code, width)
	if err != nil {
		return err
	}
	v, err := m.peek()
	if err != nil {
		return err
	}
	m.stack[slot] = v
	return nil
}

func (m *Machine) loadGlobal(code []byte, width int) error {
	idx, err := fetchIndex(code, m.pc+1, width)
	if err != nil {
		return err
	}
	if uint64(idx) >= uint64(len(m.globals)) || !m.defined[idx] {
		return m.faultf(ErrFetchGlobal, "Global #%d is used before it is set.", idx)
	}
	return m.push(m.globals[idx])
}

func (m *Machine) storeGlobal(code []byte, width int) error {
	idx, err := fetchIndex(code, m.pc+1, width)
	if err != nil {
		return err
	}
	v, err := m.peek()
	if err != nil {
		return err
	}
	if uint64(idx) >= uint64(len(m.globals)) {
		n := int(idx) + 1
		m.globals = append(m.globals, make([]Value, n-len(m.globals))...)
		m.defined = append(m.defined, make([]bool, n-len(m.defined))...)
	}
	m.globals[idx] = v
	m.defined[idx] = true
	return nil
}

// ---------------------------------------------------------------------------
// Jumps
// ---------------------------------------------------------------------------

func (m *Machine) jumpTarget(code []byte, op Opcode) (uint32, error) {
	switch op {
	case OpJump2, OpJumpFalse2, OpJumpTrue2:
		v, err := fetchU16(code, m.pc+1)
		return uint32(v), err
	default:
		return fetchU32(code, m.pc+1)
	}
}

// branch pops a boolean and jumps when it matches the instruction's sense.
func (m *Machine) branch(code []byte, op Opcode) error {
	target, err := m.jumpTarget(code, op)
	if err != nil {
		return err
	}
	v, err := m.pop()
	if err != nil {
		return err
	}
	b, ok := v.AsBool()
	if !ok {
		return m.faultf(ErrUnexpectedType, "Expected bool value, found %s.", v)
	}
	want := op == OpJumpTrue2 || op == OpJumpTrue4
	if b == want {
		m.pc = target
		return nil
	}
	m.pc, err = checkedAdd(m.pc, JumpSize)
	return err
}
