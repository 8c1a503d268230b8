package vm

import "math"

// binary pops the right then the left operand and pushes the result.
func (m *Machine) binary(op Opcode) error {
	r, err := m.pop()
	if err != nil {
		return err
	}
	l, err := m.pop()
	if err != nil {
		return err
	}
	var result Value
	switch op {
	case OpAdd:
		result, err = m.add(l, r)
	case OpSub, OpMul, OpDiv, OpMod:
		result, err = m.arith(op, l, r)
	default:
		result, err = m.compare(op, l, r)
	}
	if err != nil {
		return err
	}
	return m.push(result)
}

// add appends to a list when the left operand is one, and adds numbers
// otherwise.
func (m *Machine) add(l, r Value) (Value, error) {
	if list, ok := l.AsList(); ok {
		list.Append(r)
		return l, nil
	}
	return m.arith(OpAdd, l, r)
}

var arithVerbs = map[Opcode]string{
	OpAdd: "add",
	OpSub: "subtract",
	OpMul: "multiply",
	OpDiv: "divide",
	OpMod: "take the remainder of",
}

// arith applies a numeric operator. Two integers stay integral and wrap;
// any real operand promotes the other.
func (m *Machine) arith(op Opcode, l, r Value) (Value, error) {
	if a, ok := l.AsInt(); ok {
		if b, ok := r.AsInt(); ok {
			return m.intArith(op, a, b)
		}
	}
	a, lok := l.AsNumber()
	b, rok := r.AsNumber()
	if !lok || !rok {
		return Void, m.faultf(ErrBinaryOperation, "Unable to %s %s and %s values.", arithVerbs[op], l, r)
	}
	switch op {
	case OpAdd:
		return Real(a + b), nil
	case OpSub:
		return Real(a - b), nil
	case OpMul:
		return Real(a * b), nil
	case OpDiv:
		return Real(a / b), nil
	default:
		return Real(math.Mod(a, b)), nil
	}
}

// intArith uses Go's two's-complement integer semantics: overflow wraps
// and MinInt64 / -1 yields MinInt64.
func (m *Machine) intArith(op Opcode, a, b int64) (Value, error) {
	switch op {
	case OpAdd:
		return Int(a + b), nil
	case OpSub:
		return Int(a - b), nil
	case OpMul:
		return Int(a * b), nil
	}
	if b == 0 {
		return Void, m.faultf(ErrDivisionByZero, "Division by zero.")
	}
	if op == OpDiv {
		return Int(a / b), nil
	}
	return Int(a % b), nil
}

// compare implements equality and ordering. Numbers compare across
// Integer and Real; booleans and voids support equality only. Anything else
// is an error rather than false.
func (m *Machine) compare(op Opcode, l, r Value) (Value, error) {
	if a, ok := l.AsInt(); ok {
		if b, ok := r.AsInt(); ok {
			return Bool(ordered(op, cmpInt(a, b))), nil
		}
	}
	if a, ok := l.AsNumber(); ok {
		if b, ok := r.AsNumber(); ok {
			return Bool(compareReal(op, a, b)), nil
		}
	}
	if op == OpEq || op == OpNe {
		if l.Kind() == r.Kind() && (l.Kind() == KindBoolean || l.Kind() == KindVoid) {
			eq := Equal(l, r)
			return Bool(eq == (op == OpEq)), nil
		}
	}
	return Void, m.faultf(ErrBinaryOperation, "Unable to compare %s and %s values.", l, r)
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func ordered(op Opcode, c int) bool {
	switch op {
	case OpEq:
		return c == 0
	case OpNe:
		return c != 0
	case OpLt:
		return c < 0
	case OpGt:
		return c > 0
	case OpLe:
		return c <= 0
	default:
		return c >= 0
	}
}

// compareReal keeps IEEE semantics: every ordered comparison involving NaN
// is false and NaN != NaN.
func compareReal(op Opcode, a, b float64) bool {
	switch op {
	case OpEq:
		return a == b
	case OpNe:
		return a != b
	case OpLt:
		return a < b
	case OpGt:
		return a > b
	case OpLe:
		return a <= b
	default:
		return a >= b
	}
}

var unaryVerbs = map[Opcode]string{
	OpNeg: "negate",
	OpNot: "apply 'not' to",
	OpInc: "increment",
	OpDec: "decrement",
}

func (m *Machine) unary(op Opcode) error {
	v, err := m.pop()
	if err != nil {
		return err
	}
	var result Value
	ok := true
	switch op {
	case OpNot:
		if b, isBool := v.AsBool(); isBool {
			result = Bool(!b)
		} else if i, isInt := v.AsInt(); isInt {
			result = Int(^i)
		} else {
			ok = false
		}
	default:
		if i, isInt := v.AsInt(); isInt {
			switch op {
			case OpNeg:
				result = Int(-i)
			case OpInc:
				result = Int(i + 1)
			default:
				result = Int(i - 1)
			}
		} else if f, isReal := v.AsReal(); isReal {
			switch op {
			case OpNeg:
				result = Real(-f)
			case OpInc:
				result = Real(f + 1)
			default:
				result = Real(f - 1)
			}
		} else {
			ok = false
		}
	}
	if !ok {
		return m.faultf(ErrUnaryOperation, "Unable to %s %s value.", unaryVerbs[op], v)
	}
	return m.push(result)
}

// get pops an index and a list and pushes the element.
func (m *Machine) get() error {
	idx, err := m.pop()
	if err != nil {
		return err
	}
	target, err := m.pop()
	if err != nil {
		return err
	}
	list, i, err := m.indexOperands(target, idx)
	if err != nil {
		return err
	}
	v, ok := list.Get(i)
	if !ok {
		return m.faultf(ErrIndexOutOfRange, "Index out of range: %d (length %d).", i, list.Len())
	}
	return m.push(v)
}

// set pops a value, an index and a list, stores the value and pushes it.
func (m *Machine) set() error {
	v, err := m.pop()
	if err != nil {
		return err
	}
	idx, err := m.pop()
	if err != nil {
		return err
	}
	target, err := m.pop()
	if err != nil {
		return err
	}
	list, i, err := m.indexOperands(target, idx)
	if err != nil {
		return err
	}
	if !list.Set(i, v) {
		return m.faultf(ErrIndexOutOfRange, "Index out of range: %d (length %d).", i, list.Len())
	}
	return m.push(v)
}

func (m *Machine) indexOperands(target, idx Value) (*List, int64, error) {
	list, ok := target.AsList()
	if !ok {
		return nil, 0, m.faultf(ErrUnexpectedType, "Expected list value, found %s.", target)
	}
	i, ok := idx.AsInt()
	if !ok {
		return nil, 0, m.faultf(ErrUnexpectedType, "Expected integer index, found %s.", idx)
	}
	return list, i, nil
}
