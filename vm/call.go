package vm

// call dispatches CALL argc. The callee sits below its arguments.
func (m *Machine) call(code []byte) error {
	argc8, err := fetchU8(code, m.pc+1)
	if err != nil {
		return err
	}
	argc := uint32(argc8)
	if m.sp < argc+1 {
		return ErrStackUnderflow
	}
	calleeSlot := m.sp - argc - 1
	callee := m.stack[calleeSlot]

	if addr, ok := callee.AsAddress(); ok {
		return m.callFunction(code, calleeSlot, addr, argc)
	}
	if idx, ok := callee.AsNative(); ok {
		return m.callNative(idx, argc)
	}
	return m.faultf(ErrUnexpectedType, "Expected function, found %s.", callee)
}

// callFunction enters a compiled function. The callee slot becomes the
// frame marker and the arguments become the first locals.
func (m *Machine) callFunction(code []byte, calleeSlot, addr, argc uint32) error {
	declared, err := fetchU8(code, addr)
	if err != nil {
		return err
	}
	if uint32(declared) != argc {
		return m.faultf(ErrArity, "Expected %d function call arguments, found %d.", declared, argc)
	}
	hdr, err := checkedAdd(addr, 1)
	if err != nil {
		return err
	}
	slots, err := fetchU32(code, hdr)
	if err != nil {
		return err
	}
	returnPC, err := checkedAdd(m.pc, OpCall.Width())
	if err != nil {
		return err
	}
	body, err := checkedAdd(addr, FunctionHeaderSize)
	if err != nil {
		return err
	}
	if err := m.grow(slots); err != nil {
		return m.faultf(ErrStackOverflow, "Stack overflow calling function at %d.", addr)
	}
	m.stack[calleeSlot] = frame(returnPC, m.locals)
	m.locals = calleeSlot + 1
	m.pc = body
	return nil
}

// callNative runs a host function with the arguments as its locals, then
// collapses the whole call footprint into the result.
func (m *Machine) callNative(idx, argc uint32) error {
	nat, ok := m.natives.At(idx)
	if !ok {
		return m.faultf(ErrUnexpectedType, "Unknown native #%d.", idx)
	}
	if uint32(nat.Argc) != argc {
		return m.faultf(ErrArity, "Expected %d function call arguments, found %d.", nat.Argc, argc)
	}
	saved := m.locals
	m.locals = m.sp - argc
	result, err := nat.Fn(m)
	if err != nil {
		m.locals = saved
		return m.fault(err)
	}
	base := m.locals - 1
	m.clear(base, m.sp)
	m.sp = base
	m.locals = saved
	if err := m.push(result); err != nil {
		return err
	}
	m.pc, err = checkedAdd(m.pc, OpCall.Width())
	return err
}

// ret returns from the current function, or ends the run at top level.
func (m *Machine) ret() (bool, error) {
	if m.locals == 0 {
		return false, nil
	}
	result, err := m.pop()
	if err != nil {
		return false, err
	}
	if m.sp < m.locals {
		return false, ErrStackUnderflow
	}
	base := m.locals - 1
	marker := m.stack[base]
	returnPC, locals, ok := marker.frameParts()
	if !ok {
		return false, m.faultf(ErrUnexpectedType, "Expected call frame, found %s.", marker)
	}
	m.clear(base, m.sp)
	m.sp = base
	m.locals = locals
	m.pc = returnPC
	return true, m.push(result)
}
