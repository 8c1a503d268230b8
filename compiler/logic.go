package compiler

// logic compiles an 'and' or 'or' chain whose first operand is already on
// the stack. Each operand is tested with a conditional jump that consumes
// it, so the chain always yields a Boolean:
//
//	a and b  =>  a; JF fail; b; JF fail; TRUE; JP end; fail: FALSE; end:
//
// 'or' is the dual with JT, FALSE and TRUE swapped. Mixing the two
// operators in one chain requires parentheses.
func (c *Compiler) logic(kind TokenType) error {
	other := TokenOr
	if kind == TokenOr {
		other = TokenAnd
	}

	exits := []uint32{c.chunk.emptyAddress()}
	for c.tok.Type == kind {
		c.advance()
		if err := c.expressionWithoutLogic(); err != nil {
			return err
		}
		exits = append(exits, c.chunk.emptyAddress())
		if c.tok.Type == other {
			return c.errorf("Unable to combine 'and' and 'or' operators.")
		}
	}

	and := kind == TokenAnd
	c.chunk.boolean(and)
	end := c.chunk.emptyAddress()
	for _, at := range exits {
		if and {
			c.chunk.patchJF(at, c.chunk.Len())
		} else {
			c.chunk.patchJT(at, c.chunk.Len())
		}
	}
	c.chunk.boolean(!and)
	c.chunk.patchJP(end, c.chunk.Len())
	return nil
}
