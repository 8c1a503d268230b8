package compiler

import "github.com/chazu/rill/vm"

// block compiles '{' statements '}' in a fresh lexical block. The block
// leaves the value of its last statement, or Void when empty.
func (c *Compiler) block() error {
	if err := c.consume(TokenLBrace); err != nil {
		return err
	}
	c.scope().enter()
	defer c.scope().exit()

	if c.tok.Type == TokenRBrace {
		c.chunk.emit(vm.OpVoid)
		c.advance()
		return nil
	}
	for {
		if _, err := c.statement(TokenRBrace); err != nil {
			return err
		}
		if c.tok.Type == TokenRBrace {
			c.advance()
			return nil
		}
		c.chunk.emit(vm.OpDrop)
	}
}

// statement compiles one statement, which always leaves one value. An
// expression statement must end with ';' unless it is followed by until.
// Terminated reports whether the statement was closed by a semicolon or is
// a declaration or jump.
func (c *Compiler) statement(until TokenType) (terminated bool, err error) {
	isReturn := c.tok.Type == TokenReturn
	defer func() { c.lastReturn = isReturn }()

	switch c.tok.Type {
	case TokenReturn:
		return true, c.returnStatement()
	case TokenBreak:
		return true, c.breakStatement()
	case TokenContinue:
		return true, c.continueStatement()
	case TokenLet:
		return true, c.let(false, true)
	case TokenIf:
		return false, c.ifStatement()
	case TokenWhile:
		return false, c.whileStatement()
	case TokenFor:
		return false, c.forStatement()
	case TokenLBrace:
		return false, c.block()
	}

	if err := c.expression(); err != nil {
		return false, err
	}
	switch c.tok.Type {
	case TokenSemicolon:
		c.advance()
		return true, nil
	case until:
		return false, nil
	}
	return false, c.errorf("Expected %s, found %s", TokenSemicolon, c.tok.Type)
}

// jumpValue compiles the optional value of return or break, then the
// closing semicolon.
func (c *Compiler) jumpValue() error {
	if c.tok.Type == TokenSemicolon {
		c.chunk.emit(vm.OpVoid)
	} else if err := c.expression(); err != nil {
		return err
	}
	return c.consume(TokenSemicolon)
}

func (c *Compiler) returnStatement() error {
	if c.fn == nil {
		return c.errorf("Unable to use 'return' statement in this place.")
	}
	c.advance()
	if err := c.jumpValue(); err != nil {
		return err
	}
	c.chunk.emit(vm.OpReturn)
	return nil
}

func (c *Compiler) breakStatement() error {
	if !c.loops.inLoop() {
		return c.errorf("Unable to use 'break' statement in this place.")
	}
	c.advance()
	if err := c.jumpValue(); err != nil {
		return err
	}
	c.loops.addBreak(c.chunk.emptyAddress())
	return nil
}

func (c *Compiler) continueStatement() error {
	if !c.loops.inLoop() {
		return c.errorf("Unable to use 'continue' statement in this place.")
	}
	c.advance()
	if err := c.jumpValue(); err != nil {
		return err
	}
	c.chunk.jump(c.loops.continueTarget())
	return nil
}

// let compiles 'let' name '=' expression. The initializer is compiled
// before the name is bound, so it sees any outer binding of the same name.
// The stored value stays on the stack.
func (c *Compiler) let(global, semicolon bool) error {
	c.advance()
	if err := c.expect(TokenIdentifier); err != nil {
		return err
	}
	name := c.tok.Literal
	namePos := c.pos()
	c.advance()
	if err := c.consume(TokenAssign); err != nil {
		return err
	}
	if err := c.expression(); err != nil {
		return err
	}
	if global {
		c.chunk.store(c.globals.declare(name, namePos), true)
	} else {
		c.chunk.store(c.scope().declare(name), false)
	}
	if semicolon {
		return c.consume(TokenSemicolon)
	}
	return nil
}

// ifStatement compiles an if / else if / else chain. Every branch leaves
// one value; a chain without a final else yields Void when no condition
// holds.
func (c *Compiler) ifStatement() error {
	var ends []uint32
	for {
		c.advance()
		if err := c.expression(); err != nil {
			return err
		}
		next := c.chunk.emptyAddress()
		if err := c.block(); err != nil {
			return err
		}
		ends = append(ends, c.chunk.emptyAddress())
		c.chunk.patchJF(next, c.chunk.Len())

		if c.tok.Type != TokenElse {
			c.chunk.emit(vm.OpVoid)
			break
		}
		c.advance()
		if c.tok.Type == TokenIf {
			continue
		}
		if c.tok.Type != TokenLBrace {
			return c.errorf("Expected %s or %s, found %s", TokenLBrace, TokenIf, c.tok.Type)
		}
		if err := c.block(); err != nil {
			return err
		}
		break
	}
	for _, at := range ends {
		c.chunk.patchJP(at, c.chunk.Len())
	}
	return nil
}

// whileStatement yields the value of the last completed iteration, the
// value given to break, or Void when the body never runs.
func (c *Compiler) whileStatement() error {
	c.advance()
	c.chunk.emit(vm.OpVoid)
	start := c.chunk.Len()
	if err := c.expression(); err != nil {
		return err
	}
	end := c.chunk.emptyAddress()
	c.chunk.emit(vm.OpDrop)

	c.loops.push(start)
	if err := c.block(); err != nil {
		return err
	}
	c.chunk.jump(start)
	breaks := c.loops.pop()

	exit := c.chunk.Len()
	c.chunk.patchJF(end, exit)
	for _, at := range breaks {
		c.chunk.patchJP(at, exit)
	}
	return nil
}

// forStatement compiles 'for' name '=' init ',' cond ',' step block. The
// step is laid out before the body, so continue can jump to it directly:
//
//	init; VOID
//	start: cond; JF exit; DROP; JP body
//	step:  step; DROP; JP start
//	body:  block; JP step
//	exit:
func (c *Compiler) forStatement() error {
	c.advance()
	c.scope().enter()
	defer c.scope().exit()

	if err := c.expect(TokenIdentifier); err != nil {
		return err
	}
	name := c.tok.Literal
	c.advance()
	if err := c.consume(TokenAssign); err != nil {
		return err
	}
	if err := c.expression(); err != nil {
		return err
	}
	c.chunk.store(c.scope().declare(name), false)
	c.chunk.emit(vm.OpDrop)
	if err := c.consume(TokenComma); err != nil {
		return err
	}

	c.chunk.emit(vm.OpVoid)
	start := c.chunk.Len()
	if err := c.expression(); err != nil {
		return err
	}
	end := c.chunk.emptyAddress()
	c.chunk.emit(vm.OpDrop)
	toBody := c.chunk.emptyAddress()
	if err := c.consume(TokenComma); err != nil {
		return err
	}

	step := c.chunk.Len()
	if err := c.expression(); err != nil {
		return err
	}
	c.chunk.emit(vm.OpDrop)
	c.chunk.jump(start)
	c.chunk.patchJP(toBody, c.chunk.Len())

	c.loops.push(step)
	if err := c.block(); err != nil {
		return err
	}
	c.chunk.jump(step)
	breaks := c.loops.pop()

	exit := c.chunk.Len()
	c.chunk.patchJF(end, exit)
	for _, at := range breaks {
		c.chunk.patchJP(at, exit)
	}
	return nil
}
