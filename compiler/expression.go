package compiler

import "github.com/chazu/rill/vm"

// Binding precedence of binary operators; higher binds tighter.
var precedence = map[TokenType]int{
	TokenEqual:        2,
	TokenNotEqual:     2,
	TokenLess:         2,
	TokenGreater:      2,
	TokenLessEqual:    2,
	TokenGreaterEqual: 2,
	TokenPlus:         3,
	TokenMinus:        3,
	TokenStar:         4,
	TokenSlash:        4,
	TokenPercent:      4,
}

var binaryOps = map[TokenType]vm.Opcode{
	TokenEqual:        vm.OpEq,
	TokenNotEqual:     vm.OpNe,
	TokenLess:         vm.OpLt,
	TokenGreater:      vm.OpGt,
	TokenLessEqual:    vm.OpLe,
	TokenGreaterEqual: vm.OpGe,
	TokenPlus:         vm.OpAdd,
	TokenMinus:        vm.OpSub,
	TokenStar:         vm.OpMul,
	TokenSlash:        vm.OpDiv,
	TokenPercent:      vm.OpMod,
}

var compoundOps = map[TokenType]vm.Opcode{
	TokenPlusAssign:  vm.OpAdd,
	TokenMinusAssign: vm.OpSub,
	TokenStarAssign:  vm.OpMul,
	TokenSlashAssign: vm.OpDiv,
}

// expression compiles a full expression, including one and/or chain.
func (c *Compiler) expression() error {
	if err := c.expressionWithoutLogic(); err != nil {
		return err
	}
	switch c.tok.Type {
	case TokenAnd:
		return c.logic(TokenAnd)
	case TokenOr:
		return c.logic(TokenOr)
	}
	return nil
}

func (c *Compiler) expressionWithoutLogic() error {
	if err := c.unary(); err != nil {
		return err
	}
	return c.binary(1)
}

// binary folds operators of at least the given precedence onto the operand
// already compiled. Operators of equal precedence associate to the left.
func (c *Compiler) binary(min int) error {
	for {
		current := precedence[c.tok.Type]
		if current == 0 || current < min {
			return nil
		}
		op := binaryOps[c.tok.Type]
		pos := c.pos()
		c.advance()
		if err := c.unary(); err != nil {
			return err
		}
		if current < precedence[c.tok.Type] {
			if err := c.binary(current + 1); err != nil {
				return err
			}
		}
		c.chunk.mark(pos)
		c.chunk.emit(op)
	}
}

// unary compiles a prefix '!' or '-' applied to a secondary expression.
func (c *Compiler) unary() error {
	var op vm.Opcode
	switch c.tok.Type {
	case TokenBang:
		op = vm.OpNot
	case TokenMinus:
		op = vm.OpNeg
	default:
		return c.secondary()
	}
	pos := c.pos()
	c.advance()
	if err := c.secondary(); err != nil {
		return err
	}
	c.chunk.mark(pos)
	c.chunk.emit(op)
	return nil
}

// secondary compiles a primary followed by any chain of calls and index
// operations.
func (c *Compiler) secondary() error {
	if err := c.primary(); err != nil {
		return err
	}
	for {
		var err error
		switch c.tok.Type {
		case TokenLParen:
			err = c.call()
		case TokenLBracket:
			err = c.index()
		default:
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (c *Compiler) primary() error {
	switch c.tok.Type {
	case TokenInteger:
		if err := c.chunk.integer(c.tok.Literal); err != nil {
			return c.errorf("Integer literal %s is out of range.", c.tok.Literal)
		}
		c.advance()
	case TokenReal:
		if err := c.chunk.real(c.tok.Literal); err != nil {
			return c.errorf("Invalid real literal %s.", c.tok.Literal)
		}
		c.advance()
	case TokenTrue, TokenFalse:
		c.chunk.boolean(c.tok.Type == TokenTrue)
		c.advance()
	case TokenLParen:
		c.advance()
		if err := c.expression(); err != nil {
			return err
		}
		return c.consume(TokenRParen)
	case TokenLBrace:
		return c.block()
	case TokenLBracket:
		return c.list()
	case TokenIf:
		return c.ifStatement()
	case TokenWhile:
		return c.whileStatement()
	case TokenFor:
		return c.forStatement()
	case TokenLet:
		return c.let(false, false)
	case TokenIdentifier:
		return c.identifier()
	case TokenIncrement:
		return c.prefixStep(vm.OpInc)
	case TokenDecrement:
		return c.prefixStep(vm.OpDec)
	case TokenUnknown:
		return c.errorf("Unknown token.")
	case TokenEnd:
		return c.errorf("Unexpected end.")
	default:
		return c.errorf("Unexpected token.")
	}
	return nil
}

// list compiles '[' elements ']' as LIST followed by one append per
// element.
func (c *Compiler) list() error {
	c.advance()
	c.chunk.emit(vm.OpList)
	for c.tok.Type != TokenRBracket {
		if err := c.expression(); err != nil {
			return err
		}
		c.chunk.emit(vm.OpAdd)
		switch c.tok.Type {
		case TokenRBracket:
		case TokenComma:
			c.advance()
		default:
			return c.errorf("Expected %s or %s, found %s", TokenComma, TokenRBracket, c.tok.Type)
		}
	}
	c.advance()
	return nil
}

// call compiles an argument list. The callee is already on the stack.
func (c *Compiler) call() error {
	pos := c.pos()
	c.advance()
	argc := 0
	for c.tok.Type != TokenRParen {
		if argc == maxArguments {
			return c.errorf("Reached maximum function arguments number.")
		}
		if err := c.expression(); err != nil {
			return err
		}
		argc++
		switch c.tok.Type {
		case TokenRParen:
		case TokenComma:
			c.advance()
		default:
			return c.errorf("Expected %s or %s, found %s", TokenComma, TokenRParen, c.tok.Type)
		}
	}
	c.advance()
	c.chunk.mark(pos)
	c.chunk.call(uint8(argc))
	return nil
}

// index compiles '[' expr ']' as GET, or as SET when followed by '='.
func (c *Compiler) index() error {
	pos := c.pos()
	c.advance()
	if err := c.expression(); err != nil {
		return err
	}
	if err := c.consume(TokenRBracket); err != nil {
		return err
	}
	op := vm.OpGet
	if c.tok.Type == TokenAssign {
		c.advance()
		if err := c.expression(); err != nil {
			return err
		}
		op = vm.OpSet
	}
	c.chunk.mark(pos)
	c.chunk.emit(op)
	return nil
}

// ---------------------------------------------------------------------------
// Identifiers
// ---------------------------------------------------------------------------

// variable resolves name as a local, then a global.
func (c *Compiler) variable(name string) (idx uint32, global, ok bool) {
	if idx, ok := c.scope().lookup(name); ok {
		return idx, false, true
	}
	if idx, ok := c.globals.lookup(name); ok {
		return idx, true, true
	}
	return 0, false, false
}

// load emits a variable read. Global reads carry a position because they
// fault when the global has not been set yet.
func (c *Compiler) load(idx uint32, global bool, pos Position) {
	if global {
		c.chunk.mark(pos)
	}
	c.chunk.load(idx, global)
}

// identifier resolves a name as a local, global, function or native, in
// that order. Variables may be followed by an assignment or a postfix step.
func (c *Compiler) identifier() error {
	name := c.tok.Literal
	pos := c.pos()
	c.advance()

	if idx, global, ok := c.variable(name); ok {
		return c.postVariable(idx, global, pos)
	}
	if addr, ok := c.functions[name]; ok {
		c.chunk.emitU32(vm.OpPtr, addr)
		return nil
	}
	if idx, ok := c.natives.Lookup(name); ok {
		c.chunk.emitU32(vm.OpNat, idx)
		return nil
	}
	return &Error{Message: "Unknown identifier \"" + name + "\".", Pos: pos}
}

func (c *Compiler) postVariable(idx uint32, global bool, pos Position) error {
	switch c.tok.Type {
	case TokenAssign:
		c.advance()
		if err := c.expression(); err != nil {
			return err
		}
		c.chunk.store(idx, global)

	case TokenPlusAssign, TokenMinusAssign, TokenStarAssign, TokenSlashAssign:
		op := compoundOps[c.tok.Type]
		opPos := c.pos()
		c.advance()
		c.load(idx, global, pos)
		if err := c.expression(); err != nil {
			return err
		}
		c.chunk.mark(opPos)
		c.chunk.emit(op)
		c.chunk.store(idx, global)

	case TokenIncrement, TokenDecrement:
		op := vm.OpInc
		if c.tok.Type == TokenDecrement {
			op = vm.OpDec
		}
		opPos := c.pos()
		c.advance()
		c.load(idx, global, pos)
		c.load(idx, global, pos)
		c.chunk.mark(opPos)
		c.chunk.emit(op)
		c.chunk.store(idx, global)
		c.chunk.emit(vm.OpDrop)

	default:
		c.load(idx, global, pos)
	}
	return nil
}

// prefixStep compiles '++' or '--' applied to a variable; the new value is
// left on the stack.
func (c *Compiler) prefixStep(op vm.Opcode) error {
	opPos := c.pos()
	c.advance()
	if err := c.expect(TokenIdentifier); err != nil {
		return err
	}
	name := c.tok.Literal
	pos := c.pos()
	idx, global, ok := c.variable(name)
	if !ok {
		return c.errorf("Unknown identifier \"%s\".", name)
	}
	c.advance()
	c.load(idx, global, pos)
	c.chunk.mark(opPos)
	c.chunk.emit(op)
	c.chunk.store(idx, global)
	return nil
}
