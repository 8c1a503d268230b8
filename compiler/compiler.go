package compiler

import (
	"fmt"
	"io"
	"math"

	"github.com/tliron/commonlog"

	"github.com/chazu/rill/vm"
)

var log = commonlog.GetLogger("rill.compiler")

// maxArguments bounds declared parameters and call arguments; CALL carries
// its argument count in one byte.
const maxArguments = math.MaxUint8

// Compiler translates Rill source into bytecode in a single pass. Each call
// to Compile appends one unit to the same Chunk, so globals and functions
// declared by earlier units stay visible to later ones.
type Compiler struct {
	natives *vm.Natives
	chunk   *Chunk

	globals       *globalTable
	functions     map[string]uint32
	functionOrder []string
	functionPos   map[string]Position

	// Per-unit state.
	lexer  *Lexer
	tok    Token
	source int
	top    *functionScope // locals of the current top-level statement
	fn     *functionScope // non-nil while compiling a function body
	loops  loopStack

	lastReturn bool
}

// New creates a compiler resolving native names against natives. A nil
// table has no natives.
func New(natives *vm.Natives) *Compiler {
	return &Compiler{
		natives:     natives,
		chunk:       NewChunk(),
		globals:     newGlobalTable(),
		functions:   make(map[string]uint32),
		functionPos: make(map[string]Position),
		top:         newFunctionScope(),
	}
}

// Chunk returns the chunk all units are compiled into.
func (c *Compiler) Chunk() *Chunk { return c.chunk }

// Functions returns the name-to-address table of declared functions.
func (c *Compiler) Functions() map[string]uint32 { return c.functions }

// Globals returns global names in index order.
func (c *Compiler) Globals() []string { return c.globals.names }

// Definition returns where a function or global was declared. Functions
// shadow globals, matching identifier resolution.
func (c *Compiler) Definition(name string) (Position, bool) {
	if pos, ok := c.functionPos[name]; ok {
		return pos, true
	}
	if id, ok := c.globals.lookup(name); ok {
		return c.globals.positions[id], true
	}
	return Position{}, false
}

// Disassemble renders the whole chunk.
func (c *Compiler) Disassemble() string {
	return c.chunk.Disassemble(c.functions)
}

// Compile compiles one unit read from r and appends it to the chunk,
// replacing the previous unit's trailing RET. Source tags the positions
// recorded for this unit. On failure the compiler is rolled back to its
// state before the call and the error is an *Error, or a read error from r.
func (c *Compiler) Compile(source int, r io.Reader) error {
	reopened := c.chunk.Len() > 0
	if reopened {
		c.chunk.popLast()
	}
	mark := c.snapshot(reopened)

	c.source = source
	c.lexer = NewLexer(r)
	c.fn = nil
	c.loops = c.loops[:0]
	c.advance()

	err := c.unit()
	if err == nil {
		err = c.lexer.Err()
	}
	if err != nil {
		c.restore(mark)
		log.Debugf("unit %d rejected: %s", source, err)
		return err
	}
	c.chunk.emit(vm.OpReturn)
	log.Debugf("unit %d compiled: %d bytes total", source, c.chunk.Len())
	return nil
}

// unit compiles top-level items until the end of input.
func (c *Compiler) unit() error {
	for c.tok.Type != TokenEnd {
		var err error
		if c.tok.Type == TokenFn {
			err = c.function()
		} else {
			err = c.topLevelStatement()
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Rollback
// ---------------------------------------------------------------------------

type snapshot struct {
	codeLen   uint32
	globals   int
	functions int
	reopened  bool
}

func (c *Compiler) snapshot(reopened bool) snapshot {
	return snapshot{
		codeLen:   c.chunk.Len(),
		globals:   len(c.globals.names),
		functions: len(c.functionOrder),
		reopened:  reopened,
	}
}

func (c *Compiler) restore(s snapshot) {
	c.chunk.truncate(s.codeLen)
	if s.reopened {
		c.chunk.emit(vm.OpReturn)
	}
	c.globals.truncate(s.globals)
	for _, name := range c.functionOrder[s.functions:] {
		delete(c.functions, name)
		delete(c.functionPos, name)
	}
	c.functionOrder = c.functionOrder[:s.functions]
	c.fn = nil
	c.loops = c.loops[:0]
	c.top.reset()
}

// ---------------------------------------------------------------------------
// Token helpers
// ---------------------------------------------------------------------------

func (c *Compiler) advance() {
	c.tok = c.lexer.NextToken()
}

// pos returns the current token's range.
func (c *Compiler) pos() Position {
	return Position{Source: c.source, Start: c.tok.Start, End: c.tok.End}
}

// errorf builds a compile fault at the current token.
func (c *Compiler) errorf(format string, args ...interface{}) error {
	return &Error{
		Message: fmt.Sprintf(format, args...),
		Pos:     c.pos(),
		atEnd:   c.tok.Type == TokenEnd,
	}
}

// expect fails unless the current token has type t. It does not advance.
func (c *Compiler) expect(t TokenType) error {
	if c.tok.Type != t {
		return c.errorf("Expected %s, found %s", t, c.tok.Type)
	}
	return nil
}

// consume checks for t and advances past it.
func (c *Compiler) consume(t TokenType) error {
	if err := c.expect(t); err != nil {
		return err
	}
	c.advance()
	return nil
}

// scope returns the slot allocator for the code being compiled.
func (c *Compiler) scope() *functionScope {
	if c.fn != nil {
		return c.fn
	}
	return c.top
}

// ---------------------------------------------------------------------------
// Top level
// ---------------------------------------------------------------------------

// function compiles a declaration. The body is laid out inline behind a
// jump so straight-line execution skips it:
//
//	JP  after
//	argc slots   <- function address
//	body
//	RET
//	after:
func (c *Compiler) function() error {
	c.advance()
	if err := c.expect(TokenIdentifier); err != nil {
		return err
	}
	name := c.tok.Literal
	if _, exists := c.functions[name]; exists {
		return c.errorf("Function \"%s\" already exists.", name)
	}
	namePos := c.pos()
	c.advance()
	if err := c.consume(TokenLParen); err != nil {
		return err
	}

	skip := c.chunk.emptyAddress()
	c.functions[name] = c.chunk.Len()
	c.functionOrder = append(c.functionOrder, name)
	c.functionPos[name] = namePos

	fn := newFunctionScope()
	argc := 0
	for c.tok.Type == TokenIdentifier {
		if argc == maxArguments {
			return c.errorf("Reached maximum function arguments number.")
		}
		if fn.declared(c.tok.Literal) {
			return c.errorf("Duplicate parameter \"%s\".", c.tok.Literal)
		}
		fn.declare(c.tok.Literal)
		argc++
		c.advance()
		if c.tok.Type != TokenComma {
			break
		}
		c.advance()
	}
	if err := c.consume(TokenRParen); err != nil {
		return err
	}

	slots := c.chunk.startFunction(uint8(argc))
	c.fn = fn
	c.lastReturn = false
	err := c.block()
	c.fn = nil
	if err != nil {
		return err
	}
	if !c.lastReturn {
		c.chunk.emit(vm.OpDrop)
		c.chunk.emit(vm.OpVoid)
		c.chunk.emit(vm.OpReturn)
	}
	c.chunk.patchU32(slots, fn.max-uint32(argc))
	c.chunk.patchJP(skip, c.chunk.Len())
	log.Debugf("function %s: argc=%d slots=%d", name, argc, fn.max-uint32(argc))
	return nil
}

// topLevelStatement compiles one statement outside any function. Its locals
// live in slots reserved by ENTER and released by LEAVE. Its value is
// dropped unless it is the last statement of the unit and was not closed
// by a semicolon, in which case it becomes the result of the run.
func (c *Compiler) topLevelStatement() error {
	c.top.reset()
	enter := c.chunk.enter()

	terminated := true
	var err error
	switch c.tok.Type {
	case TokenLet:
		err = c.let(true, true)
	case TokenReturn:
		err = c.errorf("Unable to use 'return' statement in this place.")
	default:
		terminated, err = c.statement(TokenEnd)
	}
	if err != nil {
		return err
	}

	n := c.top.max
	c.chunk.patchU32(enter, n)
	if n > 0 {
		c.chunk.emitU32(vm.OpLeave, n)
	}
	if terminated || c.tok.Type != TokenEnd {
		c.chunk.emit(vm.OpDrop)
	}
	return nil
}
