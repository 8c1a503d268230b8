package compiler

// block holds the names declared directly in one lexical block.
type block struct {
	names map[string]uint32
	count uint32
}

// functionScope allocates local slots for one frame. Slots are released
// when their block closes and reused by later siblings; max records the
// high-water mark, which becomes the frame's reserved slot count.
type functionScope struct {
	blocks  []*block
	counter uint32
	max     uint32
}

func newFunctionScope() *functionScope {
	f := &functionScope{}
	f.enter()
	return f
}

func (f *functionScope) enter() {
	f.blocks = append(f.blocks, &block{names: make(map[string]uint32)})
}

func (f *functionScope) exit() {
	last := f.blocks[len(f.blocks)-1]
	f.blocks = f.blocks[:len(f.blocks)-1]
	f.counter -= last.count
}

// declare binds name in the innermost block. Redeclaring a name in the same
// block reuses its slot.
func (f *functionScope) declare(name string) uint32 {
	b := f.blocks[len(f.blocks)-1]
	if id, ok := b.names[name]; ok {
		return id
	}
	id := f.counter
	b.names[name] = id
	b.count++
	f.counter++
	if f.counter > f.max {
		f.max = f.counter
	}
	return id
}

// declared reports whether name is bound in the innermost block.
func (f *functionScope) declared(name string) bool {
	_, ok := f.blocks[len(f.blocks)-1].names[name]
	return ok
}

// lookup resolves name from the innermost block outwards.
func (f *functionScope) lookup(name string) (uint32, bool) {
	for i := len(f.blocks) - 1; i >= 0; i-- {
		if id, ok := f.blocks[i].names[name]; ok {
			return id, true
		}
	}
	return 0, false
}

// reset empties the scope down to a fresh base block.
func (f *functionScope) reset() {
	f.blocks = f.blocks[:0]
	f.counter, f.max = 0, 0
	f.enter()
}

// globalTable assigns global indices in declaration order and remembers
// where each global was first declared.
type globalTable struct {
	ids       map[string]uint32
	names     []string
	positions []Position
}

func newGlobalTable() *globalTable {
	return &globalTable{ids: make(map[string]uint32)}
}

func (g *globalTable) declare(name string, pos Position) uint32 {
	if id, ok := g.ids[name]; ok {
		return id
	}
	id := uint32(len(g.names))
	g.ids[name] = id
	g.names = append(g.names, name)
	g.positions = append(g.positions, pos)
	return id
}

func (g *globalTable) lookup(name string) (uint32, bool) {
	id, ok := g.ids[name]
	return id, ok
}

// truncate forgets every global declared after the first n.
func (g *globalTable) truncate(n int) {
	for _, name := range g.names[n:] {
		delete(g.ids, name)
	}
	g.names = g.names[:n]
	g.positions = g.positions[:n]
}

// loop tracks one enclosing loop: where continue jumps and which break
// placeholders still need the exit address.
type loop struct {
	start  uint32
	breaks []uint32
}

type loopStack []loop

func (s *loopStack) push(start uint32) {
	*s = append(*s, loop{start: start})
}

// pop removes the innermost loop and returns its break placeholders.
func (s *loopStack) pop() []uint32 {
	last := (*s)[len(*s)-1]
	*s = (*s)[:len(*s)-1]
	return last.breaks
}

func (s *loopStack) addBreak(at uint32) {
	top := &(*s)[len(*s)-1]
	top.breaks = append(top.breaks, at)
}

func (s loopStack) inLoop() bool { return len(s) > 0 }

func (s loopStack) continueTarget() uint32 {
	return s[len(s)-1].start
}
