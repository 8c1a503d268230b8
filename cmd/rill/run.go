package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/chazu/rill/compiler"
	"github.com/chazu/rill/report"
	"github.com/chazu/rill/stdlib"
	"github.com/chazu/rill/store"
	"github.com/chazu/rill/vm"
)

// runFile compiles and runs one script and returns the process exit code.
func runFile(path string, opts options, out, errOut io.Writer) int {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(errOut, "Error: %v\n", err)
		return 1
	}

	natives := vm.NewNatives()
	stdlib.Register(natives, out)

	var srcs sources
	srcs.add(path, src)

	prog, err := load(src, natives, opts.cache)
	if err != nil {
		srcs.report(errOut, nil, err)
		return 1
	}

	if opts.disasm {
		fmt.Fprint(out, vm.Disassemble(prog.Code, vm.FunctionLabels(prog.Functions)))
		return 0
	}

	chunk := prog.Compiled()
	m := vm.NewMachine(opts.stack, natives)
	m.Trace = opts.trace
	if _, err := m.Run(chunk.Code()); err != nil {
		srcs.report(errOut, chunk, err)
		return 1
	}
	return 0
}

// load returns the compiled program for src, from the cache at cachePath
// when it has an entry and compiling (then storing) it otherwise. Cache
// failures are logged and never fail the run.
func load(src []byte, natives *vm.Natives, cachePath string) (*store.Chunk, error) {
	var cache *store.Cache
	key := store.Key(src, natives)
	if cachePath != "" {
		c, err := store.OpenCache(cachePath)
		if err != nil {
			log.Warningf("chunk cache disabled: %s", err)
		} else {
			cache = c
			defer cache.Close()
			prog, err := cache.Get(key)
			if err == nil {
				return prog, nil
			}
			if !errors.Is(err, store.ErrNotCached) {
				log.Warningf("reading chunk cache: %s", err)
			}
		}
	}

	c := compiler.New(natives)
	if err := c.Compile(0, bytes.NewReader(src)); err != nil {
		return nil, err
	}
	prog := store.FromCompiler(c)
	if cache != nil {
		if err := cache.Put(key, prog); err != nil {
			log.Warningf("writing chunk cache: %s", err)
		}
	}
	return prog, nil
}

// sources maps compiler source ids to the text they were compiled from, so
// faults can be shown against the right input.
type sources struct {
	names []string
	texts [][]byte
}

func (s *sources) add(name string, text []byte) int {
	s.names = append(s.names, name)
	s.texts = append(s.texts, text)
	return len(s.names) - 1
}

// drop forgets the most recently added source.
func (s *sources) drop() {
	s.names = s.names[:len(s.names)-1]
	s.texts = s.texts[:len(s.texts)-1]
}

// report writes err to w. Compile faults and run faults with a recorded
// position are rendered against their source line.
func (s *sources) report(w io.Writer, chunk *compiler.Chunk, err error) {
	if cerr, ok := compiler.AsError(err); ok {
		s.render(w, cerr.Pos, cerr.Message)
		return
	}
	if f, ok := vm.AsFault(err); ok && chunk != nil {
		if pos, ok := chunk.PositionOf(f.PC); ok {
			s.render(w, pos, f.Error())
			return
		}
		fmt.Fprintf(w, "Error at pc %d: %s\n", f.PC, f.Error())
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}

func (s *sources) render(w io.Writer, pos compiler.Position, message string) {
	if pos.Source < 0 || pos.Source >= len(s.texts) {
		fmt.Fprintf(w, "Error: %s\n", message)
		return
	}
	if err := report.Render(w, s.names[pos.Source], s.texts[pos.Source], message, pos.Start, pos.End); err != nil {
		log.Errorf("rendering diagnostic: %s", err)
	}
}
