package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/chazu/rill/compiler"
	"github.com/chazu/rill/stdlib"
	"github.com/chazu/rill/vm"
)

const replSource = "<repl>"

// repl keeps one compiler and one machine for the whole session, so
// globals and functions from earlier inputs stay usable.
type repl struct {
	out, errOut io.Writer
	compiler    *compiler.Compiler
	machine     *vm.Machine
	sources     sources
}

// runREPL reads units from in until EOF or :quit. Input that ends in the
// middle of a construct is kept and continued on the next line; an empty
// line submits it as is. Prompts are written only when interactive.
func runREPL(in io.Reader, out, errOut io.Writer, opts options, interactive bool) error {
	natives := vm.NewNatives()
	stdlib.Register(natives, out)

	r := &repl{
		out:      out,
		errOut:   errOut,
		compiler: compiler.New(natives),
		machine:  vm.NewMachine(opts.stack, natives),
	}
	r.machine.Trace = opts.trace

	if interactive {
		fmt.Fprintln(out, "Rill REPL (:help for commands)")
	}

	scanner := bufio.NewScanner(in)
	var pending strings.Builder
	for {
		if interactive {
			if pending.Len() == 0 {
				fmt.Fprint(out, ">> ")
			} else {
				fmt.Fprint(out, ".. ")
			}
		}
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()

		if pending.Len() == 0 && strings.HasPrefix(line, ":") {
			if !r.command(strings.TrimSpace(line)) {
				return nil
			}
			continue
		}

		force := line == "" && pending.Len() > 0
		pending.WriteString(line)
		pending.WriteByte('\n')
		input := pending.String()
		if strings.TrimSpace(input) == "" {
			pending.Reset()
			continue
		}

		if r.eval(input, force) {
			pending.Reset()
		}
	}
	return scanner.Err()
}

// eval compiles and runs one unit. It returns false when the unit is
// incomplete and more input should be appended.
func (r *repl) eval(input string, force bool) bool {
	id := r.sources.add(replSource, []byte(input))
	if err := r.compiler.Compile(id, strings.NewReader(input)); err != nil {
		cerr, ok := compiler.AsError(err)
		wait := ok && cerr.Incomplete() && !force
		if !wait {
			r.sources.report(r.errOut, nil, err)
		}
		r.sources.drop()
		return !wait
	}

	chunk := r.compiler.Chunk()
	v, err := r.machine.Run(chunk.Code())
	if err != nil {
		r.sources.report(r.errOut, chunk, err)
		r.machine.Resume(chunk.Len() - 1)
		return true
	}
	if !v.IsVoid() {
		fmt.Fprintln(r.out, v)
	}
	return true
}

// command handles a ':' line and reports whether the session continues.
func (r *repl) command(cmd string) bool {
	switch cmd {
	case ":help", ":h", ":?":
		fmt.Fprintln(r.out, "REPL Commands:")
		fmt.Fprintln(r.out, "  :help, :h, :?     Show this help")
		fmt.Fprintln(r.out, "  :globals          List globals and their values")
		fmt.Fprintln(r.out, "  :disasm           Show the bytecode compiled so far")
		fmt.Fprintln(r.out, "  :quit, :q         Exit REPL")
	case ":globals":
		for i, name := range r.compiler.Globals() {
			if v, ok := r.machine.Global(i); ok {
				fmt.Fprintf(r.out, "%s = %s\n", name, v)
			} else {
				fmt.Fprintf(r.out, "%s (unset)\n", name)
			}
		}
	case ":disasm":
		fmt.Fprint(r.out, r.compiler.Disassemble())
	case ":quit", ":q":
		return false
	default:
		fmt.Fprintf(r.out, "Unknown command: %s (type :help for commands)\n", cmd)
	}
	return true
}
