// Rill CLI - compiles and runs Rill scripts, or starts a REPL or the
// language server.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"
	"golang.org/x/term"

	"github.com/chazu/rill/manifest"
	"github.com/chazu/rill/server"

	_ "github.com/tliron/commonlog/simple"
)

const version = "0.1.0"

var log = commonlog.GetLogger("rill.cli")

// options are the run settings after merging flags over the manifest.
type options struct {
	stack  int
	trace  bool
	disasm bool
	cache  string // cache database path; empty disables the cache
}

func main() {
	verbosity := flag.Int("v", 0, "Log verbosity (1 info, 2 debug)")
	logPath := flag.String("log", "", "Write logs to this file instead of stderr")
	disasm := flag.Bool("disasm", false, "Print the compiled bytecode instead of running it")
	serve := flag.Bool("serve", false, "Start the language server on stdio")
	stack := flag.Int("stack", 0, "Operand stack capacity (default from rill.toml, else built in)")
	trace := flag.Bool("trace", false, "Log every dispatched instruction (needs -v 2)")
	noCache := flag.Bool("no-cache", false, "Ignore the compiled chunk cache")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: rill [options] [file.rill]\n\n")
		fmt.Fprintf(os.Stderr, "Runs a Rill script. Without a file, runs the entry named in rill.toml,\n")
		fmt.Fprintf(os.Stderr, "or starts a REPL when there is no manifest.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  rill                   # REPL, or the project entry\n")
		fmt.Fprintf(os.Stderr, "  rill main.rill         # Run a script\n")
		fmt.Fprintf(os.Stderr, "  rill -disasm main.rill # Show bytecode\n")
		fmt.Fprintf(os.Stderr, "  rill -serve            # Language server for editors\n")
	}
	flag.Parse()

	if *logPath != "" {
		commonlog.Configure(*verbosity, logPath)
	} else {
		commonlog.Configure(*verbosity, nil)
	}

	if *serve {
		// stdout carries the protocol, so nothing else may print to it.
		if err := server.NewLanguageServer(version).Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	m, err := manifest.FindAndLoad(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	opts := options{stack: *stack, trace: *trace, disasm: *disasm}
	if m != nil {
		log.Infof("using manifest %s", m.Dir)
		if opts.stack == 0 {
			opts.stack = m.VM.Stack
		}
		opts.trace = opts.trace || m.VM.Trace
		if m.Cache.Enabled && !*noCache {
			opts.cache = m.CachePath()
		}
	}

	path := flag.Arg(0)
	if path == "" && m != nil {
		entry, err := m.EntryPath()
		if err != nil {
			log.Infof("no entry script: %s", err)
		} else {
			path = entry
		}
	}

	if path == "" {
		interactive := term.IsTerminal(int(os.Stdin.Fd()))
		if err := runREPL(os.Stdin, os.Stdout, os.Stderr, opts, interactive); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	os.Exit(runFile(path, opts, os.Stdout, os.Stderr))
}
