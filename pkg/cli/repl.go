// pkg/cli/repl.go
package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"augset/pkg/augset"
)

// REPL drives an interactive session against one augset.Set[string]. It is
// adapted from the teacher's SQL REPL: same read-dispatch-print loop and
// dot-command conventions, but the statement grammar is a small fixed set
// of augset commands instead of SQL text.
type REPL struct {
	set   *augset.Set[string]
	shell *Shell

	out    io.Writer
	errOut io.Writer
}

// NewREPL builds a REPL over set, reading commands from input and writing
// results to output (errors to errOutput, or output if nil).
func NewREPL(set *augset.Set[string], input io.Reader, output, errOutput io.Writer) *REPL {
	if errOutput == nil {
		errOutput = output
	}
	return &REPL{
		set:    set,
		shell:  NewShell(input, output, errOutput),
		out:    output,
		errOut: errOutput,
	}
}

// Run reads commands until EOF or a ".quit"/".exit" command, dispatching each
// to ExecuteCommand and printing its result or error.
func (r *REPL) Run() {
	fmt.Fprintln(r.out, "augset interactive shell. Type .help for commands.")

	for {
		line, eof := r.shell.ReadCommand()
		trimmed := strings.TrimSpace(line)

		if trimmed != "" {
			if trimmed == ".quit" || trimmed == ".exit" {
				return
			}
			if err := r.ExecuteCommand(trimmed); err != nil {
				r.printError(err)
			}
		}

		if eof {
			return
		}
	}
}

// ExecuteCommand parses and runs a single command line against r.set.
func (r *REPL) ExecuteCommand(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	cmd := fields[0]
	args := fields[1:]

	switch cmd {
	case ".help":
		r.printHelp()
		return nil
	case ".insert":
		return r.cmdInsert(args)
	case ".remove":
		return r.cmdRemove(args)
	case ".find":
		return r.cmdFind(args)
	case ".check":
		return r.cmdCheck(args)
	case ".rankprefix":
		return r.cmdRankPrefix(args)
	case ".ranksuffix":
		return r.cmdRankSuffix(args)
	case ".stats":
		return r.cmdStats(args)
	case ".poolstats":
		return r.cmdPoolStats(args)
	default:
		return fmt.Errorf("unrecognized command %q, type .help for the command list", cmd)
	}
}

func (r *REPL) cmdInsert(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf(".insert takes exactly 2 arguments: KEY VALUE")
	}
	k, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid key %q: %w", args[0], err)
	}
	ok := r.set.Insert(k, args[1])
	fmt.Fprintf(r.out, "%v\n", ok)
	return nil
}

func (r *REPL) cmdRemove(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf(".remove takes exactly 1 argument: KEY")
	}
	k, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid key %q: %w", args[0], err)
	}
	ok := r.set.Remove(k)
	fmt.Fprintf(r.out, "%v\n", ok)
	return nil
}

func (r *REPL) cmdFind(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf(".find takes exactly 1 argument: KEY")
	}
	k, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid key %q: %w", args[0], err)
	}
	v, ok := r.set.Find(k)
	if !ok {
		fmt.Fprintln(r.out, "<absent>")
		return nil
	}
	fmt.Fprintln(r.out, v)
	return nil
}

func (r *REPL) cmdCheck(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf(".check takes no arguments")
	}
	fmt.Fprintln(r.out, r.set.Check())
	return nil
}

func (r *REPL) cmdRankPrefix(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf(".rankprefix takes exactly 1 argument: KEY")
	}
	k, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid key %q: %w", args[0], err)
	}
	fmt.Fprintln(r.out, r.set.RankPrefix(k))
	return nil
}

func (r *REPL) cmdRankSuffix(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf(".ranksuffix takes exactly 1 argument: KEY")
	}
	k, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid key %q: %w", args[0], err)
	}
	fmt.Fprintln(r.out, r.set.RankSuffix(k))
	return nil
}

func (r *REPL) cmdStats(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf(".stats takes no arguments")
	}
	st := r.set.Stats()
	fmt.Fprintf(r.out, "inserts=%d removes=%d finds=%d refreshRetries=%d reclaimed=%d\n",
		st.Inserts, st.Removes, st.Finds, st.RefreshRetries, st.Reclaimed)
	return nil
}

func (r *REPL) cmdPoolStats(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf(".poolstats takes no arguments")
	}
	nl, nt, vl, vt := r.set.PoolStats()
	fmt.Fprintf(r.out, "nodes: live=%d total=%d  versions: live=%d total=%d\n", nl, nt, vl, vt)
	return nil
}

func (r *REPL) printHelp() {
	fmt.Fprint(r.out, `commands:
  .insert KEY VALUE   insert KEY with VALUE, false if already present
  .remove KEY         remove KEY, false if absent
  .find KEY           print the value at KEY, or <absent>
  .check              print current cardinality
  .rankprefix KEY      print count of elements < KEY
  .ranksuffix KEY      print count of elements >= KEY
  .stats              print operation counters
  .poolstats          print node/version pool live/total counts
  .quit / .exit       leave the shell
`)
}

func (r *REPL) printError(err error) {
	fmt.Fprintf(r.errOut, "error: %v\n", err)
}
