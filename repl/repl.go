// Package repl is the interactive command loop a user drives a scan session
// through. Its command dispatch is modeled on the teacher domain's own
// DebugConsole.Step switch over a space-split command line, generalized from
// a single-letter NES debugger vocabulary to the attach/run/next/list/write
// vocabulary this tool needs, and its line editing is provided by
// github.com/chzyer/readline rather than a raw bufio.Reader since this loop
// runs indefinitely across an entire session rather than once per frame.
package repl

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/chzyer/readline"
	"github.com/golang/glog"

	"github.com/jyane/memscan/process"
	"github.com/jyane/memscan/scanner"
)

// attachedHandle is what a Session needs from an attached process: the
// scanner's read/write/enumerate contract plus lifecycle and naming. The
// real implementation is *process.Handle; tests substitute an in-memory one
// so they never need a real pid to attach to.
type attachedHandle interface {
	scanner.ProcessHandle
	Close() error
	Name() (string, error)
}

// Session holds everything a command needs to act on: the attached process
// (if any), the engine bound to it, and the most recent scan's results.
type Session struct {
	handle  attachedHandle
	engine  *scanner.Engine
	result  *scanner.ResultSet
	procPID int
	procTag string

	// openFunc attaches to a pid. It defaults to process.Open; tests
	// override it to avoid needing a real process to ptrace.
	openFunc func(pid int) (attachedHandle, error)
}

func newSession() *Session {
	return &Session{
		openFunc: func(pid int) (attachedHandle, error) { return process.Open(pid) },
	}
}

// Run drives the read-eval-print loop until the user quits or stdin closes.
// out is where successful results are written and errOut is where errors
// are written; both are parameters (rather than bare stdout/stderr) so tests
// can capture them separately.
func Run(out, errOut io.Writer) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "memscan> ",
		HistoryFile:     "",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()

	sess := newSession()
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read line: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if done := sess.dispatch(out, errOut, line); done {
			return nil
		}
	}
}

// dispatch executes one command line and reports whether the loop should
// exit. Every error is printed as a single line to errOut and the loop
// continues, matching the one-line stderr-and-continue error convention a
// REPL needs to stay usable across mistakes.
func (s *Session) dispatch(out, errOut io.Writer, line string) bool {
	fields := strings.Fields(line)
	command := fields[0]
	args := fields[1:]

	var err error
	switch command {
	case "attach", "a":
		err = s.attach(out, args)
	case "run", "r":
		err = s.run(out, args)
	case "next", "n":
		err = s.next(out, args)
	case "list", "l":
		err = s.list(out, args)
	case "write", "w":
		err = s.write(out, args)
	case "ps":
		err = s.ps(out)
	case "help", "h":
		printHelp(out)
	case "exit", "quit", "q":
		return true
	default:
		err = fmt.Errorf("unknown command: %s", command)
	}
	if err != nil {
		fmt.Fprintln(errOut, formatError(err))
	}
	return false
}

func (s *Session) attach(out io.Writer, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: attach <pid>")
	}
	pid, err := parsePID(args[0])
	if err != nil {
		return err
	}
	handle, err := s.openFunc(pid)
	if err != nil {
		return fmt.Errorf("IoError: %w", err)
	}
	if s.handle != nil {
		s.handle.Close()
	}
	name, err := handle.Name()
	if err != nil {
		glog.V(1).Infof("repl: could not read process name for pid %d: %v", pid, err)
		name = fmt.Sprintf("pid-%d", pid)
	}
	s.handle = handle
	s.engine = scanner.NewEngine(handle)
	s.result = nil
	s.procPID = pid
	s.procTag = name
	fmt.Fprintf(out, "Attached to process: %s\n", name)
	return nil
}

func (s *Session) run(out io.Writer, args []string) error {
	if s.engine == nil {
		return fmt.Errorf("NoAttachedProcess: no process is attached")
	}
	if len(args) != 1 {
		return fmt.Errorf("usage: run <predicate>")
	}
	predicate, err := scanner.ParsePredicate(args[0])
	if err != nil {
		return fmt.Errorf("ParseError: %w", err)
	}
	result, err := s.engine.Run(scanner.DefaultScanConfig(), predicate)
	if err != nil {
		return fmt.Errorf("IoError: %w", err)
	}
	s.result = result
	fmt.Fprintf(out, "Scan complete. %d results found\n", result.Count())
	return nil
}

func (s *Session) next(out io.Writer, args []string) error {
	if s.engine == nil {
		return fmt.Errorf("NoAttachedProcess: no process is attached")
	}
	if s.result == nil {
		return fmt.Errorf("NoPriorScan: run a scan before refining")
	}
	if len(args) != 1 {
		return fmt.Errorf("usage: next <predicate>")
	}
	predicate, err := scanner.ParsePredicate(args[0])
	if err != nil {
		return fmt.Errorf("ParseError: %w", err)
	}
	if err := s.engine.Refine(predicate, s.result); err != nil {
		return fmt.Errorf("IoError: %w", err)
	}
	fmt.Fprintf(out, "Scan complete. %d results left.\n", s.result.Count())
	return nil
}

// list prints every current hit. args carries an optional tag filter as its
// lone element; an unrecognised tag is a ParseError rather than a silent
// no-op, matching the spec's parse-error-on-malformed-input convention.
func (s *Session) list(out io.Writer, args []string) error {
	if s.result == nil {
		return fmt.Errorf("NoPriorScan: run a scan before listing")
	}
	var filter *scanner.Tag
	if len(args) == 1 {
		tag, err := scanner.ParseTag(args[0])
		if err != nil {
			return fmt.Errorf("ParseError: %w", err)
		}
		filter = &tag
	}
	for _, hit := range s.result.Flatten() {
		if filter != nil && hit.LastValue.Tag() != *filter {
			continue
		}
		fmt.Fprintf(out, "%016x: %s\n", hit.Address, hit.LastValue.Display())
	}
	return nil
}

// write applies value to every current hit, or to a single address when one
// is given as a second argument.
func (s *Session) write(out io.Writer, args []string) error {
	if s.handle == nil {
		return fmt.Errorf("NoAttachedProcess: no process is attached")
	}
	if s.result == nil {
		return fmt.Errorf("NoPriorScan: run a scan before writing")
	}
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("usage: write <value> [address-hex]")
	}
	predicate, err := scanner.ParsePredicate(args[0])
	if err != nil {
		return fmt.Errorf("ParseError: %w", err)
	}
	value, err := scanner.ValueFromPredicate(predicate)
	if err != nil {
		return fmt.Errorf("WriteRequiresExact: %w", err)
	}
	writer := scanner.NewWriter(s.handle)
	if len(args) == 2 {
		addr, err := parseAddress(args[1])
		if err != nil {
			return fmt.Errorf("ParseError: %w", err)
		}
		if err := writer.WriteOne(addr, value); err != nil {
			return fmt.Errorf("IoError: %w", err)
		}
		fmt.Fprintln(out, "Write successful")
		return nil
	}
	if err := writer.WriteAll(s.result, value); err != nil {
		return fmt.Errorf("IoError: %w", err)
	}
	fmt.Fprintln(out, "Write successful")
	return nil
}

func (s *Session) ps(out io.Writer) error {
	pids, err := process.EnumPIDs()
	if err != nil {
		return fmt.Errorf("IoError: %w", err)
	}
	sort.Ints(pids)
	for _, pid := range pids {
		name, err := process.Name(pid)
		if err != nil {
			// Processes exit or are unnameable (kernel threads, races
			// against the enumeration) between listing and naming; skip
			// rather than abort the whole listing.
			glog.V(1).Infof("repl: skipping pid %d: %v", pid, err)
			continue
		}
		fmt.Fprintf(out, "%d:%s\n", pid, name)
	}
	return nil
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, "commands:")
	fmt.Fprintln(out, "  attach|a <pid>         attach to a process")
	fmt.Fprintln(out, "  run|r <predicate>      run an initial scan")
	fmt.Fprintln(out, "  next|n <predicate>     refine the current results")
	fmt.Fprintln(out, "  list|l                 list current results")
	fmt.Fprintln(out, "  write|w <value>        write a value to every current result")
	fmt.Fprintln(out, "  ps                     list running processes")
	fmt.Fprintln(out, "  help|h                 show this message")
	fmt.Fprintln(out, "  exit|quit|q            leave the program")
}

func parseAddress(text string) (uintptr, error) {
	text = strings.TrimPrefix(strings.TrimPrefix(text, "0x"), "0X")
	var addr uint64
	if _, err := fmt.Sscanf(text, "%x", &addr); err != nil {
		return 0, fmt.Errorf("invalid address %q", text)
	}
	return uintptr(addr), nil
}

func parsePID(text string) (int, error) {
	var pid int
	if _, err := fmt.Sscanf(text, "%d", &pid); err != nil || pid <= 0 {
		return 0, fmt.Errorf("ParseError: invalid pid %q", text)
	}
	return pid, nil
}

// formatError renders an error for the REPL's stderr-and-continue contract.
// Most errors constructed above already carry their taxonomy tag (ParseError,
// IoError, ...) as a prefix via fmt.Errorf; usage and unknown-command errors
// carry none. This just flattens the chain.
func formatError(err error) string {
	return "error: " + err.Error()
}
