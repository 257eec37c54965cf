// fuzzsh is an interactive shell for exploring bytefuzz output.
//
// Usage:
//
//	fuzzsh [-c config] [seed]
//
// Commands (in REPL):
//
//	seed <text>                Set the seed string (rest of line, may be empty)
//	load <file>                Set the seed from a seed file (lines are joined)
//	run <n> [limit]            Run n rounds and hex-dump up to limit bytes (default 256)
//	stats <n>                  Run n rounds and print counters only
//	len <n>                    Print the expected output length after n rounds
//	set <param> <value>        Set percent|interval|length
//	config                     Show current parameters
//	save <n> <file>            Run n rounds and write the raw bytes to file
//	help                       Show this help
//	exit / quit / q            Exit
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/bytefuzz/internal/config"
	"github.com/calvinalkan/bytefuzz/internal/fs"
	"github.com/calvinalkan/bytefuzz/internal/seed"
	"github.com/calvinalkan/bytefuzz/internal/sink"
	"github.com/calvinalkan/bytefuzz/pkg/mutator"
)

const defaultDumpLimit = 256

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flagSet := flag.NewFlagSet("fuzzsh", flag.ContinueOnError)
	configPath := flagSet.StringP("config", "c", "", "Use specified config file")

	err := flagSet.Parse(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}

		return err
	}

	env := map[string]string{
		"XDG_CONFIG_HOME": os.Getenv("XDG_CONFIG_HOME"),
		"HOME":            os.Getenv("HOME"),
	}

	cfg, err := config.Load(config.LoadInput{FS: fs.NewReal(), ConfigPath: *configPath, Env: env})
	if err != nil {
		return err
	}

	sh, err := newShell(cfg, fs.NewReal())
	if err != nil {
		return err
	}

	if flagSet.NArg() > 0 {
		sh.seed = strings.Join(flagSet.Args(), " ")
	}

	return sh.Run()
}

// shell holds the REPL state. Commands write to an io.Writer so they can be
// exercised without a terminal.
type shell struct {
	cfg      mutator.Config
	seed     string
	resolver *seed.Resolver
	fs       fs.FS
	liner    *liner.State
}

func newShell(cfg config.Config, fsys fs.FS) (*shell, error) {
	m := cfg.Mutator()

	err := m.Validate()
	if err != nil {
		return nil, err
	}

	return &shell{
		cfg:      m,
		resolver: seed.NewResolver(fsys, cfg.SeedFileSuffixes),
		fs:       fsys,
	}, nil
}

// historyFile returns the path to the history file.
func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".fuzzsh_history")
}

// Run starts the REPL loop.
func (s *shell) Run() error {
	s.liner = liner.NewLiner()
	defer s.liner.Close()

	s.liner.SetCtrlCAborts(true)
	s.liner.SetCompleter(s.completer)

	if f, err := os.Open(historyFile()); err == nil {
		_, _ = s.liner.ReadHistory(f)
		f.Close()
	}

	fmt.Printf("fuzzsh - bytefuzz shell (seed=%q)\n", s.seed)
	fmt.Println("Type 'help' for available commands.")
	fmt.Println()

	for {
		line, err := s.liner.Prompt("fuzzsh> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Println("\nBye!")

				break
			}

			return fmt.Errorf("reading input: %w", err)
		}

		if strings.TrimSpace(line) == "" {
			continue
		}

		s.liner.AppendHistory(line)

		if s.exec(os.Stdout, line) {
			break
		}
	}

	s.saveHistory()

	return nil
}

// saveHistory persists command history to disk.
func (s *shell) saveHistory() {
	if path := historyFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			_, _ = s.liner.WriteHistory(f)
			f.Close()
		}
	}
}

var commands = []string{
	"seed", "load", "run", "stats", "len",
	"set", "config", "save",
	"help", "exit", "quit", "q",
}

// completer provides tab completion for commands.
func (s *shell) completer(line string) []string {
	var completions []string

	lower := strings.ToLower(line)
	for _, cmd := range commands {
		if strings.HasPrefix(cmd, lower) {
			completions = append(completions, cmd)
		}
	}

	return completions
}

// exec runs one command line. Returns true when the shell should exit.
func (s *shell) exec(w io.Writer, line string) bool {
	line = strings.TrimSpace(line)
	name, rest, _ := strings.Cut(line, " ")
	args := strings.Fields(rest)

	var err error

	switch strings.ToLower(name) {
	case "exit", "quit", "q":
		fmt.Fprintln(w, "Bye!")

		return true
	case "help", "?":
		printHelp(w)
	case "seed":
		s.seed = rest
		fmt.Fprintf(w, "seed=%q (%d bytes)\n", s.seed, len(s.seed))
	case "load":
		err = s.cmdLoad(w, args)
	case "run":
		err = s.cmdRun(w, args)
	case "stats":
		err = s.cmdStats(w, args)
	case "len":
		err = s.cmdLen(w, args)
	case "set":
		err = s.cmdSet(w, args)
	case "config":
		s.cmdConfig(w)
	case "save":
		err = s.cmdSave(w, args)
	default:
		fmt.Fprintf(w, "Unknown command: %s (type 'help' for commands)\n", name)
	}

	if err != nil {
		fmt.Fprintf(w, "error: %v\n", err)
	}

	return false
}

func printHelp(w io.Writer) {
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  seed <text>            Set the seed string")
	fmt.Fprintln(w, "  load <file>            Set the seed from a seed file (lines are joined)")
	fmt.Fprintln(w, "  run <n> [limit]        Run n rounds, hex-dump up to limit bytes")
	fmt.Fprintln(w, "  stats <n>              Run n rounds, print counters only")
	fmt.Fprintln(w, "  len <n>                Expected output length after n rounds")
	fmt.Fprintln(w, "  set <param> <value>    Set percent|interval|length")
	fmt.Fprintln(w, "  config                 Show current parameters")
	fmt.Fprintln(w, "  save <n> <file>        Run n rounds, write raw bytes to file")
	fmt.Fprintln(w, "  help                   Show this help")
	fmt.Fprintln(w, "  exit / quit / q        Exit")
}

var errArgs = errors.New("wrong arguments")

func parseIterations(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: iterations must be a non-negative integer, got %q", errArgs, s)
	}

	return n, nil
}

func (s *shell) generate(n int) (mutator.Result, error) {
	m, err := mutator.New(s.cfg)
	if err != nil {
		return mutator.Result{}, err
	}

	src := mutator.NewSource(mutator.SeedFromString(s.seed))

	return m.Generate(context.Background(), []byte(s.seed), n, src)
}

func (s *shell) cmdLoad(w io.Writer, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: load <file>", errArgs)
	}

	text, err := s.resolver.ReadFile(args[0])
	if err != nil {
		return err
	}

	s.seed = text
	fmt.Fprintf(w, "seed=%q (%d bytes)\n", s.seed, len(s.seed))

	return nil
}

func (s *shell) cmdRun(w io.Writer, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("%w: run <n> [limit]", errArgs)
	}

	n, err := parseIterations(args[0])
	if err != nil {
		return err
	}

	limit := defaultDumpLimit

	if len(args) == 2 {
		limit, err = strconv.Atoi(args[1])
		if err != nil || limit < 0 {
			return fmt.Errorf("%w: limit must be a non-negative integer", errArgs)
		}
	}

	res, err := s.generate(n)
	if err != nil {
		return err
	}

	shown := res.Data
	if len(shown) > limit {
		shown = shown[:limit]
	}

	fmt.Fprint(w, hex.Dump(shown))

	if len(shown) < len(res.Data) {
		fmt.Fprintf(w, "... (%d more bytes)\n", len(res.Data)-len(shown))
	}

	printStats(w, res)

	return nil
}

func (s *shell) cmdStats(w io.Writer, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: stats <n>", errArgs)
	}

	n, err := parseIterations(args[0])
	if err != nil {
		return err
	}

	res, err := s.generate(n)
	if err != nil {
		return err
	}

	printStats(w, res)

	return nil
}

func printStats(w io.Writer, res mutator.Result) {
	rate := 0.0
	if res.Rounds > 0 {
		rate = float64(res.Mutations) / float64(res.Rounds)
	}

	fmt.Fprintf(w, "length=%d rounds=%d mutations=%d (%.1f/round) extensions=%d\n",
		len(res.Data), res.Rounds, res.Mutations, rate, res.Extensions)
}

func (s *shell) cmdLen(w io.Writer, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: len <n>", errArgs)
	}

	n, err := parseIterations(args[0])
	if err != nil {
		return err
	}

	fmt.Fprintln(w, mutator.ExpectedLength(s.cfg, len(s.seed), n))

	return nil
}

func (s *shell) cmdSet(w io.Writer, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: set <percent|interval|length> <value>", errArgs)
	}

	v, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("%w: value must be an integer", errArgs)
	}

	next := s.cfg

	switch strings.ToLower(args[0]) {
	case "percent":
		next.MutationPercent = v
	case "interval":
		next.ExtendInterval = v
	case "length":
		next.ExtendLength = v
	default:
		return fmt.Errorf("%w: unknown parameter %q", errArgs, args[0])
	}

	err = next.Validate()
	if err != nil {
		return err
	}

	s.cfg = next
	s.cmdConfig(w)

	return nil
}

func (s *shell) cmdConfig(w io.Writer) {
	fmt.Fprintf(w, "percent=%d interval=%d length=%d seed=%q\n",
		s.cfg.MutationPercent, s.cfg.ExtendInterval, s.cfg.ExtendLength, s.seed)
}

func (s *shell) cmdSave(w io.Writer, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: save <n> <file>", errArgs)
	}

	n, err := parseIterations(args[0])
	if err != nil {
		return err
	}

	res, err := s.generate(n)
	if err != nil {
		return err
	}

	delivery := sink.New(s.fs, w).Deliver(res.Data, args[1])
	if !delivery.OK() {
		return delivery.Err
	}

	fmt.Fprintf(w, "wrote %d bytes to %s\n", len(delivery.Data), delivery.Dest)

	return nil
}
