package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/bytefuzz/internal/config"
	"github.com/calvinalkan/bytefuzz/internal/fs"
	"github.com/calvinalkan/bytefuzz/internal/seed"
	"github.com/calvinalkan/bytefuzz/internal/sink"
	"github.com/calvinalkan/bytefuzz/pkg/mutator"
)

// ErrUsage marks malformed invocations: wrong argument counts, bad flags,
// bad iteration counts.
var ErrUsage = errors.New("usage")

var errInterrupted = errors.New("interrupted")

// stdinSeed as the -s value reads the seed from stdin.
const stdinSeed = "-"

type options struct {
	seedArg     string
	hasSeedFlag bool
	output      string
	configPath  string
	workDir     string
	verbose     bool
	printConfig bool
	help        bool
	overrides   config.Overrides
	positional  []string
}

// Run is the main entry point. Returns exit code.
//
// sigCh may be nil. A value received on it cancels the run between rounds;
// nothing is written in that case.
func Run(stdin io.Reader, out io.Writer, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	o := NewIO(out, errOut)

	flagSet := newFlagSet()

	opts, err := parseArgs(flagSet, args)
	if err != nil {
		o.Errorf("%v", err)
		o.ErrPrintln()
		printUsage(errOut, flagSet)

		return 1
	}

	if opts.help {
		printUsage(out, flagSet)

		return 0
	}

	cfg, err := config.Load(config.LoadInput{
		FS:              fs.NewReal(),
		WorkDirOverride: opts.workDir,
		ConfigPath:      opts.configPath,
		Overrides:       opts.overrides,
		Env:             env,
	})
	if err != nil {
		o.Errorf("%v", err)

		return 1
	}

	if opts.printConfig {
		return printConfig(o, cfg)
	}

	iterations, err := validatePositional(&opts)
	if err != nil {
		o.Errorf("%v", err)
		o.ErrPrintln()
		printUsage(errOut, flagSet)

		return 1
	}

	level, _ := cfg.Level()
	if opts.verbose {
		level = slog.LevelDebug
	}

	logger := newLogger(errOut, level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if sigCh != nil {
		go func() {
			select {
			case sig := <-sigCh:
				logger.Debug("received signal, stopping", "signal", sig)
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	g := generator{
		io:       o,
		cfg:      cfg,
		logger:   logger,
		stdin:    stdin,
		resolver: seed.NewResolver(fs.NewReal(), cfg.SeedFileSuffixes),
		sink:     sink.New(fs.NewReal(), out),
	}

	err = g.run(ctx, opts, iterations)
	if err != nil {
		o.Errorf("%v", err)

		return 1
	}

	return 0
}

// generator wires seed resolution, the mutator, and the sink for one run.
type generator struct {
	io       *IO
	cfg      config.Config
	logger   *slog.Logger
	stdin    io.Reader
	resolver *seed.Resolver
	sink     *sink.Sink
}

func (g *generator) run(ctx context.Context, opts options, iterations int) error {
	src, err := g.resolveSeed(opts)
	if err != nil {
		return err
	}

	g.logger.Debug("resolved seed",
		"file", src.Path,
		"bytes", len(src.Seed),
		"iterations", iterations,
	)

	m, err := mutator.New(g.cfg.Mutator())
	if err != nil {
		return err
	}

	res, err := m.Generate(ctx, []byte(src.Seed), iterations, mutator.NewSource(mutator.SeedFromString(src.Seed)))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("%w after %d of %d rounds, no output written", errInterrupted, res.Rounds, iterations)
		}

		return err
	}

	g.logger.Debug("generated",
		"rounds", res.Rounds,
		"mutations", res.Mutations,
		"extensions", res.Extensions,
		"length", len(res.Data),
	)

	path := opts.output
	if path == "" && isTerminal(g.io.Out()) {
		g.io.Warn("writing raw bytes to a terminal", "redirect stdout or pass -o <output_file>")
	}

	if path != "" && !filepath.IsAbs(path) {
		path = filepath.Join(g.cfg.WorkDir, path)
	}

	delivery := g.sink.Deliver(res.Data, path)
	if !delivery.OK() {
		g.logger.Debug("output discarded", "dest", delivery.Dest, "bytes", len(delivery.Data))

		return delivery.Err
	}

	g.logger.Info("wrote output", "dest", delivery.Dest, "bytes", len(delivery.Data))

	return nil
}

func (g *generator) resolveSeed(opts options) (seed.Source, error) {
	if !opts.hasSeedFlag {
		return seed.Source{Seed: opts.seedArg}, nil
	}

	if opts.seedArg == stdinSeed {
		if g.stdin == nil {
			return seed.Source{}, fmt.Errorf("%w: no stdin", seed.ErrSeedUnavailable)
		}

		s, err := seed.ReadLines(g.stdin)
		if err != nil {
			return seed.Source{}, err
		}

		return seed.Source{Seed: s, Path: stdinSeed}, nil
	}

	arg := opts.seedArg
	if g.resolver.IsFile(arg) && !filepath.IsAbs(arg) {
		arg = filepath.Join(g.cfg.WorkDir, arg)
	}

	return g.resolver.Resolve(arg)
}

func newFlagSet() *flag.FlagSet {
	flagSet := flag.NewFlagSet("bytefuzz", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.SortFlags = false

	flagSet.StringP("seed", "s", "", "Seed string, or path to a seed file (lines are joined), or - for stdin")
	flagSet.StringP("output", "o", "", "Write output to `file` instead of stdout")
	flagSet.StringP("config", "c", "", "Use specified config `file`")
	flagSet.StringP("cwd", "C", "", "Run as if started in `dir`")
	flagSet.Int("mutation-percent", mutator.DefaultMutationPercent, "Chance in percent that a byte is replaced per round")
	flagSet.Int("extend-interval", mutator.DefaultExtendInterval, "Append fresh bytes every N rounds, starting at round 0")
	flagSet.Int("extend-length", mutator.DefaultExtendLength, "Number of bytes appended per extension")
	flagSet.BoolP("verbose", "v", false, "Log debug details to stderr")
	flagSet.String("log-level", "warn", "Log `level` on stderr: debug, info, warn or error")
	flagSet.Bool("print-config", false, "Print the resolved configuration and exit")
	flagSet.BoolP("help", "h", false, "Show help")

	return flagSet
}

func parseArgs(flagSet *flag.FlagSet, args []string) (options, error) {
	if len(args) > 0 {
		args = args[1:]
	}

	err := flagSet.Parse(args)
	if err != nil {
		return options{}, fmt.Errorf("%w: %w", ErrUsage, err)
	}

	var opts options

	opts.seedArg, _ = flagSet.GetString("seed")
	opts.hasSeedFlag = flagSet.Changed("seed")
	opts.output, _ = flagSet.GetString("output")
	opts.configPath, _ = flagSet.GetString("config")
	opts.workDir, _ = flagSet.GetString("cwd")
	opts.verbose, _ = flagSet.GetBool("verbose")
	opts.printConfig, _ = flagSet.GetBool("print-config")
	opts.help, _ = flagSet.GetBool("help")
	opts.positional = flagSet.Args()

	if flagSet.Changed("output") && opts.output == "" {
		return options{}, fmt.Errorf("%w: -o requires a non-empty file name", ErrUsage)
	}

	opts.overrides.MutationPercent = changedInt(flagSet, "mutation-percent")
	opts.overrides.ExtendInterval = changedInt(flagSet, "extend-interval")
	opts.overrides.ExtendLength = changedInt(flagSet, "extend-length")

	if flagSet.Changed("log-level") {
		level, _ := flagSet.GetString("log-level")
		opts.overrides.LogLevel = &level
	}

	return opts, nil
}

func changedInt(flagSet *flag.FlagSet, name string) *int {
	if !flagSet.Changed(name) {
		return nil
	}

	v, _ := flagSet.GetInt(name)

	return &v
}

// validatePositional checks the positional arguments and returns the
// iteration count. Without -s it also fills in the literal seed.
func validatePositional(opts *options) (int, error) {
	want := 2
	if opts.hasSeedFlag {
		want = 1
	}

	if len(opts.positional) != want {
		if opts.hasSeedFlag {
			return 0, fmt.Errorf("%w: with -s expected <num_iterations>, got %d arguments", ErrUsage, len(opts.positional))
		}

		return 0, fmt.Errorf("%w: expected <prng_seed> <num_iterations>, got %d arguments", ErrUsage, len(opts.positional))
	}

	if !opts.hasSeedFlag {
		opts.seedArg = opts.positional[0]
	}

	raw := opts.positional[want-1]

	iterations, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: num_iterations %q is not an integer", ErrUsage, raw)
	}

	if iterations < 0 {
		return 0, fmt.Errorf("%w: num_iterations must not be negative, got %d", ErrUsage, iterations)
	}

	return iterations, nil
}

func printConfig(o *IO, cfg config.Config) int {
	formatted, err := config.Format(cfg)
	if err != nil {
		o.Errorf("%v", err)

		return 1
	}

	o.Println(formatted)
	o.Println()
	o.Println("# Sources:")

	if cfg.Sources.Global != "" {
		o.Println("#   global:", cfg.Sources.Global)
	}

	if cfg.Sources.Project != "" {
		o.Println("#   project:", cfg.Sources.Project)
	}

	if cfg.Sources.Global == "" && cfg.Sources.Project == "" {
		o.Println("#   (using defaults only)")
	}

	return 0
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func printUsage(w io.Writer, flagSet *flag.FlagSet) {
	var b strings.Builder

	b.WriteString(`bytefuzz - deterministic fuzz input generator

Usage:
  bytefuzz [flags] <prng_seed> <num_iterations> [-o <output_file>]
  bytefuzz [flags] -s <seed_string_or_txt_file_path> <num_iterations> [-o <output_file>]

Mutates the seed for num_iterations rounds and writes the raw bytes.
The same seed and iteration count always produce the same bytes.
Use -- before a seed that starts with a dash: bytefuzz -- -x 100

Flags:
`)
	b.WriteString(flagSet.FlagUsages())

	_, _ = io.WriteString(w, b.String())
}
