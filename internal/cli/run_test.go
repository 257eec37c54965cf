package cli_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/calvinalkan/bytefuzz/internal/cli"
	"github.com/calvinalkan/bytefuzz/pkg/mutator"
)

func expected(t *testing.T, seed string, iterations int) []byte {
	t.Helper()

	m, err := mutator.New(mutator.DefaultConfig())
	if err != nil {
		t.Fatalf("mutator.New: %v", err)
	}

	return m.RunString(seed, iterations)
}

func assertBytes(t *testing.T, want, got []byte) {
	t.Helper()

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("output mismatch (-want +got):\n%s", diff)
	}
}

func Test_Outputs_Seed_Unchanged_When_Zero_Iterations(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	assertBytes(t, []byte{0x61, 0x62, 0x63}, c.MustRun("abc", "0"))
}

func Test_Outputs_Mutated_Bytes_When_Literal_Seed(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	got := c.MustRun("abc", "1")

	if got, want := len(got), 13; got != want {
		t.Fatalf("len=%d, want=%d", got, want)
	}

	assertBytes(t, expected(t, "abc", 1), got)
}

func Test_Outputs_Twenty_Bytes_When_Empty_Seed_And_Thousand_Iterations(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	got := c.MustRun("", "1000")

	if got, want := len(got), 20; got != want {
		t.Fatalf("len=%d, want=%d", got, want)
	}
}

func Test_Output_Is_Identical_When_Run_Twice(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	first := c.MustRun("determinism", "2000")
	second := c.MustRun("determinism", "2000")

	assertBytes(t, first, second)
}

func Test_Reads_Seed_File_When_Seed_Flag_Names_Txt_File(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile("seed.txt", "AB\nCD\n")

	got := c.MustRun("-s", "seed.txt", "700")

	assertBytes(t, expected(t, "ABCD", 700), got)
	assertBytes(t, c.MustRun("ABCD", "700"), got)
}

func Test_Uses_Literal_When_Seed_Flag_Has_No_File_Suffix(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	assertBytes(t, c.MustRun("hello", "3"), c.MustRun("-s", "hello", "3"))
}

func Test_Treats_Positional_Seed_As_Literal_When_It_Ends_In_Txt(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile("seed.txt", "ignored")

	assertBytes(t, []byte("seed.txt"), c.MustRun("seed.txt", "0"))
}

func Test_Treats_Dash_Prefixed_Seed_As_Literal_When_After_Double_Dash(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	assertBytes(t, []byte("-x"), c.MustRun("--", "-x", "0"))
	assertBytes(t, expected(t, "-x", 9), c.MustRun("--", "-x", "9"))
}

func Test_Suggests_Double_Dash_When_Seed_Looks_Like_Flag(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	stderr := c.MustFail("-x", "0")

	cli.AssertContains(t, stderr, "error: usage")
	cli.AssertContains(t, stderr, "unknown shorthand flag: 'x'")
	cli.AssertContains(t, stderr, "bytefuzz -- -x 100")
}

func Test_Reads_Seed_From_Stdin_When_Seed_Flag_Is_Dash(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	stdout, stderr, code := c.RunWithInput("AB\nCD\n", "-s", "-", "0")
	if code != 0 {
		t.Fatalf("exit=%d stderr=%s", code, stderr)
	}

	assertBytes(t, []byte("ABCD"), []byte(stdout))
}

func Test_Writes_File_And_Nothing_To_Stdout_When_Output_Flag(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	stdout := c.MustRun("abc", "42", "-o", "out.bin")
	if len(stdout) != 0 {
		t.Fatalf("stdout should be empty, got %d bytes", len(stdout))
	}

	assertBytes(t, expected(t, "abc", 42), c.ReadFile("out.bin"))
}

func Test_Writes_File_When_Output_Flag_Follows_Seed_Flag(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile("seed.txt", "xyz")

	c.MustRun("-s", "seed.txt", "10", "-o", "out.bin")

	assertBytes(t, expected(t, "xyz", 10), c.ReadFile("out.bin"))
}

func Test_Fails_With_Usage_When_Arguments_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		args       []string
		wantStderr string
	}{
		{name: "no arguments", args: nil, wantStderr: "expected <prng_seed> <num_iterations>, got 0"},
		{name: "seed only", args: []string{"abc"}, wantStderr: "got 1 arguments"},
		{name: "too many", args: []string{"abc", "1", "extra"}, wantStderr: "got 3 arguments"},
		{name: "seed flag without iterations", args: []string{"-s", "abc"}, wantStderr: "with -s expected <num_iterations>"},
		{name: "seed flag plus positional seed", args: []string{"-s", "abc", "def", "1"}, wantStderr: "got 2 arguments"},
		{name: "seed flag missing value", args: []string{"-s"}, wantStderr: "flag needs an argument"},
		{name: "output flag missing value", args: []string{"abc", "1", "-o"}, wantStderr: "flag needs an argument"},
		{name: "empty output", args: []string{"abc", "1", "-o", ""}, wantStderr: "-o requires a non-empty file name"},
		{name: "non integer iterations", args: []string{"abc", "many"}, wantStderr: `"many" is not an integer`},
		{name: "negative iterations", args: []string{"--", "abc", "-1"}, wantStderr: "must not be negative"},
		{name: "unknown flag", args: []string{"--bogus", "abc", "1"}, wantStderr: "unknown flag: --bogus"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			c := cli.NewCLI(t)
			stderr := c.MustFail(tc.args...)

			cli.AssertContains(t, stderr, "error: usage")
			cli.AssertContains(t, stderr, tc.wantStderr)
			cli.AssertContains(t, stderr, "Usage:")
		})
	}
}

func Test_Fails_Before_Mutating_When_Seed_File_Missing(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	stderr := c.MustFail("-s", "missing.txt", "10", "-o", "out.bin")

	cli.AssertContains(t, stderr, "seed unavailable")

	if _, err := os.Stat(filepath.Join(c.Dir, "out.bin")); !os.IsNotExist(err) {
		t.Fatalf("output file must not exist, stat err=%v", err)
	}
}

func Test_Reports_Output_Error_And_Writes_Nothing_When_Output_Dir_Missing(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	stderr := c.MustFail("abc", "10", "-o", filepath.Join("no", "such", "dir", "out.bin"))

	cli.AssertContains(t, stderr, "cannot write output")
}

func Test_Prints_Help_To_Stdout_When_Help_Flag(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	for _, flag := range []string{"-h", "--help"} {
		stdout, stderr, code := c.Run(flag)

		if code != 0 {
			t.Fatalf("%s: exit=%d stderr=%s", flag, code, stderr)
		}

		cli.AssertContains(t, stdout, "Usage:")
		cli.AssertContains(t, stdout, "--mutation-percent")
		cli.AssertContains(t, stdout, "-s, --seed")
		cli.AssertContains(t, stdout, "--log-level")
		cli.AssertContains(t, stdout, "Use -- before a seed")
	}
}

func Test_Applies_Flag_Overrides_When_Given(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	got := c.MustRun("--extend-length", "0", "abc", "5")
	if got, want := len(got), 3; got != want {
		t.Fatalf("len=%d, want=%d", got, want)
	}

	got = c.MustRun("--mutation-percent=0", "--extend-interval=2", "abc", "5")
	if got, want := len(got), 3+10*3; got != want {
		t.Fatalf("len=%d, want=%d", got, want)
	}

	if !bytes.HasPrefix(got, []byte("abc")) {
		t.Fatalf("0%% mutation must keep the seed prefix, got %q", got[:3])
	}
}

func Test_Fails_When_Flag_Override_Out_Of_Range(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	stderr := c.MustFail("--mutation-percent", "101", "abc", "5")

	cli.AssertContains(t, stderr, "invalid config")
}

func Test_Fails_Without_Panic_When_Extend_Length_Huge(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	stderr := c.MustFail("abc", "9223372036854775807", "--extend-length", "4611686018427387904")

	cli.AssertContains(t, stderr, "invalid config")
	cli.AssertContains(t, stderr, "extend length")
}

func Test_Stops_Without_Panic_When_Max_Iterations_Interrupted(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	sigCh := make(chan os.Signal, 1)
	sigCh <- os.Interrupt

	var stdout, stderr bytes.Buffer

	args := []string{"bytefuzz", "--cwd", c.Dir, "abc", "9223372036854775807"}
	code := cli.Run(nil, &stdout, &stderr, args, c.Env, sigCh)

	if got, want := code, 1; got != want {
		t.Fatalf("exit=%d, want=%d stderr=%s", got, want, stderr.String())
	}

	cli.AssertContains(t, stderr.String(), "interrupted")
}

func Test_Applies_Project_Config_When_Present(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile(".bytefuzz.json", `{
		// grow faster
		"extend_length": 1,
		"extend_interval": 1,
	}`)

	got := c.MustRun("abc", "4")
	if got, want := len(got), 7; got != want {
		t.Fatalf("len=%d, want=%d", got, want)
	}
}

func Test_Logs_Run_Details_When_Verbose(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	stdout, stderr, code := c.Run("-v", "abc", "1", "-o", "out.bin")
	if code != 0 {
		t.Fatalf("exit=%d stderr=%s", code, stderr)
	}

	if stdout != "" {
		t.Fatalf("stdout should be empty, got %q", stdout)
	}

	cli.AssertContains(t, stderr, "level=DEBUG")
	cli.AssertContains(t, stderr, "msg=generated")
	cli.AssertContains(t, stderr, "extensions=1")
	cli.AssertContains(t, stderr, "length=13")
}

func Test_Logs_At_Configured_Level_When_Log_Level_Flag(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	_, stderr, code := c.Run("--log-level", "info", "abc", "1", "-o", "out.bin")
	if code != 0 {
		t.Fatalf("exit=%d stderr=%s", code, stderr)
	}

	cli.AssertContains(t, stderr, "level=INFO")
	cli.AssertContains(t, stderr, `msg="wrote output"`)
	cli.AssertNotContains(t, stderr, "level=DEBUG")

	stdout := string(c.MustRun("--log-level=error", "--print-config"))
	cli.AssertContains(t, stdout, `"log_level": "error"`)
}

func Test_Fails_When_Log_Level_Unknown(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	stderr := c.MustFail("--log-level", "loud", "abc", "1")

	cli.AssertContains(t, stderr, "unknown log level")
}

func Test_Stays_Quiet_On_Stderr_When_Not_Verbose(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	_, stderr, code := c.Run("abc", "1")
	if code != 0 {
		t.Fatalf("exit=%d stderr=%s", code, stderr)
	}

	if stderr != "" {
		t.Fatalf("stderr should be empty, got %q", stderr)
	}
}

func Test_Stops_Without_Output_When_Signal_Received(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	sigCh := make(chan os.Signal, 1)
	sigCh <- os.Interrupt

	var stdout, stderr bytes.Buffer

	args := []string{"bytefuzz", "--cwd", c.Dir, "x", "100000000"}
	code := cli.Run(nil, &stdout, &stderr, args, c.Env, sigCh)

	if got, want := code, 1; got != want {
		t.Fatalf("exit=%d, want=%d", got, want)
	}

	if stdout.Len() != 0 {
		t.Fatalf("stdout should be empty, got %d bytes", stdout.Len())
	}

	cli.AssertContains(t, stderr.String(), "interrupted")
}
