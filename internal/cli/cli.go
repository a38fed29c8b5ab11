package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/specialistvlad/harvest/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Command names a subcommand of the harvest binary.
type Command string

const (
	Translate Command = "translate"
)

const harvestUsage = `
Harvest - translate C projects into Rust cargo packages.

Usage:
  harvest <command> [options]

Commands:
  translate   Translate one C project.

Run 'harvest <command> -h' for the options of a command.
`

// Parse processes the arguments of the harvest binary. It returns the
// selected command and its options, true if the program should exit
// cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (Command, *app.Options, bool, error) {
	if len(args) == 0 {
		fmt.Fprint(output, harvestUsage)
		return "", nil, true, nil
	}
	switch args[0] {
	case "-h", "-help", "--help", "help":
		fmt.Fprint(output, harvestUsage)
		return "", nil, true, nil
	case string(Translate):
		opts, exit, err := ParseTranslate(args[1:], output)
		return Translate, opts, exit, err
	default:
		return "", nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("unknown command %q", args[0])}
	}
}

// ParseTranslate processes the options of `harvest translate`.
func ParseTranslate(args []string, output io.Writer) (*app.Options, bool, error) {
	return parse("harvest translate", `
Harvest translate - translate one C project into a cargo package.

Usage:
  harvest translate [options] [INPUT]

Arguments:
  INPUT
    Path to the C project directory. Overrides 'input' from config files.

Options:
`, args, output, false)
}

// ParseBenchmark processes the arguments of the harvest-bench binary.
func ParseBenchmark(args []string, output io.Writer) (*app.Options, bool, error) {
	return parse("harvest-bench", `
Harvest bench - translate a corpus of C programs and check them against
their recorded test vectors.

Usage:
  harvest-bench [options] [INPUT]

Arguments:
  INPUT
    A benchmark program directory, or a directory of them.

Options:
`, args, output, true)
}

// configPaths collects repeated -config flags.
type configPaths []string

func (c *configPaths) String() string { return strings.Join(*c, ",") }

func (c *configPaths) Set(v string) error {
	*c = append(*c, v)
	return nil
}

func parse(name, usage string, args []string, output io.Writer, bench bool) (*app.Options, bool, error) {
	slog.Debug("CLI parser started.", "command", name)
	flagSet := flag.NewFlagSet(name, flag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.Usage = func() {
		fmt.Fprint(output, usage)
		flagSet.PrintDefaults()
	}

	var configs configPaths
	flagSet.Var(&configs, "config", "Path to an .hcl config file or directory. May be repeated; later files win.")
	inputFlag := flagSet.String("input", "", "Path to the input directory.")
	outputFlag := flagSet.String("output", "", "Path to the output directory.")
	diagFlag := flagSet.String("diagnostics-dir", "", "Directory for diagnostics. A temporary directory is used when empty.")
	workersFlag := flagSet.Int("workers", 0, "Number of concurrent pipeline workers. 0 means one per CPU.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error', 'off'.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	forceFlag := flagSet.Bool("force", false, "Allow writing into a non-empty output directory.")

	var (
		timeoutFlag  *time.Duration
		parallelFlag *int
		healthFlag   *int
		noLibFlag    *bool
	)
	if bench {
		timeoutFlag = flagSet.Duration("timeout", 10*time.Second, "Timeout for each test vector execution.")
		parallelFlag = flagSet.Int("parallel", 1, "Number of programs to process at once.")
		healthFlag = flagSet.Int("healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
		noLibFlag = flagSet.Bool("no-lib", false, "Skip library programs (directories ending in _lib).")
	}

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	// Only flags given explicitly override config files.
	set := make(map[string]bool)
	flagSet.Visit(func(f *flag.Flag) { set[f.Name] = true })

	var o app.Options
	o.ConfigPaths = configs
	if *inputFlag != "" {
		o.Overrides.Input = inputFlag
	} else if flagSet.NArg() > 0 {
		in := flagSet.Arg(0)
		o.Overrides.Input = &in
	}
	if set["output"] {
		o.Overrides.Output = outputFlag
	}
	if set["diagnostics-dir"] {
		o.Overrides.DiagnosticsDir = diagFlag
	}
	if set["workers"] {
		o.Overrides.Workers = workersFlag
	}
	if set["force"] {
		o.Overrides.Force = forceFlag
	}

	if len(o.ConfigPaths) == 0 && o.Overrides.Input == nil {
		slog.Debug("No input or config provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	if set["log-format"] {
		logFormat := strings.ToLower(*logFormatFlag)
		if logFormat != "text" && logFormat != "json" {
			return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
		}
		o.Overrides.LogFormat = &logFormat
	}
	if set["log-level"] {
		logLevel := strings.ToLower(*logLevelFlag)
		switch logLevel {
		case "debug", "info", "warn", "error", "off":
		default:
			return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', 'error', or 'off'"}
		}
		o.Overrides.LogLevel = &logLevel
	}

	if bench {
		if set["timeout"] {
			o.Overrides.Timeout = timeoutFlag
		}
		if set["parallel"] {
			o.Overrides.Parallel = parallelFlag
		}
		o.HealthcheckPort = *healthFlag
		o.NoLib = *noLibFlag
	}
	slog.Debug("CLI parameter validation complete.")

	opts, err := app.NewOptions(o)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("CLI parser finished successfully.")
	return opts, false, nil
}
