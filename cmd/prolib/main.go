package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	prolib "github.com/plkit/prolib/pkg"
)

const programName = "prolib"

// commandSpec describes the arity and usage line of a command
type commandSpec struct {
	args  int
	usage string
}

var commands = map[string]commandSpec{
	"list":    {args: 1, usage: "list <library>"},
	"extract": {args: 1, usage: "extract <library> [-p|--pattern GLOB]..."},
	"compare": {args: 2, usage: "compare <source> <target> [-i|--showIdenticals]"},
}

// commandOnly maps command-only options to their command
var commandOnly = map[string]string{
	"pattern":        "extract",
	"directory":      "extract",
	"showIdenticals": "compare",
}

// usageError is a malformed command line
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func newOptions() *ParsedOptions {
	options := NewParsedOptions()

	// Global options
	options.DefineOption("help", "h", OptionTypeBool, "false", "Show help message")
	options.DefineOption("version", "", OptionTypeBool, "false", "Show version information")
	options.DefineOption("verbose", "v", OptionTypeInt, "0", "Enable verbose output (can be repeated for more verbosity)")
	options.DefineOption("debug", "", OptionTypeString, "", "Comma-separated debug flags (toc, rcode)")
	options.DefineOption("format", "", OptionTypeString, "", "Report format (human|json, default: human)")
	options.DefineOption("config", "", OptionTypeString, "", "Configuration file (default: $PROLIB_CONFIG or ~/.config/prolib/config)")
	options.DefineOption("set", "s", OptionTypeStringList, "", "Override a configuration value (key:value, repeatable)")

	// Command options
	options.DefineOption("directory", "C", OptionTypeString, "", "extract: destination directory (default: current directory)")
	options.DefineOption("pattern", "p", OptionTypeStringList, "", "extract: only entries matching the glob (repeatable)")
	options.DefineOption("showIdenticals", "i", OptionTypeBool, "false", "compare: also report identical entries")

	return options
}

// run executes one command line and returns the process exit status
func run(args []string, stdout, stderr io.Writer) int {
	prolib.SetVerboseOutput(stderr)
	defer prolib.SetVerboseOutput(nil)

	options := newOptions()
	if err := options.Parse(args); err != nil {
		return usageFailure(stderr, options, err)
	}

	// Handle version first (before help)
	if options.GetBool("version") {
		fmt.Fprintf(stdout, "%s %s\n", programName, getVersionString())
		return 0
	}

	positional := options.GetArgs()

	// Handle help
	if options.GetBool("help") {
		showHelp(stdout, options)
		return 0
	}
	if len(positional) == 0 {
		return usageFailure(stderr, options, &usageError{"missing command"})
	}
	if positional[0] == "help" {
		if len(positional) > 2 {
			return usageFailure(stderr, options, &usageError{"help takes at most one command"})
		}
		if len(positional) == 2 {
			if err := showCommandHelp(stdout, positional[1]); err != nil {
				return usageFailure(stderr, options, err)
			}
			return 0
		}
		showHelp(stdout, options)
		return 0
	}

	command := positional[0]
	if err := validateCommand(command, positional[1:], options); err != nil {
		return usageFailure(stderr, options, err)
	}

	cfg, err := loadConfig(options)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", programName, err)
		return 1
	}
	defer prolib.SetVerboseLevel(0)
	defer prolib.SetDebugFlags("")

	switch command {
	case "list":
		err = runList(stdout, positional[1], cfg)
	case "extract":
		err = runExtract(stderr, positional[1], cfg)
	case "compare":
		err = runCompare(stdout, positional[1], positional[2], cfg)
	}
	if err != nil {
		return commandFailure(stderr, err)
	}
	return 0
}

// validateCommand checks the command name, its arity and command-only options
func validateCommand(command string, args []string, options *ParsedOptions) error {
	cmd, ok := commands[command]
	if !ok {
		return &usageError{fmt.Sprintf("unknown command '%s'", command)}
	}
	if len(args) != cmd.args {
		return &usageError{fmt.Sprintf("%s expects %d argument(s), got %d\nUsage: %s %s",
			command, cmd.args, len(args), programName, cmd.usage)}
	}
	for option, owner := range commandOnly {
		if owner != command && options.IsSet(option) {
			return &usageError{fmt.Sprintf("option --%s is only valid with the %s command", option, owner)}
		}
	}
	if err := prolib.ValidatePatterns(options.GetStrings("pattern")); err != nil {
		return &usageError{err.Error()}
	}
	return nil
}

// loadConfig reads the configuration file and applies --set overrides and
// command-line options on top of it
func loadConfig(options *ParsedOptions) (*prolib.AllConfig, error) {
	configPath := options.GetString("config")
	if configPath == "" {
		configPath = prolib.DefaultConfigPath()
	}

	config, err := prolib.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if err := config.ApplyOverrides(options.GetStrings("set")); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	cfg := config.GetAllConfig()
	if options.IsSet("format") {
		if err := prolib.ValidateOutputFormat(options.GetString("format")); err != nil {
			return nil, err
		}
		cfg.Output.Format = options.GetString("format")
	}
	if options.IsSet("verbose") {
		if err := prolib.ValidateVerboseLevel(options.GetInt("verbose")); err != nil {
			return nil, err
		}
		cfg.Verbose.Level = options.GetInt("verbose")
	}
	if options.IsSet("debug") {
		cfg.Verbose.Debug = options.GetString("debug")
	}
	if options.IsSet("showIdenticals") {
		cfg.Compare.ShowIdenticals = options.GetBool("showIdenticals")
	}
	if options.IsSet("directory") {
		cfg.Extract.Directory = options.GetString("directory")
	}
	if options.IsSet("pattern") {
		cfg.Extract.Patterns = options.GetStrings("pattern")
	}
	if err := prolib.ValidatePatterns(cfg.Extract.Patterns); err != nil {
		return nil, err
	}

	prolib.ApplyVerboseConfig(cfg.Verbose)
	prolib.VerboseLog(2, "Configuration: %s", configPath)
	return cfg, nil
}

func runList(stdout io.Writer, path string, cfg *prolib.AllConfig) error {
	records, err := prolib.ListFile(prolib.OpenArchive, path, prolib.RCodeParser{})
	if err != nil {
		return err
	}

	degraded := 0
	for _, r := range records {
		if r.Degraded() {
			degraded++
			prolib.VerboseLog(1, "%s: %v", r.Entry.Name, r.Err)
		}
	}
	prolib.VerboseLog(1, "Listed %d entries, %d unreadable", len(records), degraded)

	return writeReport(prolib.WriteListing(stdout, records, cfg.Output.Format))
}

func runExtract(stderr io.Writer, path string, cfg *prolib.AllConfig) error {
	result, err := prolib.ExtractFile(prolib.OpenArchive, path, prolib.ExtractOptions{
		Dir:      cfg.Extract.Directory,
		Patterns: cfg.Extract.Patterns,
	})
	if err != nil {
		return err
	}

	// Per-entry failures are reported but do not change the exit status
	for _, failure := range result.Failures {
		fmt.Fprintf(stderr, "%s: Unable to extract file %s: %v\n", programName, failure.Name, failure.Err)
	}
	prolib.VerboseLog(1, "Extracted %d entries, %d skipped, %d failed",
		len(result.Extracted), result.Skipped, len(result.Failures))
	return nil
}

func runCompare(stdout io.Writer, sourcePath, targetPath string, cfg *prolib.AllConfig) error {
	comparison, err := prolib.CompareFiles(prolib.OpenArchive, sourcePath, targetPath, prolib.RCodeParser{})
	if err != nil {
		return err
	}

	counts := comparison.Counts()
	prolib.VerboseLog(1, "Compared %s with %s: %d added, %d removed, %d modified, %d identical, %d unreadable",
		sourcePath, targetPath, counts[prolib.Added], counts[prolib.Removed], counts[prolib.Modified],
		counts[prolib.Identical], counts[prolib.Unreadable])

	return writeReport(prolib.WriteComparison(stdout, comparison, cfg.Compare.ShowIdenticals, cfg.Output.Format))
}

// reportError marks a failure writing the report itself
type reportError struct {
	err error
}

func (e *reportError) Error() string { return e.err.Error() }
func (e *reportError) Unwrap() error { return e.err }

func writeReport(err error) error {
	if err != nil {
		return &reportError{err}
	}
	return nil
}

// commandFailure prints the diagnostic for an error that aborts a command
func commandFailure(stderr io.Writer, err error) int {
	var report *reportError
	switch {
	case errors.Is(err, prolib.ErrNotExtractable):
		fmt.Fprintf(stderr, "%s: Unable to extract files from memory-mapped library\n", programName)
	case errors.Is(err, prolib.ErrArchiveOpen), errors.As(err, &report):
		fmt.Fprintf(stderr, "%s: I/O problem: %v\n", programName, err)
	default:
		fmt.Fprintf(stderr, "%s: %v\n", programName, err)
	}
	return 1
}

// usageFailure prints the error and the usage summary
func usageFailure(stderr io.Writer, options *ParsedOptions, err error) int {
	fmt.Fprintf(stderr, "%s: %v\n", programName, err)
	showUsage(stderr, options)
	return 1
}

func showUsage(w io.Writer, options *ParsedOptions) {
	fmt.Fprintf(w, "Usage: %s [OPTIONS] <command> [args...]\n\n", programName)
	fmt.Fprintf(w, "Commands:\n")
	for _, name := range []string{"list", "extract", "compare"} {
		fmt.Fprintf(w, "  %s\n", commands[name].usage)
	}
	fmt.Fprintf(w, "  help [command]\n\n")
	fmt.Fprintf(w, "Options:\n")
	options.ShowOptions(w)
	fmt.Fprintf(w, "\nTry '%s help <command>' for more information.\n", programName)
}

func showHelp(w io.Writer, options *ParsedOptions) {
	fmt.Fprintf(w, "%s - inspect OpenEdge procedure libraries\n\n", programName)
	showUsage(w, options)

	fmt.Fprintf(w, "\nExamples:\n")
	fmt.Fprintf(w, "  # List the r-code in a library\n")
	fmt.Fprintf(w, "  %s list app.pl\n\n", programName)
	fmt.Fprintf(w, "  # Extract the .r files of a directory into build/\n")
	fmt.Fprintf(w, "  %s extract app.pl -C build -p 'src/*.r'\n\n", programName)
	fmt.Fprintf(w, "  # Compare two builds, including identical entries\n")
	fmt.Fprintf(w, "  %s compare old.pl new.pl -i\n", programName)
}

func showCommandHelp(w io.Writer, command string) error {
	switch command {
	case "list":
		fmt.Fprintf(w, "Usage: %s %s\n\n", programName, commands[command].usage)
		fmt.Fprintf(w, "Print one line per entry in library order:\n")
		fmt.Fprintf(w, "  CRC  timestamp (UTC)  digest  size  name\n")
		fmt.Fprintf(w, "Entries whose r-code header cannot be read are shown as '-  -  size  name'.\n")
	case "extract":
		fmt.Fprintf(w, "Usage: %s %s [-C DIR]\n\n", programName, commands[command].usage)
		fmt.Fprintf(w, "Write entries below DIR (default: current directory), creating directories.\n")
		fmt.Fprintf(w, "Existing files are never overwritten; failing entries are reported and skipped.\n")
		fmt.Fprintf(w, "Memory-mapped libraries cannot be extracted.\n\n")
		fmt.Fprintf(w, "Options:\n")
		fmt.Fprintf(w, "  -C, --directory=DIR    Destination directory\n")
		fmt.Fprintf(w, "  -p, --pattern=GLOB     Only entries whose name (or base name) matches GLOB\n")
	case "compare":
		fmt.Fprintf(w, "Usage: %s %s\n\n", programName, commands[command].usage)
		fmt.Fprintf(w, "Report one line per entry name:\n")
		fmt.Fprintf(w, "  A  only in source\n")
		fmt.Fprintf(w, "  R  only in target\n")
		fmt.Fprintf(w, "  M  CRC or digest differ\n")
		fmt.Fprintf(w, "  I  identical (with --showIdenticals)\n")
		fmt.Fprintf(w, "  -  r-code header unreadable on either side\n")
	default:
		return &usageError{fmt.Sprintf("unknown command '%s'", command)}
	}
	return nil
}
