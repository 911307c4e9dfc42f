package main

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/coregrep/coregrep/pkg/driver"
	"github.com/coregrep/coregrep/pkg/matchengine"
	"github.com/coregrep/coregrep/pkg/pattern"
	"github.com/coregrep/coregrep/pkg/printer"
	"github.com/coregrep/coregrep/pkg/walk"
)

var (
	flagExtendedRegexp bool
	flagFixedStrings   bool
	flagBasicRegexp    bool
	flagPerlRegexp     bool
	flagPatterns       []string
	flagPatternFiles   []string
	flagIgnoreCase     bool
	flagInvert         bool
	flagWholeWord      bool
	flagWholeLine      bool
	flagCount          bool
	flagFilesMatch     bool
	flagFilesNoMatch   bool
	flagMaxCount       int
	flagLineNumber     bool
	flagByteOffset     bool
	flagWithFilename   bool
	flagNoFilename     bool
	flagOnlyMatching   bool
	flagQuiet          bool
	flagSilent         bool
	flagRecursive      bool
	flagRecursiveP     bool
	flagNullData       bool
	flagColor          string
	flagBinaryFiles    string
	flagBefore         int
	flagAfter          int
	flagContext        int
	flagJobs           int
)

var rootCmd = &cobra.Command{
	Use:   "coregrep [OPTION]... PATTERN [FILE]...",
	Short: "Search files for lines matching a pattern",
	Long: `coregrep prints lines that match a pattern, compiled through a cascade of
a keyword prefilter, a DFA, and a backreference-capable regex fallback,
and can walk directory trees in parallel while preserving sequential
output order.`,
	Args: cobra.MinimumNArgs(0),
	RunE: runGrep,
}

func init() {
	f := rootCmd.Flags()
	f.BoolVarP(&flagExtendedRegexp, "extended-regexp", "E", false, "PATTERN is an extended regular expression")
	f.BoolVarP(&flagFixedStrings, "fixed-strings", "F", false, "PATTERN is a set of newline-separated fixed strings")
	f.BoolVarP(&flagBasicRegexp, "basic-regexp", "G", false, "PATTERN is a basic regular expression (default)")
	f.BoolVarP(&flagPerlRegexp, "perl-regexp", "P", false, "PATTERN is a Perl-compatible regular expression")
	f.StringArrayVarP(&flagPatterns, "regexp", "e", nil, "use PATTERN for matching, may be given multiple times")
	f.StringArrayVarP(&flagPatternFiles, "file", "f", nil, "read patterns, one per line, from FILE")
	f.BoolVarP(&flagIgnoreCase, "ignore-case", "i", false, "ignore case distinctions")
	f.BoolVarP(&flagInvert, "invert-match", "v", false, "select non-matching lines")
	f.BoolVarP(&flagWholeWord, "word-regexp", "w", false, "match only whole words")
	f.BoolVarP(&flagWholeLine, "line-regexp", "x", false, "match only whole lines")
	f.BoolVarP(&flagCount, "count", "c", false, "print only a count of matching lines per file")
	f.BoolVarP(&flagFilesMatch, "files-with-matches", "l", false, "print only names of files containing a match")
	f.BoolVarP(&flagFilesNoMatch, "files-without-match", "L", false, "print only names of files containing no match")
	f.IntVarP(&flagMaxCount, "max-count", "m", 0, "stop after NUM matching lines")
	f.BoolVarP(&flagLineNumber, "line-number", "n", false, "print line number with output lines")
	f.BoolVarP(&flagByteOffset, "byte-offset", "b", false, "print the byte offset with output lines")
	f.BoolVarP(&flagWithFilename, "with-filename", "H", false, "print the filename for each match")
	f.BoolVarP(&flagNoFilename, "no-filename", "h", false, "suppress the filename prefix on output")
	f.BoolVarP(&flagOnlyMatching, "only-matching", "o", false, "show only the part of a line matching PATTERN")
	f.BoolVarP(&flagQuiet, "quiet", "q", false, "suppress all normal output")
	f.BoolVarP(&flagSilent, "no-messages", "s", false, "suppress error messages about nonexistent or unreadable files")
	f.BoolVarP(&flagRecursive, "recursive", "r", false, "recurse into directories, not following symlinks")
	f.BoolVarP(&flagRecursiveP, "dereference-recursive", "R", false, "recurse into directories, following symlinks")
	f.BoolVarP(&flagNullData, "null-data", "z", false, "lines are NUL-terminated instead of newline-terminated")
	f.StringVar(&flagColor, "color", "auto", "colorize matching text: always, never, auto")
	f.StringVar(&flagBinaryFiles, "binary-files", "binary", "binary-file handling: binary, text, without-match")
	f.IntVarP(&flagBefore, "before-context", "B", 0, "print NUM lines of leading context")
	f.IntVarP(&flagAfter, "after-context", "A", 0, "print NUM lines of trailing context")
	f.IntVarP(&flagContext, "context", "C", 0, "print NUM lines of both leading and trailing context")
	f.IntVarP(&flagJobs, "jobs", "p", 1, "number of parallel workers for directory recursion")
}

// Execute parses arguments, runs the search, and returns the process exit
// status: 0 if any line matched, 1 if none did, 2 on a usage or I/O error.
func Execute() int {
	if extra, ok := os.LookupEnv("GREP_OPTIONS"); ok && extra != "" {
		// Historical GNU grep behavior: GREP_OPTIONS is split on
		// whitespace and prepended to the real argument list.
		os.Args = append([]string{os.Args[0]}, append(strings.Fields(extra), os.Args[1:]...)...)
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "coregrep:", err)
		return 2
	}
	return exitCode
}

// exitCode is set by runGrep once the search has actually run, since
// cobra's RunE contract only distinguishes "error" from "no error", not
// grep's three-way 0/1/2 exit convention.
var exitCode = 2

func runGrep(cmd *cobra.Command, args []string) error {
	exitCode = 2

	posixlyCorrect := os.Getenv("POSIXLY_CORRECT") != ""

	patternArg, files, err := resolveArgs(args)
	if err != nil {
		return err
	}

	sources, err := gatherPatternSources(patternArg)
	if err != nil {
		return err
	}

	dialect := pattern.Basic
	switch {
	case flagFixedStrings:
		dialect = pattern.FixedStrings
	case flagExtendedRegexp:
		dialect = pattern.Extended
	case flagPerlRegexp:
		dialect = pattern.Perl
	case flagBasicRegexp:
		dialect = pattern.Basic
	}

	eol := byte('\n')
	if flagNullData {
		eol = 0
	}

	popts := pattern.Options{
		Dialect:    dialect,
		IgnoreCase: flagIgnoreCase,
		WholeWord:  flagWholeWord,
		WholeLine:  flagWholeLine,
		EOLByte:    eol,
	}

	compiled, err := pattern.Compile(sources, popts)
	if err != nil {
		var ce *pattern.CompileError
		if errorsAs(err, &ce) {
			return ce
		}
		return err
	}

	engine, err := matchengine.New(compiled)
	if err != nil {
		return err
	}

	before, after := flagBefore, flagAfter
	if flagContext > 0 {
		before, after = flagContext, flagContext
	}

	binaryPolicy, err := parseBinaryPolicy(flagBinaryFiles)
	if err != nil {
		return err
	}

	withFilename := len(files) > 1 || flagRecursive || flagRecursiveP
	if flagWithFilename {
		withFilename = true
	}
	if flagNoFilename {
		withFilename = false
	}

	colorize := shouldColorize(flagColor)

	dopts := driver.Options{
		Invert:         flagInvert,
		CountOnly:      flagCount,
		ListMatching:   flagFilesMatch,
		ListNonMatch:   flagFilesNoMatch,
		MaxMatches:     flagMaxCount,
		Quiet:          flagQuiet,
		Silent:         flagSilent,
		BinaryPolicy:   binaryPolicy,
		DirAction:      driver.DirSkip,
		StdinLabel:     "(standard input)",
		EOLByte:        eol,
		PosixlyCorrect: posixlyCorrect,
		BeforeContext:  before,
		AfterContext:   after,
	}
	if flagRecursive || flagRecursiveP {
		dopts.DirAction = driver.DirRecurse
	}

	jobs, err := resolveJobs(jobsRequest{
		recursing:     dopts.DirAction == driver.DirRecurse,
		explicitJobs:  cmd.Flags().Changed("jobs"),
		requestedJobs: flagJobs,
		wholeWord:     flagWholeWord,
		before:        before,
		after:         after,
	})
	if err != nil {
		return err
	}

	printOpts := printer.Options{
		WithFilename: withFilename,
		LineNumber:   flagLineNumber,
		ByteOffset:   flagByteOffset,
		OnlyMatching: flagOnlyMatching,
		Colorize:     colorize,
		Invert:       flagInvert,
		EOLByte:      eol,
	}

	anyMatch, sawError := run(engine, dopts, printOpts, files, os.Stdout, jobs)

	switch {
	case sawError:
		exitCode = 2
	case anyMatch:
		exitCode = 0
	default:
		exitCode = 1
	}
	return nil
}

// jobsRequest carries the inputs resolveJobs needs to decide whether
// directory recursion may run through the parallel walker.
type jobsRequest struct {
	recursing     bool
	explicitJobs  bool // cmd.Flags().Changed("jobs"): -p was given, not just defaulted
	requestedJobs int
	wholeWord     bool
	before, after int
}

// resolveJobs implements the parallel-path gating: -A/-B/-C and -w have no
// parallel-path implementation, since each worker only sees its own file in
// isolation with no way to carry context lines or word-boundary state
// across the slotted sink's reassembly. An explicit -p demanding parallel
// execution alongside one of those options is a fatal error; -r/-R alone
// only implies parallelism, so the same combination silently falls back to
// a single, effectively sequential worker instead.
func resolveJobs(r jobsRequest) (int, error) {
	if r.recursing && (r.wholeWord || r.before > 0 || r.after > 0) {
		if r.explicitJobs {
			return 0, fmt.Errorf("-p cannot be combined with -A/-B/-C or -w")
		}
		return 1, nil
	}
	return r.requestedJobs, nil
}

// run dispatches to the sequential or parallel-recursive path and returns
// whether any line matched and whether any file-level error occurred.
// jobs is the resolved worker count: 1 forces the parallel walker's own
// slotted-sink machinery to run with a single worker, which is how an
// implicit (non-fatal) demotion away from real parallelism is expressed.
func run(engine *matchengine.Engine, dopts driver.Options, printOpts printer.Options, files []string, stdout *os.File, jobs int) (anyMatch, sawError bool) {
	recursing := dopts.DirAction == driver.DirRecurse
	if !recursing || len(files) == 0 {
		d := driver.New(dopts, engine, printOpts)
		if len(files) == 0 {
			files = []string{"-"}
		}
		for _, f := range files {
			res := d.ProcessFile(f, "", stdout)
			if res.Err != nil && !dopts.Silent {
				fmt.Fprintf(os.Stderr, "coregrep: %v\n", res.Err)
			}
			anyMatch = anyMatch || res.Matched
		}
		return anyMatch, d.SawError()
	}

	numWorkers := jobs
	if numWorkers < 1 {
		numWorkers = 1
	}
	drivers := make([]*driver.Driver, numWorkers)
	fork0 := engine
	for i := range drivers {
		e := fork0
		if i > 0 {
			var err error
			e, err = fork0.Fork()
			if err != nil {
				sawError = true
				continue
			}
		}
		drivers[i] = driver.New(dopts, e, printOpts)
	}

	var overallMatch, overallErr bool
	for _, root := range files {
		// Each root restarts visit indices at 0, so each gets a fresh sink.
		sink := walk.NewSlottedSink(stdout, numWorkers)
		w := walk.New(walk.Options{Root: root, NumWorkers: numWorkers, FollowSymlinks: flagRecursiveP}, sink,
			func(entry walk.Entry, visitIndex int) ([]byte, bool, error) {
				d := drivers[visitIndex%numWorkers]
				var buf bytes.Buffer
				res := d.ProcessFile(entry.Path, "", &buf)
				if res.Err != nil {
					return nil, false, res.Err
				}
				return buf.Bytes(), res.Matched, nil
			})
		result := w.Run()
		overallMatch = overallMatch || result.AnyMatch
		overallErr = overallErr || !result.OK
		if !dopts.Silent {
			for _, e := range result.Errs {
				fmt.Fprintf(os.Stderr, "coregrep: %v\n", e)
			}
		}
	}
	for _, d := range drivers {
		if d != nil && d.SawError() {
			overallErr = true
		}
	}
	return overallMatch, overallErr || sawError
}

// resolveArgs splits cobra's positional args into the pattern argument (if
// -e/-f weren't used to supply it) and the file list.
func resolveArgs(args []string) (patternArg string, files []string, err error) {
	if len(flagPatterns) > 0 || len(flagPatternFiles) > 0 {
		return "", args, nil
	}
	if len(args) == 0 {
		return "", nil, fmt.Errorf("no pattern given")
	}
	return args[0], args[1:], nil
}

// gatherPatternSources assembles the pattern.Source list from -e, -f, and
// (absent both) the single positional pattern argument: every -e pattern
// in the order given, then every -f file in the order given, and the
// command line pattern only when neither was used. The relative order of
// interleaved -e and -f options is not kept.
func gatherPatternSources(positional string) ([]pattern.Source, error) {
	var sources []pattern.Source
	for _, p := range flagPatterns {
		sources = append(sources, pattern.Source{Name: "-e", Text: p})
	}
	for _, path := range flagPatternFiles {
		var data []byte
		var err error
		if path == "-" {
			data, err = readAllStdin()
		} else {
			data, err = os.ReadFile(path)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		sources = append(sources, pattern.Source{Name: path, Text: string(data)})
	}
	if len(sources) == 0 {
		sources = append(sources, pattern.Source{Text: positional})
	}
	return sources, nil
}

func readAllStdin() ([]byte, error) {
	var buf bytes.Buffer
	_, err := buf.ReadFrom(os.Stdin)
	return buf.Bytes(), err
}

func parseBinaryPolicy(s string) (driver.BinaryPolicy, error) {
	switch s {
	case "binary":
		return driver.BinaryAsBinary, nil
	case "text":
		return driver.BinaryAsText, nil
	case "without-match":
		return driver.BinaryWithoutMatch, nil
	default:
		return 0, fmt.Errorf("unknown --binary-files value %q", s)
	}
}

func shouldColorize(mode string) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	default:
		return true // printer.Colors resolves "auto" via fatih/color's NoColor/TTY detection
	}
}

// errorsAs is a one-line wrapper kept local so callers above read without
// an extra "errors" import line for this single use.
func errorsAs(err error, target **pattern.CompileError) bool {
	ce, ok := err.(*pattern.CompileError)
	if ok {
		*target = ce
	}
	return ok
}
