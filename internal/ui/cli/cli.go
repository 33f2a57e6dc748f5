package cli

import (
	"flag"
	"io"

	"linkgraph/internal/core/config"
)

const versionString = "1.0.0"

const usageLine = "usage: linkgraph [flags] <target>"

type cliOptions struct {
	configPath    string
	root          string
	jobs          int
	verbose       bool
	dump          bool
	dot           string
	watch         bool
	dryRun        bool
	trace         string
	history       bool
	historyFormat string
	since         string
	version       bool
	args          []string
}

func parseOptions(args []string, stderr io.Writer) (cliOptions, error) {
	var opts cliOptions
	fs := flag.NewFlagSet("linkgraph", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		_, _ = io.WriteString(stderr, usageLine+"\n")
		fs.PrintDefaults()
	}

	fs.StringVar(&opts.configPath, "config", config.DefaultConfigPath, "Path to config file")
	fs.StringVar(&opts.root, "root", "", "Project root holding one directory per package")
	fs.IntVar(&opts.jobs, "jobs", 0, "Packages compiled in parallel (0 uses build.jobs)")
	fs.BoolVar(&opts.verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&opts.dump, "dump", false, "Print the symbol index tables after loading")
	fs.StringVar(&opts.dot, "dot", "", "Write the package link graph in DOT format to this path")
	fs.BoolVar(&opts.watch, "watch", false, "Rebuild the target whenever sources or headers change")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "Compile and resolve, then print link commands instead of running them")
	fs.StringVar(&opts.trace, "trace", "", "Report the shortest package dependency chain from the target to this package")
	fs.BoolVar(&opts.history, "history", false, "Print recorded builds of the target instead of building")
	fs.StringVar(&opts.historyFormat, "history-format", "tsv", "Output format for --history (tsv or json)")
	fs.StringVar(&opts.since, "since", "", "Only show builds at/after this timestamp (RFC3339 or YYYY-MM-DD, requires --history)")
	fs.BoolVar(&opts.version, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, err
	}

	opts.args = fs.Args()
	return opts, nil
}
