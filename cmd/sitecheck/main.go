// Command sitecheck checks a list of URLs once, concurrently, and reports
// status and latency for each.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/sitecheck/internal/app"
	"github.com/hamed0406/sitecheck/internal/batch"
	"github.com/hamed0406/sitecheck/internal/config"
	"github.com/hamed0406/sitecheck/internal/logging"
	"github.com/hamed0406/sitecheck/internal/probe"
	"github.com/hamed0406/sitecheck/internal/report"
	"github.com/hamed0406/sitecheck/internal/targets"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("sitecheck", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		configPath  = fs.String("config", "", "config file (yaml/json); defaults to $SITECHECK_CONFIG")
		targetsFile = fs.String("targets", "", "file with one URL per line, or a .yaml list")
		timeout     = fs.Duration("timeout", 0, "per-probe timeout (default 5s)")
		workers     = fs.Int("workers", -1, "max concurrent probes; 0 runs one per URL")
		ordered     = fs.Bool("ordered", false, "report results in input order instead of arrival order")
		out         = fs.String("out", "", "results file (.txt, .csv or .json)")
		verbose     = fs.Bool("v", false, "also log to stderr")
	)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: sitecheck [flags] [url ...]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, "config:", err)
		return 2
	}
	// explicit flags win over file and environment
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "targets":
			cfg.TargetsFile = *targetsFile
		case "timeout":
			cfg.Timeout = *timeout
		case "workers":
			cfg.Workers = *workers
		case "ordered":
			cfg.Ordered = *ordered
		case "out":
			cfg.ResultsFile = *out
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(stderr, "config:", err)
		return 2
	}

	logOpts := logging.Options{Dir: cfg.LogDir, Level: cfg.LogLevel}
	if *verbose {
		logOpts.Console = stderr
	}
	logger, err := logging.NewLogger(logOpts)
	if err != nil {
		fmt.Fprintln(stderr, "logger:", err)
		return 1
	}
	defer logger.Sync()

	urls, err := loadTargets(fs.Args(), cfg.TargetsFile)
	if err != nil {
		fmt.Fprintln(stderr, "targets:", err)
		return 2
	}

	store, closeStore, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("store_open_error", zap.Error(err))
		fmt.Fprintln(stderr, "store:", err)
		return 1
	}
	defer closeStore()

	p := probe.NewHTTPProber(cfg.Timeout)
	p.UserAgent = cfg.UserAgent
	d := batch.NewDispatcher(p, cfg.Workers, logger, nil)
	runner := batch.NewRunner(logger, d, store, nil, cfg.Timeout, cfg.Ordered)

	b, runErr := runner.Run(ctx, urls)
	if b != nil {
		if err := report.WriteLines(stdout, b); err != nil {
			fmt.Fprintln(stderr, "report:", err)
		}
		if cfg.ResultsFile != "" {
			if err := report.WriteFile(cfg.ResultsFile, b); err != nil {
				fmt.Fprintln(stderr, "results file:", err)
				runErr = errors.Join(runErr, err)
			}
		}
	}
	if runErr != nil {
		fmt.Fprintln(stderr, "sitecheck:", runErr)
		return 1
	}
	fmt.Fprintf(stdout, "all tasks finished in %s\n", b.Summary().Elapsed.Round(time.Millisecond))
	return 0
}

// loadTargets prefers URLs on the command line, then the targets file, then
// the built-in list.
func loadTargets(args []string, file string) ([]string, error) {
	if len(args) > 0 {
		for _, u := range args {
			if !targets.IsValidURL(u) {
				return nil, fmt.Errorf("invalid url %q", u)
			}
		}
		return args, nil
	}
	if file != "" {
		return targets.ReadFile(file)
	}
	return targets.Defaults, nil
}
