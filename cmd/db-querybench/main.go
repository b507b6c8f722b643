// Package main is the command line entry point for db-querybench, a
// declarative SQL benchmark runner. It loads YAML test specifications,
// executes them against a backend, and prints a JSON report (or compact
// lines in lite mode) to stdout.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/whhaicheng/DB-QueryBench/internal/app/usecase"
	"github.com/whhaicheng/DB-QueryBench/internal/domain/report"
	"github.com/whhaicheng/DB-QueryBench/internal/domain/spec"
	"github.com/whhaicheng/DB-QueryBench/internal/infra/engine"
	"github.com/whhaicheng/DB-QueryBench/internal/infra/hostinfo"
	"github.com/whhaicheng/DB-QueryBench/internal/infra/remote"
	infrareport "github.com/whhaicheng/DB-QueryBench/internal/infra/report"
)

const version = "1.0.0"

// multiFlag collects a repeatable string flag, also splitting on commas.
type multiFlag []string

func (f *multiFlag) String() string { return strings.Join(*f, ",") }

func (f *multiFlag) Set(value string) error {
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			*f = append(*f, v)
		}
	}
	return nil
}

type options struct {
	engine       string
	dsn          string
	lite         bool
	recursive    bool
	verbose      bool
	profilesFile string

	tags            multiFlag
	skipTags        multiFlag
	names           multiFlag
	skipNames       multiFlag
	namesRegexp     multiFlag
	skipNamesRegexp multiFlag

	flushHost     string
	flushPort     int
	flushUser     string
	flushPassword string
	flushKey      string
	flushWinRM    bool

	paths []string
}

func parseFlags() options {
	var opts options

	flag.StringVar(&opts.engine, "engine", string(engine.EngineSQLite), "database engine: mysql, postgres, sqlserver, oracle, sqlite")
	flag.StringVar(&opts.dsn, "dsn", "", "backend connection string")
	flag.BoolVar(&opts.lite, "lite", false, "print one line per run with the main metric instead of the JSON report")
	flag.BoolVar(&opts.recursive, "r", false, "scan input directories recursively")
	flag.BoolVar(&opts.verbose, "verbose", false, "enable debug logging")
	flag.StringVar(&opts.profilesFile, "profiles-file", "", "YAML file with named settings profiles")

	flag.Var(&opts.tags, "tags", "run only tests with any of these tags (repeatable)")
	flag.Var(&opts.skipTags, "skip-tags", "skip tests with any of these tags (repeatable)")
	flag.Var(&opts.names, "names", "run only tests with these exact names (repeatable)")
	flag.Var(&opts.skipNames, "skip-names", "skip tests with these exact names (repeatable)")
	flag.Var(&opts.namesRegexp, "names-regexp", "run only tests whose name matches (repeatable)")
	flag.Var(&opts.skipNamesRegexp, "skip-names-regexp", "skip tests whose name matches (repeatable)")

	flag.StringVar(&opts.flushHost, "flush-host", "", "remote host for the flush_disk_cache precondition (local when empty)")
	flag.IntVar(&opts.flushPort, "flush-port", 0, "remote flush port (22 for ssh, 5985/5986 for winrm)")
	flag.StringVar(&opts.flushUser, "flush-user", "", "remote flush username")
	flag.StringVar(&opts.flushPassword, "flush-password", "", "remote flush password")
	flag.StringVar(&opts.flushKey, "flush-key", "", "ssh private key path for remote flush")
	flag.BoolVar(&opts.flushWinRM, "flush-winrm", false, "flush over WinRM instead of SSH")

	showVersion := flag.Bool("version", false, "print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(),
			"db-querybench v%s - declarative SQL benchmark runner\n\nUsage:\n  db-querybench [flags] [spec files or directories]\n\nFlags:\n", version)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("db-querybench v%s\n", version)
		os.Exit(0)
	}

	opts.paths = flag.Args()
	return opts
}

func main() {
	opts := parseFlags()

	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(opts, logger); err != nil {
		logger.Error("benchmark failed", "error", err)
		os.Exit(1)
	}
}

func run(opts options, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The first signal requests a cooperative stop so partial results still
	// come out; the second one kills the process.
	var interrupted atomic.Bool
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		logger.Warn("interrupt received, finishing current measurements")
		interrupted.Store(true)
		<-signals
		os.Exit(130)
	}()

	files, err := spec.DiscoverFiles(opts.paths, opts.recursive)
	if err != nil {
		return err
	}

	specs := make([]*spec.TestSpec, 0, len(files))
	for _, file := range files {
		s, err := spec.LoadFile(file)
		if err != nil {
			return err
		}
		specs = append(specs, s)
	}

	include := spec.Filter{Tags: opts.tags, Names: opts.names, NameRegexps: opts.namesRegexp}
	exclude := spec.Filter{Tags: opts.skipTags, Names: opts.skipNames, NameRegexps: opts.skipNamesRegexp}
	selected, err := spec.Select(specs, include, exclude)
	if err != nil {
		return err
	}
	logger.Info("selected tests", "total", len(specs), "selected", len(selected))
	if len(selected) == 0 {
		return fmt.Errorf("no tests match the selection filters")
	}

	profiles, err := spec.LoadProfiles(opts.profilesFile)
	if err != nil {
		return err
	}

	executor, err := engine.Open(ctx, engine.Engine(opts.engine), opts.dsn, logger)
	if err != nil {
		return err
	}
	defer executor.Close()

	runner := usecase.NewRunner(executor, buildFlusher(opts, logger), hostinfo.Collect(), profiles, logger)
	runner.Lite = opts.lite
	runner.Interrupted = interrupted.Load

	// Lite lines stream out as each test finishes; the JSON report is one
	// document for the whole invocation.
	if opts.lite {
		lite := infrareport.NewLiteWriter(os.Stdout)
		runner.OnResult = func(result *usecase.TestResult) {
			if err := lite.Write(result.Report, result.LiteValues); err != nil {
				logger.Error("write lite output", "error", err)
			}
		}
	}

	results, runErr := runner.RunAll(ctx, selected)

	if !opts.lite {
		reports := make([]*report.Report, 0, len(results))
		for _, result := range results {
			reports = append(reports, result.Report)
		}
		if err := infrareport.NewJSONWriter(os.Stdout).Write(reports); err != nil {
			return err
		}
	}
	return runErr
}

// buildFlusher picks the cache flusher for the flush_disk_cache
// precondition: the local host by default, SSH or WinRM when a remote flush
// host is configured.
func buildFlusher(opts options, logger *slog.Logger) remote.CacheFlusher {
	if opts.flushHost == "" {
		return remote.LocalFlusher{Logger: logger}
	}
	if opts.flushWinRM {
		return remote.WinRMFlusher{
			Config: remote.WinRMConfig{
				Host:     opts.flushHost,
				Port:     opts.flushPort,
				Username: opts.flushUser,
				Password: opts.flushPassword,
			},
			Logger: logger,
		}
	}
	return remote.SSHFlusher{
		Config: remote.SSHConfig{
			Host:     opts.flushHost,
			Port:     opts.flushPort,
			Username: opts.flushUser,
			Password: opts.flushPassword,
			KeyPath:  opts.flushKey,
		},
		Logger: logger,
	}
}
