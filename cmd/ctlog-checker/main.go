package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/tb0hdan/ctlog-checker/pkg/checker"
	"github.com/tb0hdan/ctlog-checker/pkg/configs"
	"github.com/tb0hdan/ctlog-checker/pkg/log"
	"github.com/tb0hdan/ctlog-checker/pkg/monitor"
	"github.com/tb0hdan/ctlog-checker/pkg/utils"
	"go.uber.org/zap"
)

var (
	version = "1.0.0"
	commit  = "unknown"
	date    = "unknown"
)

const (
	exitOK         = 0
	exitError      = 1
	exitUnexpected = 2
)

// patternList collects repeated -pattern flags
type patternList []string

func (p *patternList) String() string {
	return strings.Join(*p, ",")
}

func (p *patternList) Set(value string) error {
	*p = append(*p, value)
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("ctlog-checker", flag.ContinueOnError)
	flags.SetOutput(stderr)

	var patterns patternList
	var (
		configFile  = flags.String("config", "", "Path to configuration file")
		showVersion = flags.Bool("version", false, "Show version information")
		logLevel    = flags.String("log-level", "", "Override log level (debug, info, warn, error)")
		serve       = flags.Bool("serve", false, "Check periodically and serve alerts, reports and metrics")
		pretty      = flags.Bool("pretty", false, "Indent the JSON report")
	)
	flags.Var(&patterns, "pattern", "Domain name pattern to check, may be repeated (overrides checker.domain_name_patterns)")
	if err := flags.Parse(args); err != nil {
		return exitError
	}

	if *showVersion {
		fmt.Fprintf(stdout, "ctlog-checker version %s (commit: %s, built: %s)\n", version, commit, date)
		return exitOK
	}

	config, err := configs.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
		return exitError
	}
	config.Version, config.Commit, config.Date = version, commit, date

	if *logLevel != "" {
		config.Logging.Level = *logLevel
	}
	if len(patterns) > 0 {
		config.Checker.DomainNamePatterns = patterns
	}

	logger, err := log.NewWithWriter(config.Logging, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to initialize logger: %v\n", err)
		return exitError
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("Starting ctlog-checker",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("built", date),
		zap.Bool("serve", *serve),
	)

	if *serve {
		server, err := monitor.New(config, logger)
		if err != nil {
			logger.Error("Failed to create server", zap.Error(err))
			return exitError
		}
		if err := utils.Run(ctx, server, logger); err != nil {
			logger.Error("Server stopped with error", zap.Error(err))
			return exitError
		}
		return exitOK
	}

	return checkOnce(ctx, config, logger, stdout, *pretty)
}

// checkOnce runs a single check and writes the aggregate to stdout
func checkOnce(ctx context.Context, config *configs.Config, logger *zap.Logger, stdout io.Writer, pretty bool) int {
	ctChecker := checker.New(config, logger)

	result, err := ctChecker.CheckCTLogs(ctx, config.Checker.DomainNamePatterns, config.Window(time.Now()))
	if err != nil {
		logger.Error("CT log check failed", zap.Error(err))
		return exitError
	}

	encoder := json.NewEncoder(stdout)
	if pretty {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(result); err != nil {
		logger.Error("Failed to write report", zap.Error(err))
		return exitError
	}

	if config.Checker.FailOnUnexpected && result.UnexpectedCA.Count > 0 {
		logger.Warn("Certificates issued by unexpected CAs",
			zap.Int("count", result.UnexpectedCA.Count),
		)
		return exitUnexpected
	}

	return exitOK
}
