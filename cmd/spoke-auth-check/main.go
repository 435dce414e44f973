package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/platinummonkey/spoke-auth-bitbucket/pkg/auth"
	"github.com/platinummonkey/spoke-auth-bitbucket/pkg/config"
	"github.com/platinummonkey/spoke-auth-bitbucket/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/sirupsen/logrus"
)

// Exit codes
const (
	exitOK     = 0
	exitFailed = 1
	exitDenied = 2
)

// Options holds the command line options
type Options struct {
	ConfigPath   string
	Username     string
	Password     string
	LogLevel     string
	Timeout      time.Duration
	MetricsDump  bool
	Health       bool
	OTLPEndpoint string
	OTLPInsecure bool
}

// spoke-auth-check runs one Bitbucket authentication with the registry's
// auth configuration and prints the authorized teams.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitFailed
	}

	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailed
	}

	logLevel := opts.LogLevel
	if logLevel == "" {
		logLevel = cfg.LogLevel
	}
	logger := setupLogger(logLevel, stderr)

	tp, err := observability.InitTracing(ctx, observability.TracingConfig{
		Endpoint:    opts.OTLPEndpoint,
		ServiceName: "spoke-auth-check",
		Insecure:    opts.OTLPInsecure,
	}, logger)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailed
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = observability.ShutdownTracing(shutdownCtx, tp, logger)
	}()

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	authenticator, err := auth.New(cfg, auth.WithLogger(logger), auth.WithMetrics(metrics))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailed
	}
	defer authenticator.Close()

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	var code int
	if opts.Health {
		code = health(ctx, authenticator, stdout)
	} else {
		code = check(ctx, authenticator, opts, stdout, stderr)
	}

	if opts.MetricsDump {
		if err := dumpMetrics(registry, stdout); err != nil {
			fmt.Fprintf(stderr, "Error: failed to dump metrics: %v\n", err)
			return exitFailed
		}
	}

	return code
}

func check(ctx context.Context, authenticator *auth.Authenticator, opts *Options, stdout, stderr io.Writer) int {
	teams, err := authenticator.Authenticate(ctx, opts.Username, opts.Password)
	if err != nil {
		fmt.Fprintf(stderr, "Authentication failed: %v\n", err)
		return exitFailed
	}

	if len(teams) == 0 {
		fmt.Fprintf(stdout, "%s authenticated but is not a member of any allowed team\n", opts.Username)
		return exitDenied
	}

	fmt.Fprintf(stdout, "%s is authorized for: %s\n", opts.Username, strings.Join(teams, ", "))
	return exitOK
}

func health(ctx context.Context, authenticator *auth.Authenticator, stdout io.Writer) int {
	status := authenticator.Health(ctx)

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(status)

	if status.Status == observability.StatusUnhealthy {
		return exitFailed
	}
	return exitOK
}

func parseFlags(args []string, stderr io.Writer) (*Options, error) {
	opts := &Options{}

	fs := flag.NewFlagSet("spoke-auth-check", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.ConfigPath, "config", os.Getenv("SPOKE_AUTH_CONFIG"), "Path to the YAML auth configuration (environment only when empty)")
	fs.StringVar(&opts.Username, "user", "", "Bitbucket username; use local..domain for email logins")
	fs.StringVar(&opts.Password, "password", os.Getenv("SPOKE_AUTH_PASSWORD"), "Bitbucket app password (prefer SPOKE_AUTH_PASSWORD)")
	fs.StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error); defaults to the configured level")
	fs.DurationVar(&opts.Timeout, "timeout", time.Minute, "Overall timeout for the check")
	fs.BoolVar(&opts.MetricsDump, "metrics-dump", false, "Print collected Prometheus metrics after the check")
	fs.BoolVar(&opts.Health, "health", false, "Check Bitbucket and cache reachability instead of authenticating")
	fs.StringVar(&opts.OTLPEndpoint, "otlp-endpoint", os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"), "OTLP gRPC collector address; tracing is off when empty")
	fs.BoolVar(&opts.OTLPInsecure, "otlp-insecure", false, "Disable TLS for the OTLP connection")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if !opts.Health && (opts.Username == "" || opts.Password == "") {
		fmt.Fprintln(stderr, "Error: -user and a password (-password or SPOKE_AUTH_PASSWORD) are required")
		fs.Usage()
		return nil, auth.ErrMissingCredentials
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Minute
	}

	return opts, nil
}

func loadConfig(path string) (*config.AuthConfig, error) {
	if path == "" {
		return config.LoadEnv()
	}
	return config.LoadFile(path)
}

func setupLogger(logLevel string, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}

func dumpMetrics(registry *prometheus.Registry, out io.Writer) error {
	families, err := registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(out, mf); err != nil {
			return err
		}
	}
	return nil
}
