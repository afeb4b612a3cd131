package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	gu "github.com/xraph/go-utils/metrics"

	"github.com/xraph/courier"
	"github.com/xraph/courier/dlq"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/observability"
	"github.com/xraph/courier/signature"
	redisstore "github.com/xraph/courier/store/redis"
)

// Environment variables read by the CLI.
const (
	envSecret   = "COURIER_SECRET"
	envRedisURL = "COURIER_REDIS_URL"
	envOTLP     = "OTEL_EXPORTER_OTLP_ENDPOINT"
)

var errUsage = errors.New("usage")

// Command represents a CLI command.
type Command struct {
	Name        string
	Description string
	Run         func(ctx context.Context, args []string) error
	Subcommands map[string]*Command

	stdout io.Writer
}

func newRootCommand(stdin io.Reader, stdout, stderr io.Writer) *Command {
	root := &Command{
		Name:        "courier",
		Description: "Courier - signed commit export client",
		Subcommands: make(map[string]*Command),
		stdout:      stdout,
	}

	root.Subcommands["deliver"] = newDeliverCommand(stdin, stderr)
	root.Subcommands["replay"] = newReplayCommand(stderr)
	root.Subcommands["dlq"] = newDLQCommand(stdout, stderr)
	root.Subcommands["secret"] = newSecretCommand(stdout)

	return root
}

// Execute runs the subcommand named by args[0].
func (c *Command) Execute(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" {
		c.usage()
		if len(args) == 0 {
			return errUsage
		}
		return nil
	}

	if sub, ok := c.Subcommands[args[0]]; ok {
		if sub.Run == nil {
			return sub.Execute(ctx, args[1:])
		}
		return sub.Run(ctx, args[1:])
	}

	return fmt.Errorf("unknown command: %s", args[0])
}

func (c *Command) usage() {
	fmt.Fprintf(c.stdout, "Usage: %s <command> [args]\n\n", c.Name)
	fmt.Fprintf(c.stdout, "Commands:\n")
	names := make([]string, 0, len(c.Subcommands))
	for name := range c.Subcommands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(c.stdout, "  %-15s %s\n", name, c.Subcommands[name].Description)
	}
}

// clientFlags are shared by commands that build a courier.Client.
type clientFlags struct {
	configPath  string
	endpoint    string
	maxAttempts int
	logFormat   string
	logLevel    string
	redisURL    string
}

func (f *clientFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.configPath, "config", "", "YAML config file")
	fs.StringVar(&f.endpoint, "endpoint", "", "ingestion URL (overrides config and "+courier.EndpointEnv+")")
	fs.IntVar(&f.maxAttempts, "max-attempts", 0, "attempts per delivery (overrides config)")
	fs.StringVar(&f.logFormat, "log-format", "text", "log format: text or json")
	fs.StringVar(&f.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	fs.StringVar(&f.redisURL, "redis-url", os.Getenv(envRedisURL), "Redis URL for the dead letter queue")
}

func (f *clientFlags) logger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(f.logLevel)); err != nil {
		return nil, fmt.Errorf("invalid -log-level %q", f.logLevel)
	}
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(f.logFormat) {
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid -log-format %q", f.logFormat)
	}
}

// session is a configured client plus the resources to release after use.
type session struct {
	client   *courier.Client
	store    *redisstore.Store
	metrics  gu.Metrics
	logger   *slog.Logger
	shutdown func(context.Context) error
}

func (s *session) close() {
	if s.metrics != nil {
		s.logCounters()
	}
	if s.store != nil {
		_ = s.store.Close()
	}
	if s.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.shutdown(ctx); err != nil {
			s.logger.Warn("trace shutdown failed", "error", err)
		}
	}
}

func (f *clientFlags) open(ctx context.Context, stderr io.Writer, extra ...courier.Option) (*session, error) {
	logger, err := f.logger(stderr)
	if err != nil {
		return nil, err
	}
	s := &session{logger: logger, metrics: gu.NewMetricsCollector("courier")}

	cfg := courier.DefaultConfig()
	if f.configPath != "" {
		if cfg, err = courier.LoadConfig(f.configPath); err != nil {
			return nil, err
		}
	}

	opts := []courier.Option{
		courier.WithConfig(cfg),
		courier.WithLogger(logger),
		courier.WithMetrics(observability.NewMetrics(s.metrics)),
	}
	if f.endpoint != "" {
		opts = append(opts, courier.WithEndpoint(f.endpoint))
	}
	if f.maxAttempts != 0 {
		opts = append(opts, courier.WithMaxAttempts(f.maxAttempts))
	}

	if os.Getenv(envOTLP) != "" {
		shutdown, err := initTracing(ctx, logger)
		if err != nil {
			return nil, fmt.Errorf("init tracing: %w", err)
		}
		s.shutdown = shutdown
		opts = append(opts,
			courier.WithTracer(observability.NewTracer()),
			courier.WithHTTPClient(tracingHTTPClient(cfg.RequestTimeout)),
		)
	}

	if f.redisURL != "" {
		store, err := redisstore.NewFromURL(ctx, f.redisURL)
		if err != nil {
			s.close()
			return nil, err
		}
		s.store = store
		opts = append(opts, courier.WithDLQ(store))
	}

	s.client, err = courier.New(append(opts, extra...)...)
	if err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

// logCounters writes every non-zero counter at debug level.
func (s *session) logCounters() {
	counters := s.metrics.ListMetricsByType(gu.MetricTypeCounter)
	names := make([]string, 0, len(counters))
	for name := range counters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c, ok := counters[name].(gu.Counter)
		if !ok || c.Value() == 0 {
			continue
		}
		s.logger.Debug("metric", "name", name, "value", c.Value())
	}
}

func secretFromEnv() (string, error) {
	secret := os.Getenv(envSecret)
	if secret == "" {
		return "", fmt.Errorf("%s is not set", envSecret)
	}
	return secret, nil
}

func newDeliverCommand(stdin io.Reader, stderr io.Writer) *Command {
	cmd := &Command{
		Name:        "deliver",
		Description: "Sign and deliver a JSON payload",
	}

	cmd.Run = func(ctx context.Context, args []string) error {
		fs := flag.NewFlagSet("deliver", flag.ContinueOnError)
		fs.SetOutput(stderr)
		var cf clientFlags
		cf.register(fs)
		payloadPath := fs.String("payload", "-", "payload file, - for stdin")
		startedAt := fs.String("started-at", "", "job start time (RFC 3339), defaults to now")
		validate := fs.Bool("validate", false, "validate the payload against the built-in schema")
		if err := fs.Parse(args); err != nil {
			return err
		}

		secret, err := secretFromEnv()
		if err != nil {
			return err
		}

		start := time.Now()
		if *startedAt != "" {
			if start, err = time.Parse(time.RFC3339, *startedAt); err != nil {
				return fmt.Errorf("invalid -started-at: %w", err)
			}
		}

		body, err := readPayload(*payloadPath, stdin)
		if err != nil {
			return err
		}

		var extra []courier.Option
		if *validate {
			extra = append(extra, courier.WithValidation(nil))
		}
		s, err := cf.open(ctx, stderr, extra...)
		if err != nil {
			return err
		}
		defer s.close()

		if err := s.client.Deliver(ctx, body, secret, start); err != nil {
			return err
		}
		s.logger.InfoContext(ctx, "payload delivered", "endpoint", s.client.Endpoint())
		return nil
	}

	return cmd
}

// readPayload decodes a JSON object keeping numbers exact.
func readPayload(path string, stdin io.Reader) (map[string]any, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open payload: %w", err)
		}
		defer f.Close()
		r = f
	}

	dec := json.NewDecoder(r)
	dec.UseNumber()
	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if body == nil {
		return nil, errors.New("decode payload: payload must be a JSON object")
	}
	return body, nil
}

func newReplayCommand(stderr io.Writer) *Command {
	cmd := &Command{
		Name:        "replay",
		Description: "Re-deliver a dead-lettered payload",
	}

	cmd.Run = func(ctx context.Context, args []string) error {
		fs := flag.NewFlagSet("replay", flag.ContinueOnError)
		fs.SetOutput(stderr)
		var cf clientFlags
		cf.register(fs)
		if err := fs.Parse(args); err != nil {
			return err
		}
		if fs.NArg() != 1 {
			return errors.New("replay requires exactly one DLQ entry ID")
		}
		if cf.redisURL == "" {
			return fmt.Errorf("replay requires -redis-url or %s", envRedisURL)
		}

		dlqID, err := id.ParseDLQID(fs.Arg(0))
		if err != nil {
			return fmt.Errorf("invalid DLQ entry ID: %w", err)
		}
		secret, err := secretFromEnv()
		if err != nil {
			return err
		}

		s, err := cf.open(ctx, stderr)
		if err != nil {
			return err
		}
		defer s.close()

		return s.client.Replay(ctx, dlqID, secret)
	}

	return cmd
}

func newDLQCommand(stdout, stderr io.Writer) *Command {
	cmd := &Command{
		Name:        "dlq",
		Description: "Inspect or purge the dead letter queue",
		Subcommands: make(map[string]*Command),
		stdout:      stdout,
	}

	cmd.Subcommands["list"] = &Command{
		Name:        "list",
		Description: "Print DLQ entries as JSON lines, newest first",
		Run: func(ctx context.Context, args []string) error {
			fs := flag.NewFlagSet("dlq list", flag.ContinueOnError)
			fs.SetOutput(stderr)
			var cf clientFlags
			cf.register(fs)
			limit := fs.Int("limit", 50, "maximum entries to print")
			pending := fs.Bool("pending", false, "only entries not yet replayed")
			if err := fs.Parse(args); err != nil {
				return err
			}

			svc, done, err := openDLQ(ctx, &cf, stderr)
			if err != nil {
				return err
			}
			defer done()

			entries, err := svc.List(ctx, dlq.ListOpts{Limit: *limit, Pending: *pending})
			if err != nil {
				return err
			}
			enc := json.NewEncoder(stdout)
			for _, e := range entries {
				if err := enc.Encode(e); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Subcommands["purge"] = &Command{
		Name:        "purge",
		Description: "Delete DLQ entries older than a duration",
		Run: func(ctx context.Context, args []string) error {
			fs := flag.NewFlagSet("dlq purge", flag.ContinueOnError)
			fs.SetOutput(stderr)
			var cf clientFlags
			cf.register(fs)
			olderThan := fs.Duration("older-than", 7*24*time.Hour, "purge entries that failed before now minus this duration")
			if err := fs.Parse(args); err != nil {
				return err
			}

			svc, done, err := openDLQ(ctx, &cf, stderr)
			if err != nil {
				return err
			}
			defer done()

			n, err := svc.Purge(ctx, time.Now().UTC().Add(-*olderThan))
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "purged %d entries\n", n)
			return nil
		},
	}

	return cmd
}

func openDLQ(ctx context.Context, cf *clientFlags, stderr io.Writer) (*dlq.Service, func(), error) {
	if cf.redisURL == "" {
		return nil, nil, fmt.Errorf("dlq requires -redis-url or %s", envRedisURL)
	}
	s, err := cf.open(ctx, stderr)
	if err != nil {
		return nil, nil, err
	}
	return s.client.DLQ(), s.close, nil
}

func newSecretCommand(stdout io.Writer) *Command {
	return &Command{
		Name:        "secret",
		Description: "Generate a new signing secret",
		Run: func(_ context.Context, _ []string) error {
			fmt.Fprintln(stdout, signature.GenerateSecret())
			return nil
		},
	}
}

// tracingHTTPClient returns an HTTP client whose transport emits client spans.
func tracingHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: newTracingTransport(http.DefaultTransport),
	}
}
