package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/vantage/adapter"
	"github.com/pithecene-io/vantage/adapter/redis"
	"github.com/pithecene-io/vantage/adapter/webhook"
	"github.com/pithecene-io/vantage/canvas"
	"github.com/pithecene-io/vantage/cli/config"
	"github.com/pithecene-io/vantage/lode"
	"github.com/pithecene-io/vantage/log"
	"github.com/pithecene-io/vantage/metrics"
	"github.com/pithecene-io/vantage/policy"
	"github.com/pithecene-io/vantage/runtime"
)

// loadConfig reads --config when given and applies flag overrides. A flag
// wins when set explicitly or when the config leaves the value empty.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := &config.Config{}
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	cfg.Log.Level = stringOpt(c, "log-level", cfg.Log.Level)

	cfg.Policy.Name = stringOpt(c, "policy", cfg.Policy.Name)
	cfg.Policy.FlushMode = stringOpt(c, "flush-mode", cfg.Policy.FlushMode)
	cfg.Policy.BufferParts = intOpt(c, "buffer-parts", cfg.Policy.BufferParts)
	if c.IsSet("buffer-bytes") || cfg.Policy.BufferBytes == 0 {
		cfg.Policy.BufferBytes = c.Int64("buffer-bytes")
	}
	cfg.Policy.FlushCount = intOpt(c, "flush-count", cfg.Policy.FlushCount)
	if c.IsSet("flush-interval") || cfg.Policy.FlushInterval.Duration == 0 {
		cfg.Policy.FlushInterval.Duration = c.Duration("flush-interval")
	}

	cfg.Archive.Backend = stringOpt(c, "archive-backend", cfg.Archive.Backend)
	cfg.Archive.Path = stringOpt(c, "archive-path", cfg.Archive.Path)
	cfg.Archive.Dataset = stringOpt(c, "archive-dataset", cfg.Archive.Dataset)
	cfg.Archive.Region = stringOpt(c, "archive-s3-region", cfg.Archive.Region)
	cfg.Archive.Endpoint = stringOpt(c, "archive-s3-endpoint", cfg.Archive.Endpoint)
	if c.IsSet("archive-s3-path-style") {
		cfg.Archive.S3PathStyle = c.Bool("archive-s3-path-style")
	}
	if c.IsSet("sidecars") {
		cfg.Archive.Sidecars = c.Bool("sidecars")
	}

	cfg.Adapter.Type = stringOpt(c, "adapter", cfg.Adapter.Type)
	cfg.Adapter.URL = stringOpt(c, "adapter-url", cfg.Adapter.URL)
	cfg.Adapter.Channel = stringOpt(c, "adapter-channel", cfg.Adapter.Channel)
	if c.IsSet("adapter-header") {
		headers, err := parseHeaders(c.StringSlice("adapter-header"))
		if err != nil {
			return nil, err
		}
		cfg.Adapter.Headers = headers
	}
	if c.IsSet("adapter-timeout") {
		cfg.Adapter.Timeout.Duration = c.Duration("adapter-timeout")
	}
	if c.IsSet("adapter-retries") {
		retries := c.Int("adapter-retries")
		cfg.Adapter.Retries = &retries
	}

	cfg.Server.Addr = stringOpt(c, "addr", cfg.Server.Addr)
	cfg.Sessions.Max = intOpt(c, "max-sessions", cfg.Sessions.Max)
	cfg.Sessions.NotifyWorkers = intOpt(c, "notify-workers", cfg.Sessions.NotifyWorkers)
	cfg.Sessions.NotifyQueue = intOpt(c, "notify-queue", cfg.Sessions.NotifyQueue)
	if c.IsSet("metrics") {
		enabled := c.Bool("metrics")
		cfg.Server.Metrics = &enabled
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func stringOpt(c *cli.Context, flag, current string) string {
	if c.IsSet(flag) || current == "" {
		return c.String(flag)
	}
	return current
}

func intOpt(c *cli.Context, flag string, current int) int {
	if c.IsSet(flag) || current == 0 {
		return c.Int(flag)
	}
	return current
}

// parseHeaders parses Key=Value pairs.
func parseHeaders(pairs []string) (map[string]string, error) {
	headers := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid header %q (want Key=Value)", pair)
		}
		headers[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return headers, nil
}

// pipeline holds the archive and notification components shared by replay
// and serve.
type pipeline struct {
	config    *config.Config
	logger    *log.Logger
	collector *metrics.Collector
	// client is nil when no archive path is configured.
	client   *lode.LodeClient
	policy   policy.Policy
	adapter  adapter.Adapter
	notifier *runtime.Notifier
}

// buildPipeline wires storage, policy, adapter and notifier from cfg.
func buildPipeline(ctx context.Context, cfg *config.Config, logger *log.Logger) (*pipeline, error) {
	backend := ""
	if cfg.Archive.Path != "" {
		backend = orDefault(cfg.Archive.Backend, "fs")
	}
	p := &pipeline{
		config:    cfg,
		logger:    logger,
		collector: metrics.NewCollector(orDefault(cfg.Policy.Name, "strict"), backend, cfg.Adapter.Type),
	}

	client, err := buildArchiveClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}
	p.client = client

	var sink policy.Sink = policy.NewStubSink()
	if client != nil {
		sink = lode.NewInstrumentedSink(client, p.collector)
	}
	if p.policy, err = buildPolicy(cfg.Policy, sink, logger); err != nil {
		return nil, fmt.Errorf("failed to create policy: %w", err)
	}

	if p.adapter, err = buildAdapter(cfg.Adapter); err != nil {
		_ = p.policy.Close()
		return nil, fmt.Errorf("failed to create adapter: %w", err)
	}

	if p.notifier, err = buildNotifier(cfg, p.adapter, client, logger, p.collector); err != nil {
		_ = p.Close()
		return nil, err
	}
	return p, nil
}

// Close releases the policy, the archive and the adapter.
func (p *pipeline) Close() error {
	var errs []error
	if p.policy != nil {
		errs = append(errs, p.policy.Close())
	}
	if _, noop := p.policy.(*policy.NoopPolicy); noop && p.client != nil {
		errs = append(errs, p.client.Close())
	}
	if p.adapter != nil {
		errs = append(errs, p.adapter.Close())
	}
	return errors.Join(errs...)
}

// buildArchiveClient opens the write-side archive. Returns nil without an
// archive path.
func buildArchiveClient(ctx context.Context, cfg *config.Config) (*lode.LodeClient, error) {
	a := cfg.Archive
	if a.Path == "" {
		return nil, nil
	}
	lcfg := lode.Config{
		Dataset: a.Dataset,
		Policy:  orDefault(cfg.Policy.Name, "strict"),
	}
	switch a.Backend {
	case "fs", "":
		return lode.NewLodeClient(lcfg, a.Path)
	case "s3":
		return lode.NewLodeS3Client(ctx, lcfg, s3Config(a))
	default:
		return nil, fmt.Errorf("unknown archive backend: %s (must be fs or s3)", a.Backend)
	}
}

// buildArchiveReader opens the read side of the archive.
func buildArchiveReader(ctx context.Context, a config.ArchiveConfig) (*lode.Archive, error) {
	if a.Path == "" {
		return nil, errors.New("archive path is required (--archive-path or archive.path)")
	}
	dataset := orDefault(a.Dataset, lode.DefaultDataset)
	switch a.Backend {
	case "fs", "":
		ds, err := lode.NewReadDatasetFS(dataset, a.Path)
		if err != nil {
			return nil, err
		}
		return lode.NewArchive(ds), nil
	case "s3":
		ds, err := lode.NewReadDatasetS3(ctx, dataset, s3Config(a))
		if err != nil {
			return nil, err
		}
		return lode.NewArchive(ds), nil
	default:
		return nil, fmt.Errorf("unknown archive backend: %s (must be fs or s3)", a.Backend)
	}
}

func s3Config(a config.ArchiveConfig) lode.S3Config {
	bucket, prefix := lode.ParseS3Path(a.Path)
	return lode.S3Config{
		Bucket:       bucket,
		Prefix:       prefix,
		Region:       a.Region,
		Endpoint:     a.Endpoint,
		UsePathStyle: a.S3PathStyle,
	}
}

func buildPolicy(pc config.PolicyConfig, sink policy.Sink, logger *log.Logger) (policy.Policy, error) {
	switch pc.Name {
	case "noop":
		return policy.NewNoopPolicy(), nil

	case "strict", "":
		return policy.NewStrictPolicy(sink), nil

	case "buffered":
		bc := policy.DefaultBufferedConfig()
		if pc.BufferParts > 0 {
			bc.MaxBufferParts = pc.BufferParts
		}
		if pc.BufferBytes > 0 {
			bc.MaxBufferBytes = pc.BufferBytes
		}
		if pc.FlushMode != "" {
			bc.FlushMode = policy.FlushMode(pc.FlushMode)
		}
		bc.Logger = logger
		return policy.NewBufferedPolicy(sink, bc)

	case "streaming":
		if pc.FlushCount <= 0 && pc.FlushInterval.Duration <= 0 {
			return nil, errors.New("streaming policy requires --flush-count > 0 or --flush-interval > 0")
		}
		return policy.NewStreamingPolicy(sink, policy.StreamingConfig{
			FlushCount:    pc.FlushCount,
			FlushInterval: pc.FlushInterval.Duration,
			Logger:        logger,
		})

	default:
		return nil, fmt.Errorf("unknown policy: %s", pc.Name)
	}
}

// buildAdapter returns nil when no adapter is configured.
func buildAdapter(ac config.AdapterConfig) (adapter.Adapter, error) {
	if ac.Type == "" {
		return nil, nil
	}
	if ac.URL == "" {
		return nil, fmt.Errorf("%s adapter requires a URL", ac.Type)
	}
	retries := -1
	if ac.Retries != nil {
		retries = *ac.Retries
	}

	switch ac.Type {
	case "webhook":
		cfg := webhook.Config{
			URL:     ac.URL,
			Headers: ac.Headers,
			Timeout: ac.Timeout.Duration,
			Retries: webhook.DefaultRetries,
		}
		if retries >= 0 {
			cfg.Retries = retries
		}
		return webhook.New(cfg)

	case "redis":
		cfg := redis.Config{
			URL:     ac.URL,
			Channel: ac.Channel,
			Timeout: ac.Timeout.Duration,
			Retries: redis.DefaultRetries,
		}
		if retries >= 0 {
			cfg.Retries = retries
		}
		return redis.New(cfg)

	default:
		return nil, fmt.Errorf("unknown adapter: %s (must be webhook or redis)", ac.Type)
	}
}

// buildNotifier returns nil when there is nothing to notify.
func buildNotifier(cfg *config.Config, a adapter.Adapter, client *lode.LodeClient, logger *log.Logger, collector *metrics.Collector) (*runtime.Notifier, error) {
	nc := runtime.NotifierConfig{
		Parallel:  cfg.Sessions.NotifyWorkers,
		QueueSize: cfg.Sessions.NotifyQueue,
		Adapter:   a,
		Logger:    logger,
		Collector: collector,
	}
	if cfg.Archive.Sidecars {
		if client == nil {
			return nil, errors.New("sidecars require an archive path")
		}
		nc.Files = client
		nc.Render = canvas.NewSelector().RenderArtifact
	}
	if nc.Adapter == nil && nc.Files == nil {
		return nil, nil
	}
	return runtime.NewNotifier(nc)
}

// newLogger builds the command logger at the configured level.
func newLogger(level string) (*log.Logger, error) {
	logger := log.NewLogger(nil)
	if level != "" {
		if err := logger.SetLevel(level); err != nil {
			return nil, err
		}
	}
	return logger, nil
}

// policyName returns the configured policy with the default applied.
func policyName(cfg *config.Config) string {
	return orDefault(cfg.Policy.Name, "strict")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
