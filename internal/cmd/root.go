package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/areed1192/tap-federal-reserve/internal/archive"
	"github.com/areed1192/tap-federal-reserve/internal/cmd/schema"
	"github.com/areed1192/tap-federal-reserve/internal/config"
	"github.com/areed1192/tap-federal-reserve/internal/fred"
	"github.com/areed1192/tap-federal-reserve/internal/metrics"
	"github.com/areed1192/tap-federal-reserve/internal/singer"
	"github.com/areed1192/tap-federal-reserve/internal/tap"
)

const envPrefix = "TAP_FEDERAL_RESERVE"

type rootOptions struct {
	configPath     string
	discover       bool
	catalogPath    string
	propertiesPath string
	statePath      string
	metricsFile    string
	logLevel       string
}

func NewRootCommand() *cobra.Command {
	var o rootOptions
	v := viper.New()

	var cmd = &cobra.Command{
		Use:           "tap-federal-reserve",
		Short:         "Singer tap for series metadata from the FRED API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(o.logLevel, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer logger.Sync()

			return run(cmd.Context(), o, v, logger, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&o.configPath, "config", "c", "", "Path to config file (JSON or YAML)")
	cmd.Flags().BoolVarP(&o.discover, "discover", "d", false, "Print the catalog and exit")
	cmd.Flags().StringVar(&o.catalogPath, "catalog", "", "Path to a catalog file")
	cmd.Flags().StringVarP(&o.propertiesPath, "properties", "p", "", "Path to a properties file (legacy catalog)")
	cmd.Flags().StringVarP(&o.statePath, "state", "s", "", "Path to a state file (ignored)")
	cmd.Flags().StringVar(&o.metricsFile, "metrics-file", "", "Write Prometheus textfile metrics to this path on exit")
	cmd.Flags().StringVar(&o.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().String("archive", "", "Override the archive type (local, s3, none)")
	cmd.MarkFlagRequired("config")

	v.BindPFlag("archive.type", cmd.Flags().Lookup("archive"))
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cmd.AddCommand(schema.NewCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

// newLogger writes console formatted logs to w. Stdout is reserved for
// Singer messages.
func newLogger(level string, w io.Writer) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(w),
		lvl,
	)
	return zap.New(core), nil
}

func run(ctx context.Context, o rootOptions, v *viper.Viper, logger *zap.Logger, stdout io.Writer) (err error) {
	l := logger.Named("tap")

	c, err := config.NewFromFile(o.configPath)
	if err != nil {
		return err
	}
	c.ApplyOverrides(v)
	if err := c.Validate(); err != nil {
		return err
	}

	for _, fpath := range []string{o.catalogPath, o.propertiesPath} {
		if fpath == "" {
			continue
		}
		catalog, err := readCatalog(fpath)
		if err != nil {
			return err
		}
		l.Info("catalog supplied; all bundled streams are synced regardless",
			zap.String("path", fpath),
			zap.Int("num_streams", len(catalog.Streams)),
		)
	}
	if o.statePath != "" {
		l.Info("state is not supported; ignoring", zap.String("path", o.statePath))
	}

	if o.discover {
		if o.metricsFile != "" {
			l.Info("metrics are recorded for sync runs only; skipping", zap.String("path", o.metricsFile))
		}
		catalog, err := tap.New(tap.WithLogger(logger)).Discover()
		if err != nil {
			return err
		}
		return catalog.Dump(stdout)
	}

	m := metrics.New()
	if o.metricsFile != "" {
		defer func() {
			if werr := m.WriteTextfile(o.metricsFile); werr != nil {
				l.Error("writing metrics", zap.Error(werr))
				err = errors.Join(err, werr)
			}
		}()
	}

	return runSync(ctx, c, m, logger, stdout)
}

func runSync(ctx context.Context, c *config.Config, m *metrics.Metrics, logger *zap.Logger, stdout io.Writer) error {
	clientOpts := []fred.Option{
		fred.WithLogger(logger.Named("fred")),
		fred.WithMetrics(m),
		fred.WithUserAgent(c.UserAgent),
	}
	if c.BaseURL != "" {
		clientOpts = append(clientOpts, fred.WithBaseURL(c.BaseURL))
	}

	writerOpts := []singer.WriterOption{singer.WithMetrics(m)}

	var archiver *archive.Archiver
	if c.Archive.Enabled() {
		a, err := newArchiver(c.Archive, logger)
		if err != nil {
			return err
		}
		archiver = a
		writerOpts = append(writerOpts, singer.WithTee(a.Writer()))
	}

	t := tap.New(
		tap.WithLogger(logger),
		tap.WithFetcher(fred.New(c.APIKey, clientOpts...)),
		tap.WithWriter(singer.NewWriter(stdout, writerOpts...)),
		tap.WithMetrics(m),
	)

	result, syncErr := t.Sync(ctx, c)
	if archiver == nil {
		return syncErr
	}

	manifest := archive.Manifest{
		Stream:            result.Stream,
		SeriesID:          c.SeriesID,
		RealtimeStart:     result.RealtimeStart,
		RealtimeEnd:       result.RealtimeEnd,
		NumSourceRecords:  result.NumSourceRecords,
		NumRecordsEmitted: result.NumRecordsEmitted,
		State:             string(result.State),
		Completed:         syncErr == nil,
	}
	if syncErr != nil {
		manifest.Error = syncErr.Error()
	}

	// the run context may already be cancelled; the archive still records it
	_, archiveErr := archiver.Finish(context.WithoutCancel(ctx), manifest)
	return errors.Join(syncErr, archiveErr)
}

func readCatalog(fpath string) (*singer.Catalog, error) {
	f, err := os.Open(fpath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	catalog, err := singer.ReadCatalog(f)
	if err != nil {
		return nil, fmt.Errorf("reading catalog %q: %w", fpath, err)
	}
	return catalog, nil
}

// Execute runs the root command and exits non-zero on failure. It is called
// by main.main().
func Execute() {
	// a missing .env file is not an error
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := NewRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
