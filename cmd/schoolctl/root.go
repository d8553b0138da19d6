package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"schoolcore/internal/blob"
	"schoolcore/internal/config"
	"schoolcore/internal/core"
)

// app carries the global flags and the streams commands write to.
type app struct {
	configPath  string
	driver      string
	logLevel    string
	trace       bool
	stats       bool
	metricsFile string

	out    io.Writer
	errOut io.Writer
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut}
	root := &cobra.Command{
		Use:   "schoolctl",
		Short: "Manage schools, colleges and students",
		Long: `schoolctl edits a school -> college -> student directory while keeping
every student's college reference valid.

Examples:
  schoolctl school create "A University"
  schoolctl college create "A University" Science
  schoolctl student create 101 Ame Johnson --school "A University" --college Science
  schoolctl report
  schoolctl --driver memory demo`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "schoolcore.yaml", "path to the YAML config file")
	flags.StringVar(&a.driver, "driver", "", "storage driver: memory, sqlite, postgres, mysql or dynamo")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.BoolVar(&a.trace, "trace", false, "write a JSON span per operation to stderr")
	flags.BoolVar(&a.stats, "stats", false, "print per-operation counters to stderr on exit")
	flags.StringVar(&a.metricsFile, "metrics-textfile", "", "write Prometheus metrics to this file on exit")

	root.AddCommand(
		newSchoolCmd(a),
		newCollegeCmd(a),
		newStudentCmd(a),
		newReportCmd(a),
		newBackupCmd(a),
		newDemoCmd(a),
	)
	return root
}

func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, err
	}
	if a.driver != "" {
		cfg.Storage.Driver = core.StorageDriver(a.driver)
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	return cfg, nil
}

// session is one opened directory; close releases the store and flushes the
// exporters.
type session struct {
	svc   *core.Service
	cfg   *config.Config
	close func() error
}

func (a *app) open(ctx context.Context) (*session, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := cfg.Log.NewLogger(a.errOut)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	promRec, err := core.NewPrometheusMetricsRecorder(reg)
	if err != nil {
		return nil, err
	}
	expRec := core.NewExpvarMetricsRecorder("")
	opts := []core.ServiceOption{
		core.WithLogger(logger),
		core.WithPolicy(cfg.Policy()),
		core.WithMetricsRecorder(multiRecorder{promRec, expRec}),
	}
	if a.trace {
		opts = append(opts, core.WithTracer(core.NewJSONTracer(a.errOut)))
	}

	store, err := core.OpenPersistentStore(ctx, cfg.Storage, core.NewDefaultRulesEngine())
	if err != nil {
		return nil, err
	}
	svc := core.NewService(store, opts...)
	logger.Debug("directory opened", "driver", cfg.Storage.Driver)

	return &session{
		svc: svc,
		cfg: cfg,
		close: func() error {
			closeErr := svc.Close()
			if a.stats {
				enc := json.NewEncoder(a.errOut)
				enc.SetIndent("", "  ")
				if err := enc.Encode(expRec.Snapshot()); err != nil && closeErr == nil {
					closeErr = err
				}
			}
			if a.metricsFile != "" {
				if err := prometheus.WriteToTextfile(a.metricsFile, reg); err != nil && closeErr == nil {
					closeErr = fmt.Errorf("write metrics: %w", err)
				}
			}
			return closeErr
		},
	}, nil
}

// run opens the directory, calls fn and releases the directory on every path.
func (a *app) run(cmd *cobra.Command, fn func(ctx context.Context, s *session) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(ctx, s)
}

func (a *app) openBlob(ctx context.Context, s *session) (blob.Store, error) {
	return blob.Open(ctx, s.cfg.Blob)
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

type multiRecorder []core.MetricsRecorder

func (m multiRecorder) Observe(ctx context.Context, operation string, success bool, duration time.Duration) {
	for _, r := range m {
		r.Observe(ctx, operation, success, duration)
	}
}
