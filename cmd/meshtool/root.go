package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wbrown/janus-mesh/mesh"
	"github.com/wbrown/janus-mesh/mesh/annotations"
	"github.com/wbrown/janus-mesh/mesh/config"
	"github.com/wbrown/janus-mesh/mesh/storage"
)

// rootOptions holds the global flags and the state built from them
type rootOptions struct {
	configPath string
	verbose    bool
	events     bool

	cfg    config.Config
	logger *zap.Logger
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{logger: zap.NewNop()}

	cmd := &cobra.Command{
		Use:   "meshtool",
		Short: "Inspect and edit finite-element mesh stores",
		Long: `meshtool works on mesh stores written by janus-mesh.

Edits are recorded and flushed as a single batch; a failed command leaves
the store as it was.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = opts.logger.Sync()
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")
	cmd.PersistentFlags().BoolVar(&opts.events, "events", false, "print operation events")

	cmd.AddCommand(newInfoCommand(opts))
	cmd.AddCommand(newSkinCommand(opts))
	cmd.AddCommand(newSplitCommand(opts))
	cmd.AddCommand(newMergeCommand(opts))
	cmd.AddCommand(newExportCommand(opts))
	cmd.AddCommand(newDiffCommand(opts))

	return cmd
}

func (o *rootOptions) setup() error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	o.cfg = cfg

	zc := zap.NewProductionConfig()
	if o.verbose {
		zc = zap.NewDevelopmentConfig()
	} else if cfg.Log.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Log.Level)
		if err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}
		zc.Level = level
	}
	zc.OutputPaths = []string{"stderr"}
	logger, err := zc.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	o.logger = logger
	return nil
}

// storageOptions returns handle options wired to the logger and, with
// --events, to a console formatter
func (o *rootOptions) storageOptions() storage.Options {
	opts := o.cfg.StorageOptions()
	opts.Columnar.Logger = o.logger
	var console annotations.Handler
	if o.events || o.cfg.Log.Events {
		console = annotations.NewOutputFormatter(os.Stderr).Handle
	}
	var logged annotations.Handler
	if o.logger.Core().Enabled(zapcore.DebugLevel) {
		logged = annotations.ZapHandler(o.logger)
	}
	opts.Handler = annotations.Tee(logged, console)
	return opts
}

func (o *rootOptions) open(path string, mode mesh.Mode) (*storage.Handle, error) {
	o.logger.Debug("opening store", zap.String("path", path), zap.Stringer("mode", mode))
	return storage.Open(path, mode, o.storageOptions())
}

// commit flushes h and closes it, reporting the first error
func (o *rootOptions) commit(h *storage.Handle) error {
	if err := h.Flush(); err != nil {
		h.Close()
		return err
	}
	o.logger.Info("flushed", zap.Uint64("revision", h.Ledger().Revision()))
	return h.Close()
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

// parseBox parses "x0,y0[,z0]:x1,y1[,z1]"
func parseBox(s string) (lo, hi []float64, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return nil, nil, fmt.Errorf("box must be lo:hi, got %q", s)
	}
	parse := func(p string) ([]float64, error) {
		var out []float64
		for _, f := range strings.Split(p, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid coordinate %q", f)
			}
			out = append(out, v)
		}
		return out, nil
	}
	if lo, err = parse(parts[0]); err != nil {
		return nil, nil, err
	}
	if hi, err = parse(parts[1]); err != nil {
		return nil, nil, err
	}
	if len(lo) != len(hi) {
		return nil, nil, fmt.Errorf("box corners have %d and %d coordinates", len(lo), len(hi))
	}
	return lo, hi, nil
}
