package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-trampoline/config"
	"github.com/wippyai/wasm-trampoline/engine"
	"github.com/wippyai/wasm-trampoline/hosts"
	"github.com/wippyai/wasm-trampoline/linker"
	"github.com/wippyai/wasm-trampoline/metrics"
)

// rootOptions holds global flags and the state PersistentPreRunE derives
// from them.
type rootOptions struct {
	configPath string
	logLevel   string

	cfg *config.Config
	log *zap.Logger
}

// NewRootCommand creates the trampoline CLI.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "trampoline",
		Short:         "Link wasm modules against versioned host interfaces",
		Long:          "Resolve the imports of a core wasm module against the built-in hosts\n(counter, kvstore, logger, timer) and call its exports through the linker.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.setup()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (yaml, json or toml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug|info|warn|error), overrides config")

	cmd.AddCommand(newInspectCommand(opts))
	cmd.AddCommand(newPlanCommand(opts))
	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newExampleCommand(opts))

	return cmd
}

func (o *rootOptions) setup() error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	log, err := cfg.NewLogger()
	if err != nil {
		return err
	}
	linker.SetLogger(log)
	engine.SetLogger(log)

	o.cfg = cfg
	o.log = log
	return nil
}

// module is a loaded wasm file together with the engine that owns it.
type module struct {
	name   string
	engine *engine.WazeroEngine
	comp   *engine.WazeroComponent
}

func (o *rootOptions) loadModule(ctx context.Context, path string) (*module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read module: %w", err)
	}

	eng, err := engine.NewWazeroEngineWithConfig(ctx, o.cfg.EngineOptions())
	if err != nil {
		return nil, err
	}
	comp, err := eng.LoadModule(ctx, data)
	if err != nil {
		return nil, multierr.Append(err, eng.Close(ctx))
	}
	return &module{name: filepath.Base(path), engine: eng, comp: comp}, nil
}

func (m *module) Close(ctx context.Context) error {
	return m.engine.Close(ctx)
}

// newLinker builds a linker over the built-in hosts. The returned registry
// is nil unless metrics are enabled.
func (o *rootOptions) newLinker() (*linker.Linker[hosts.State], *prometheus.Registry, error) {
	lopts, err := o.cfg.LinkerOptions()
	if err != nil {
		return nil, nil, err
	}

	var reg *prometheus.Registry
	if o.cfg.Metrics.Enabled {
		reg = prometheus.NewRegistry()
		col, err := metrics.New(reg)
		if err != nil {
			return nil, nil, err
		}
		lopts.Observer = col
	}

	l, err := hosts.NewLinker(lopts, hosts.Options{Logger: o.log})
	if err != nil {
		return nil, nil, err
	}
	return l, reg, nil
}
