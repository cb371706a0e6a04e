// Package cli implements the workbox command line.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/soypat/workbox"
	"github.com/soypat/workbox/internal/buildinfo"
	"github.com/soypat/workbox/internal/config"
	"github.com/soypat/workbox/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Execute runs the workbox command and exits with status 1 on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries state shared by the subcommands of one invocation.
type app struct {
	configPath string
	cfg        *config.Config
	log        *zap.Logger
	closeLog   func() error
}

func newRootCmd() *cobra.Command {
	a := &app{log: zap.NewNop()}
	cmd := &cobra.Command{
		Use:   "workbox",
		Short: "Generate a two part electronics enclosure as STL and SVG files",
		Long: `workbox builds a shelled base with screw posts and a wiring slot plus a
fitted lid, then writes workBox.stl, workBoxLid.stl, workBox.svg and
workBoxLid.svg. Settings come from flags, WORKBOX_* environment variables
and an optional workbox.yaml config file, in that order of precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.teardown()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.report(a.build())
		},
	}
	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default ./workbox.yaml if present)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		&cobra.Command{
			Use:   "build",
			Short: "Build the enclosure and write the output files (default)",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				return a.report(a.build())
			},
		},
		&cobra.Command{
			Use:   "params",
			Short: "Print resolved parameters and derived dimensions as YAML",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.report(a.params(cmd.OutOrStdout()))
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Args:  cobra.NoArgs,
			// No config or logger needed.
			PersistentPreRunE:  func(*cobra.Command, []string) error { return nil },
			PersistentPostRunE: func(*cobra.Command, []string) error { return nil },
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), buildinfo.String())
			},
		},
	)
	cmd.Args = cobra.NoArgs
	return cmd
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath, cmd.Flags())
	if err != nil {
		// No configured logger yet; report with the defaults.
		if log, closeLog, lerr := logger.New(logger.DefaultConfig()); lerr == nil {
			log.Error("load configuration", zap.Error(err))
			_ = closeLog()
		}
		return err
	}
	log, closeLog, err := logger.New(cfg.Log.Logger())
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	a.cfg, a.log, a.closeLog = cfg, log, closeLog
	return nil
}

func (a *app) teardown() error {
	_ = a.log.Sync()
	if a.closeLog != nil {
		return a.closeLog()
	}
	return nil
}

// report logs a failed command. Cobra does not run post hooks on error so
// the logger is released here too.
func (a *app) report(err error) error {
	if err != nil {
		a.log.Error("workbox failed", zap.Error(err))
		_ = a.teardown()
		a.closeLog = nil
	}
	return err
}

func (a *app) build() error {
	p := a.cfg.Params
	out := a.cfg.Output
	a.log.Info("building enclosure",
		zap.Float64("length", p.Length),
		zap.Float64("width", p.Width),
		zap.Float64("height", p.Height),
		zap.Float64("shell_thickness", p.ShellThickness),
	)
	e, err := workbox.Build(p, workbox.WithLogger(a.log))
	if err != nil {
		return err
	}
	exp := workbox.DefaultExportConfig()
	exp.Dir = out.Dir
	exp.Resolution = out.Resolution
	exp.STL, exp.SVG = out.STL, out.SVG
	exp.Assembly, exp.Preview, exp.Manifest = out.Assembly, out.Preview, out.Manifest
	exp.Log = a.log
	written, err := e.Export(exp)
	if err != nil {
		return err
	}
	a.log.Info("done", zap.Int("files", len(written)))
	return nil
}

func (a *app) params(w io.Writer) error {
	data, err := a.cfg.Params.YAML()
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	return a.cfg.Params.Validate()
}
