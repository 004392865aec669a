package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/qmjianda/loglayout-sub001/internal/config"
	"github.com/qmjianda/loglayout-sub001/internal/logging"
	"github.com/qmjianda/loglayout-sub001/internal/preset"
)

// Version is set at build time.
var Version = "dev"

// app carries what every subcommand needs once the root has loaded the
// configuration.
type app struct {
	configPath string
	logLevel   string
	// quiet drops console logging (full-screen viewer).
	quiet bool

	cfg    config.Config
	log    zerolog.Logger
	closer io.Closer
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.quiet {
		cfg.Log.Quiet = true
	}
	logger, closer, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	a.cfg, a.log, a.closer = cfg, logger, closer
	return nil
}

func (a *app) openPresets() (preset.Store, error) {
	store, err := preset.Open(a.cfg.Presets.Driver, a.cfg.Presets.Path)
	if err != nil {
		return nil, fmt.Errorf("open presets: %w", err)
	}
	return store, nil
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "loglayout",
		Short:         "Layered log viewer: stack filters, highlights and transforms over large log files",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.closer != nil {
				a.closer.Close()
			}
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Config file (default: ./loglayout.yaml or the user config dir)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	root.AddCommand(
		newServeCmd(a),
		newViewCmd(a),
		newRunCmd(a),
		newPresetCmd(a),
		newTokenCmd(a),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
