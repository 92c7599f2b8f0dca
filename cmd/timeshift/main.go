package main

import (
	"context"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/BYTE-6D65/timeshift/pkg/engine"
)

const version = "0.1.0"

// Flags shared by every command.
var (
	configPath string
	storeName  string
	logLevel   string
	modeFlag   string
	strictFlag bool
	fileFlags  []string

	cfg engine.Config
)

var rootCmd = &cobra.Command{
	Use:   "timeshift",
	Short: "Convert instants between GNSS and civil time scales",
	Long: `timeshift - time scale conversion backed by correction stores.

Corrections (a0 + a1*dt + a2*dt^2 offsets between two scales) are read from
JSON or JSON lines files into an in-memory store. Instants are then converted
directly, through a reversed correction, or through one intermediate scale.

Configuration sources (in order of precedence):
1. Command line flags
2. Environment variables (TIMESHIFT_* prefix)
3. Config file (--config, TOML)
4. Default values

Examples:
  timeshift convert 2020-01-01T00:00:00 GST --to GPST -f gal.jsonl
  timeshift list -f gal.jsonl
  timeshift outdate --weekly -f gal.jsonl --out fresh.jsonl
  timeshift now --ntp
  timeshift tui -f gal.jsonl`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = loadConfig(cmd); err != nil {
			return err
		}
		setupLogger(cfg.Level())
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "TOML config file")
	flags.StringVarP(&storeName, "store", "s", "", "store to load and query (default: the configured default store)")
	flags.StringVar(&logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	flags.StringVar(&modeFlag, "mode", "", "store mode: database or resolver")
	flags.BoolVar(&strictFlag, "strict", false, "only apply corrections inside their validity window")
	flags.StringSliceVarP(&fileFlags, "files", "f", nil, "correction files to load (JSON array or JSON lines)")

	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(outdateCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(fitCmd)
	rootCmd.AddCommand(nowCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig layers explicitly set flags over the file and env config.
func loadConfig(cmd *cobra.Command) (engine.Config, error) {
	c, err := engine.Load(configPath)
	if err != nil {
		return c, err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		c.LogLevel = logLevel
	}
	if flags.Changed("mode") {
		m, err := engine.ParseMode(modeFlag)
		if err != nil {
			return c, err
		}
		c.Mode = m
	}
	if flags.Changed("strict") {
		c.StrictValidity = strictFlag
	}
	if flags.Changed("store") {
		if !slices.Contains(c.Stores, storeName) {
			c.Stores = append(c.Stores, storeName)
		}
		c.DefaultStore = storeName
	}
	c.CorrectionFiles = append(c.CorrectionFiles, fileFlags...)
	return c, c.Validate()
}

func setupLogger(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		With().Timestamp().Logger()
}

// openEngine builds an engine from the loaded config and ingests its
// correction files into the default store.
func openEngine(ctx context.Context, extra ...engine.EngineOption) (*engine.Engine, error) {
	opts := append([]engine.EngineOption{
		engine.WithConfig(cfg),
		engine.WithLogger(log.Logger),
	}, extra...)
	eng, err := engine.New(opts...)
	if err != nil {
		return nil, err
	}
	if _, err := eng.IngestFiles(ctx); err != nil {
		return nil, err
	}
	return eng, nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if hint := errors.FlattenHints(err); hint != "" {
			fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
		}
		os.Exit(1)
	}
}
