// Package cli wires the cleannames commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/David-Botos/column-janitor/pkg/config"
	"github.com/David-Botos/column-janitor/pkg/model"
)

// Config holds what the commands need from their environment
type Config struct {
	OutputWriter io.Writer
	InputReader  io.Reader
	// LoadConfig reads the application configuration; config.LoadConfig by default
	LoadConfig func() (*config.Config, error)
}

// DefaultConfig returns a Config bound to the process's stdio and environment
func DefaultConfig() Config {
	return Config{
		OutputWriter: os.Stdout,
		InputReader:  os.Stdin,
		LoadConfig:   config.LoadConfig,
	}
}

type runtimeState struct {
	load   func() (*config.Config, error)
	cfg    *config.Config
	logger *zap.Logger
	writer io.Writer
	reader io.Reader

	profilePath    string
	caseType       string
	stripMode      string
	removeSpecial  bool
	stripAccents   bool
	truncateLimit  int
	outputFormat   string
	logLevel       string
	restoreGlobals func()
}

type runtimeKey struct{}

// NewRootCommand builds the cleannames command tree
func NewRootCommand(cfg Config) *cobra.Command {
	rt := &runtimeState{
		load:   cfg.LoadConfig,
		writer: cfg.OutputWriter,
		reader: cfg.InputReader,
	}

	root := &cobra.Command{
		Use:           "cleannames",
		Short:         "Clean column names and values",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return rt.init(cmd)
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if rt.logger != nil {
				_ = rt.logger.Sync()
			}
			if rt.restoreGlobals != nil {
				rt.restoreGlobals()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&rt.profilePath, "profile", "", "YAML cleaning profile")
	flags.StringVar(&rt.caseType, "case", "", "Case type: preserve, lower, upper, snake, camel, pascal, title, sentence")
	flags.StringVar(&rt.stripMode, "strip-underscores", "", "Strip edge underscores: none, left, right, both")
	flags.BoolVar(&rt.removeSpecial, "remove-special", false, "Keep only ASCII letters, digits and underscores")
	flags.BoolVar(&rt.stripAccents, "strip-accents", false, "Remove diacritics")
	flags.IntVar(&rt.truncateLimit, "truncate", 0, "Maximum label length in characters (0 disables)")
	flags.StringVarP(&rt.outputFormat, "output", "o", "text", "Output format: text, json, yaml")
	flags.StringVar(&rt.logLevel, "log-level", "", "Log level override")

	root.SetContext(context.WithValue(context.Background(), runtimeKey{}, rt))

	root.AddCommand(
		NewNamesCommand(),
		NewTableCommand(),
		NewValuesCommand(),
	)

	return root
}

func getRuntime(cmd *cobra.Command) (*runtimeState, error) {
	rt, ok := cmd.Context().Value(runtimeKey{}).(*runtimeState)
	if !ok || rt == nil {
		return nil, errors.New("runtime not initialized")
	}
	return rt, nil
}

// init loads configuration and applies profile and flag overrides, in that order
func (rt *runtimeState) init(cmd *cobra.Command) error {
	if rt.writer == nil {
		rt.writer = os.Stdout
	}
	if rt.reader == nil {
		rt.reader = os.Stdin
	}
	if rt.load == nil {
		rt.load = config.LoadConfig
	}

	cfg, err := rt.load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	rt.cfg = cfg

	if rt.profilePath != "" {
		cleaning, err := config.LoadCleaningProfile(rt.profilePath, rt.cfg.Cleaning)
		if err != nil {
			return err
		}
		rt.cfg.Cleaning = cleaning
	}
	if err := rt.applyFlags(cmd); err != nil {
		return err
	}

	switch rt.outputFormat {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("unsupported output format %q", rt.outputFormat)
	}

	level := rt.cfg.LogLevel
	if rt.logLevel != "" {
		level = rt.logLevel
	}
	logger, err := config.NewLogger(level, rt.cfg.LogFormat)
	if err != nil {
		return err
	}
	rt.logger = logger
	// connectors log through the global logger
	rt.restoreGlobals = zap.ReplaceGlobals(logger)
	return nil
}

func (rt *runtimeState) applyFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()
	c := &rt.cfg.Cleaning

	if flags.Changed("case") {
		ct, err := model.ParseCaseType(rt.caseType)
		if err != nil {
			return err
		}
		c.CaseType = ct
	}
	if flags.Changed("strip-underscores") {
		mode, err := model.ParseUnderscoreStrip(rt.stripMode)
		if err != nil {
			return err
		}
		c.StripUnderscores = mode
	}
	if flags.Changed("remove-special") {
		c.RemoveSpecial = rt.removeSpecial
	}
	if flags.Changed("strip-accents") {
		c.StripAccents = rt.stripAccents
	}
	if flags.Changed("truncate") {
		c.TruncateLimit = rt.truncateLimit
	}
	return c.Validate()
}
