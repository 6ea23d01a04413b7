// Package cmd provides the sitepack command-line interface.
//
// Configuration System:
//
//	Configuration is read from several sources with clear precedence:
//	1. Command-line flags (--mode, --variant, ...) - highest priority
//	2. SITEPACK_CONFIG_FILE environment variable - custom config file path
//	3. Individual environment variables (SITEPACK_TARGET_OUTPUT_DIR, ...)
//	4. Configuration file (.sitepack.yml) - lowest priority
//
// The project root is the directory holding the configuration file, or the
// working directory when there is none. Its .env file is read into the
// environment handed to the build; the process environment wins over it.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/conneroisu/sitepack/internal/assembler"
	"github.com/conneroisu/sitepack/internal/config"
	"github.com/conneroisu/sitepack/internal/errors"
	"github.com/conneroisu/sitepack/internal/logging"
)

// EnvConfigFile names an alternative configuration file.
const EnvConfigFile = "SITEPACK_CONFIG_FILE"

var (
	cfgFile   string
	logLevel  string
	logFormat string

	// configErr holds a failure to read an explicitly named config file.
	configErr error
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sitepack",
	Short: "Build a static site from Handlebars pages, SCSS and JavaScript",
	Long: `sitepack bundles JavaScript entries, compiles SCSS, renders Handlebars pages
and writes a content-hashed static site to the output directory.

Quick Start:
  sitepack config init            Write a starter .sitepack.yml
  sitepack build                  Build the site (NODE_ENV selects the mode)
  sitepack build --mode production
  sitepack watch                  Rebuild whenever a source file changes
  sitepack config show            Print the assembled build configuration`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// An interrupt cancels the running build.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, errors.FormatSuggestions("Error: "+err.Error(), errors.Suggestions(err)))
	}

	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .sitepack.yml, can also use "+EnvConfigFile+" env var)")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (console, json); console when stderr is a terminal")
}

// initConfig points viper at the configuration file.
//
// Configuration Loading Priority (highest to lowest):
//  1. --config flag
//  2. SITEPACK_CONFIG_FILE environment variable
//  3. Default: .sitepack.yml in the current directory
//
// A missing default file is not an error; the canonical target applies.
func initConfig() {
	viper.Reset()
	configErr = nil

	explicit := cfgFile
	if explicit == "" {
		explicit = os.Getenv(EnvConfigFile)
	}

	if explicit != "" {
		viper.SetConfigFile(explicit)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(strings.TrimSuffix(config.DefaultConfigFile, filepath.Ext(config.DefaultConfigFile)))
	}

	viper.SetEnvPrefix("SITEPACK")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit != "" || !errors.As(err, &notFound) {
			configErr = fmt.Errorf("reading config file: %w", err)
		}
	}
}

// newLogger builds the logger selected by --log-level and --log-format.
func newLogger() (logging.Logger, error) {
	level, err := logging.ParseLevel(logLevel)
	if err != nil {
		return nil, err
	}

	format := logFormat
	if format == "" {
		format = "json"
		if term.IsTerminal(int(os.Stderr.Fd())) {
			format = "console"
		}
	}
	if format != "json" && format != "console" {
		return nil, fmt.Errorf("unsupported log format: %s (supported: console, json)", format)
	}

	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: format,
		Output: os.Stderr,
	}), nil
}

// project is everything a command needs to assemble a build.
type project struct {
	root   string
	config *config.Config
	env    map[string]string
	logger logging.Logger
}

// loadProject reads the configuration, the project's .env file and sets up
// logging.
func loadProject() (*project, error) {
	if configErr != nil {
		return nil, configErr
	}

	logger, err := newLogger()
	if err != nil {
		return nil, err
	}

	root, err := projectRoot()
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	env, err := loadEnv(root)
	if err != nil {
		return nil, err
	}

	return &project{root: root, config: cfg, env: env, logger: logger}, nil
}

// reload re-reads the configuration file and .env, for rebuilds in watch
// mode.
func (p *project) reload() error {
	if viper.ConfigFileUsed() != "" {
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	env, err := loadEnv(p.root)
	if err != nil {
		return err
	}

	p.config = cfg
	p.env = env

	return nil
}

func (p *project) assemble(variant string, mode assembler.Mode) (*assembler.BuildConfiguration, error) {
	return assembler.Assemble(p.config, assembler.Options{
		Root:         p.root,
		Variant:      variant,
		Env:          p.env,
		ModeOverride: mode,
	})
}

func projectRoot() (string, error) {
	if used := viper.ConfigFileUsed(); used != "" {
		abs, err := filepath.Abs(used)
		if err != nil {
			return "", fmt.Errorf("resolving config path: %w", err)
		}

		return filepath.Dir(abs), nil
	}

	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}

	return wd, nil
}
