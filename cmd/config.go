package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/sitepack/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect, validate and create the site configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the assembled build configuration",
	Long: `Assemble the build configuration exactly as "sitepack build" would and print
it: the resolved target, the transform rules, the pages and the metadata.

Examples:
  sitepack config show                         # JSON for the canonical target
  sitepack config show --format yaml
  sitepack config show --variant docs --mode production`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and every variant",
	Long: `Check the canonical target and every variant, then assemble each of them
against the project so missing templates, partials and entries are reported.
Exits non-zero if anything is wrong.`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter " + config.DefaultConfigFile,
	Long: `Write a starter configuration holding the canonical target and an example
variant. The file goes to --config when given, otherwise to
` + config.DefaultConfigFile + ` in the current directory.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var (
	configFormat  string
	configMode    modeValue
	configVariant string
	configForce   bool
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configValidateCmd, configInitCmd)

	addTargetFlags(configShowCmd.Flags(), &configMode, &configVariant)
	configShowCmd.Flags().StringVarP(&configFormat, "format", "f", "json", "Output format (json, yaml)")
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing configuration file")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	if configFormat != "json" && configFormat != "yaml" {
		return fmt.Errorf("unsupported format: %s (supported: json, yaml)", configFormat)
	}

	p, err := loadProject()
	if err != nil {
		return err
	}

	bc, err := p.assemble(configVariant, configMode.mode)
	if err != nil {
		return err
	}

	return encode(cmd.OutOrStdout(), configFormat, bc)
}

func encode(w io.Writer, format string, v interface{}) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}

		return enc.Close()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	p, err := loadProject()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	result := config.ValidateConfigWithDetails(p.config)
	fmt.Fprint(out, result.String())

	failed := result.HasErrors()
	variants := append([]string{""}, p.config.VariantNames()...)
	for _, variant := range variants {
		name := variant
		if name == "" {
			name = "(canonical)"
		}

		if _, err := p.assemble(variant, ""); err != nil {
			failed = true
			fmt.Fprintf(out, "✗ %s: %v\n", name, err)

			continue
		}
		fmt.Fprintf(out, "✓ %s\n", name)
	}

	if failed {
		return fmt.Errorf("configuration is invalid")
	}

	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if path == "" {
		path = config.DefaultConfigFile
	}

	if err := config.WriteConfigFile(path, config.StarterConfig(), configForce); err != nil {
		return err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Configuration saved to %s\n", abs)

	return nil
}
