package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/sitepack/internal/build"
)

// DefaultAnalysisFile is written by a bare --analyze.
const DefaultAnalysisFile = "build-analysis.json"

var buildCmd = &cobra.Command{
	Use:     "build",
	Aliases: []string{"b"},
	Short:   "Build the site",
	Long: `Bundle the entries, compile the styles, render every page and write the
result to the output directory. Nothing is written unless the whole build
succeeds.

Examples:
  sitepack build                           # Mode from NODE_ENV, development by default
  sitepack build --mode production         # Minified, production bundles
  sitepack build --variant docs            # Build the docs variant
  sitepack build --analyze                 # Also write build-analysis.json
  sitepack build --metrics-file site.prom  # Prometheus textfile with build metrics`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

var (
	buildMode        modeValue
	buildVariant     string
	buildAnalyze     string
	buildMetricsFile string
)

func init() {
	rootCmd.AddCommand(buildCmd)

	addTargetFlags(buildCmd.Flags(), &buildMode, &buildVariant)
	buildCmd.Flags().StringVar(&buildAnalyze, "analyze", "", "write a JSON size report (default path "+DefaultAnalysisFile+")")
	buildCmd.Flags().Lookup("analyze").NoOptDefVal = DefaultAnalysisFile
	buildCmd.Flags().StringVar(&buildMetricsFile, "metrics-file", "", "write build metrics in the Prometheus text format")
}

func runBuild(cmd *cobra.Command, args []string) error {
	p, err := loadProject()
	if err != nil {
		return err
	}

	bc, err := p.assemble(buildVariant, buildMode.mode)
	if err != nil {
		return err
	}

	start := time.Now()
	result, buildErr := build.NewEngine(bc, p.logger).Build(cmd.Context())

	// The metrics file also records failed builds.
	if buildMetricsFile != "" {
		history := build.NewBuildMetrics()
		history.RecordBuild(result, time.Since(start), buildErr)
		if err := build.WriteMetrics(buildMetricsFile, result, history); err != nil {
			return fmt.Errorf("writing metrics: %w", err)
		}
	}

	if buildErr != nil {
		return fmt.Errorf("build failed: %w", buildErr)
	}

	if buildAnalyze != "" {
		if err := build.WriteAnalysis(buildAnalyze, result); err != nil {
			return fmt.Errorf("writing analysis: %w", err)
		}
	}

	return printResult(cmd.OutOrStdout(), result)
}

// printResult lists the files a build wrote.
func printResult(w io.Writer, result *build.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, f := range result.Files {
		fmt.Fprintf(tw, "  %s\t%d\t%s\n", f.Kind, f.Size, f.Path)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "Built %d files (%d bytes) in %s to %s\n",
		len(result.Files), result.TotalSize(), result.Duration.Round(time.Millisecond), result.OutputDir)

	return err
}
