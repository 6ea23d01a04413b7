package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/sitepack/internal/assembler"
	"github.com/conneroisu/sitepack/internal/build"
	"github.com/conneroisu/sitepack/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"w"},
	Short:   "Rebuild the site whenever a source file changes",
	Long: `Build the site, then watch the project for changes to scripts, styles,
templates, content, images and configuration, rebuilding once per burst of
changes. The output directory, hidden directories and node_modules are not
watched. A failed rebuild is logged and the previous output stays in place.

Examples:
  sitepack watch                      # Watch and rebuild in development mode
  sitepack watch --variant docs       # Watch the docs variant
  sitepack watch --delay 500ms        # Wait longer for editors to settle`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

var (
	watchMode        modeValue
	watchVariant     string
	watchDelay       time.Duration
	watchMetricsFile string
)

func init() {
	rootCmd.AddCommand(watchCmd)

	addTargetFlags(watchCmd.Flags(), &watchMode, &watchVariant)
	watchCmd.Flags().DurationVar(&watchDelay, "delay", 300*time.Millisecond, "quiet period before a burst of changes triggers a rebuild")
	watchCmd.Flags().StringVar(&watchMetricsFile, "metrics-file", "", "rewrite build metrics in the Prometheus text format after every build")
}

// rebuilder runs builds for a watch session and keeps its metrics.
type rebuilder struct {
	project     *project
	variant     string
	mode        assembler.Mode
	history     *build.BuildMetrics
	metricsFile string
}

// run reloads the configuration and builds once.
func (r *rebuilder) run(ctx context.Context, reload bool) error {
	if reload {
		if err := r.project.reload(); err != nil {
			r.history.RecordBuild(nil, 0, err)
			return err
		}
	}

	bc, err := r.project.assemble(r.variant, r.mode)
	if err != nil {
		r.history.RecordBuild(nil, 0, err)
		return err
	}

	start := time.Now()
	result, err := build.NewEngine(bc, r.project.logger).Build(ctx)
	r.history.RecordBuild(result, time.Since(start), err)

	if r.metricsFile != "" {
		if werr := build.WriteMetrics(r.metricsFile, r.history.GetSnapshot().LastResult, r.history); werr != nil {
			r.project.logger.Warn(ctx, werr, "Failed to write metrics", "path", r.metricsFile)
		}
	}

	return err
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	p, err := loadProject()
	if err != nil {
		return err
	}

	// The first assembly must succeed: it fixes the output directory.
	bc, err := p.assemble(watchVariant, watchMode.mode)
	if err != nil {
		return err
	}
	outDir := bc.Target.OutputDir

	r := &rebuilder{
		project:     p,
		variant:     watchVariant,
		mode:        watchMode.mode,
		history:     build.NewBuildMetrics(),
		metricsFile: watchMetricsFile,
	}

	fileWatcher, err := watcher.NewFileWatcher(watchDelay, p.logger)
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fileWatcher.Stop()

	fileWatcher.AddFilter(watcher.SourceFilter)
	fileWatcher.AddFilter(watcher.NoHiddenFilter)
	fileWatcher.AddFilter(watcher.NotUnder(outDir))
	fileWatcher.SkipDirs(watcher.SkipHidden)
	fileWatcher.SkipDirs(watcher.SkipNodeModules)
	fileWatcher.SkipDirs(watcher.SkipUnder(outDir))

	fileWatcher.AddHandler(func(events []watcher.ChangeEvent) error {
		for _, event := range events {
			p.logger.Debug(ctx, "Source changed", "path", event.Path, "type", event.Type.String())
		}
		p.logger.Info(ctx, "Rebuilding", "changes", len(events))

		return r.run(ctx, true)
	})

	if err := fileWatcher.AddRecursive(p.root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", p.root, err)
	}

	if err := r.run(ctx, false); err != nil {
		p.logger.Error(ctx, err, "Initial build failed")
	}

	if err := fileWatcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}

	p.logger.Info(ctx, "Watching for changes (press Ctrl+C to stop)", "root", p.root, "output", outDir)

	<-ctx.Done()

	snapshot := r.history.GetSnapshot()
	p.logger.Info(context.Background(), "Stopped watching",
		"builds", snapshot.TotalBuilds,
		"failed", snapshot.FailedBuilds,
		"average", snapshot.AverageDuration.String())

	return nil
}
