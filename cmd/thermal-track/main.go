// Command thermal-track extracts and ranks thermal blob tracks from clips.
//
// Each positional argument is a directory of 16-bit TIFF frames. With
// -synthetic N the command instead processes N generated demo clips.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/thermal.tracker/internal/config"
	"github.com/banshee-data/thermal.tracker/internal/metrics"
	"github.com/banshee-data/thermal.tracker/internal/monitoring"
	"github.com/banshee-data/thermal.tracker/internal/security"
	"github.com/banshee-data/thermal.tracker/internal/thermal/l2frames"
	"github.com/banshee-data/thermal.tracker/internal/thermal/monitor"
	"github.com/banshee-data/thermal.tracker/internal/thermal/pipeline"
	"github.com/banshee-data/thermal.tracker/internal/thermal/storage/sqlite"
	"github.com/banshee-data/thermal.tracker/internal/version"
)

// errClipsFailed is returned when at least one clip could not be processed.
var errClipsFailed = errors.New("one or more clips failed")

type cliFlags struct {
	configPath      string
	workers         int
	dbPath          string
	previewDir      string
	debugDir        string
	metricsTextfile string
	metricsListen   string
	synthetic       int
	quiet           bool
	showVersion     bool
}

func parseFlags(args []string, stderr io.Writer) (*cliFlags, []string, error) {
	fs := flag.NewFlagSet("thermal-track", flag.ContinueOnError)
	fs.SetOutput(stderr)
	f := &cliFlags{}
	fs.StringVar(&f.configPath, "config", "", "tuning config JSON (built-in defaults when empty)")
	fs.IntVar(&f.workers, "workers", 2, "clips processed concurrently")
	fs.StringVar(&f.dbPath, "db", "", "sqlite database for clip runs and tracks (disabled when empty)")
	fs.StringVar(&f.previewDir, "preview", "", "directory for trajectory plots and score charts")
	fs.StringVar(&f.debugDir, "debug", "", "directory for per-frame association debug JSON")
	fs.StringVar(&f.metricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this file on exit")
	fs.StringVar(&f.metricsListen, "metrics-listen", "", "serve Prometheus metrics on this address while clips run")
	fs.IntVar(&f.synthetic, "synthetic", 0, "process N generated demo clips instead of directories")
	fs.BoolVar(&f.quiet, "quiet", false, "suppress per-clip log output")
	fs.BoolVar(&f.showVersion, "version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	if f.workers < 1 {
		return nil, nil, fmt.Errorf("-workers must be at least 1, got %d", f.workers)
	}
	return f, fs.Args(), nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatalf("thermal-track: %v", err)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	f, paths, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if f.showVersion {
		fmt.Fprintln(stdout, version.String())
		return nil
	}
	if f.quiet {
		monitoring.SetLogger(nil)
	}

	sources, err := clipSources(paths, f.synthetic)
	if err != nil {
		return err
	}

	tuning, err := loadTuning(f.configPath)
	if err != nil {
		return err
	}
	opts := pipeline.OptionsFromTuning(tuning)
	opts.Metrics = metrics.New()
	if f.metricsListen != "" {
		ms, err := serveMetrics(f.metricsListen, opts.Metrics)
		if err != nil {
			return err
		}
		defer ms.Close()
	}
	opts.Debug = f.debugDir != ""
	if f.previewDir != "" {
		opts.Preview = true
		opts.Renderer = monitor.NewPreviewRenderer(f.previewDir)
	}
	if f.dbPath != "" {
		db, err := sqlite.Open(f.dbPath)
		if err != nil {
			return err
		}
		defer db.Close()
		opts.Store = sqlite.NewStore(db)
	}
	if opts.Debug {
		if err := os.MkdirAll(f.debugDir, 0o755); err != nil {
			return fmt.Errorf("create debug dir: %w", err)
		}
	}

	outcomes := processAll(ctx, sources, opts, f)

	if f.metricsTextfile != "" {
		if err := opts.Metrics.WriteTextfile(f.metricsTextfile); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}

	fmt.Fprintln(stdout, renderSummary(outcomes, shouldStyle(stdout)))
	for _, o := range outcomes {
		if o.err != nil {
			return errClipsFailed
		}
	}
	return ctx.Err()
}

func loadTuning(path string) (*config.TuningConfig, error) {
	if path == "" {
		return config.DefaultTuningConfig(), nil
	}
	cfg, err := config.LoadTuningConfig(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func clipSources(paths []string, synthetic int) ([]l2frames.Source, error) {
	if synthetic > 0 {
		sources := make([]l2frames.Source, synthetic)
		for i := range sources {
			sources[i] = demoClip(i)
		}
		return sources, nil
	}
	if len(paths) == 0 {
		return nil, errors.New("no clip directories given (or use -synthetic N)")
	}
	sources := make([]l2frames.Source, len(paths))
	for i, p := range paths {
		sources[i] = &l2frames.TIFFSequence{Dir: p}
	}
	return sources, nil
}

// demoClip generates clip i of the -synthetic set: one blob crossing the
// frame on a per-clip heading, plus a short blip on odd clips.
func demoClip(i int) *l2frames.Synthetic {
	gen := l2frames.NewSynthetic(fmt.Sprintf("synthetic-%02d", i), 45)
	gen.Seed = int64(i + 1)
	gen.Noise = 2
	gen.WithBlob(l2frames.SyntheticBlob{
		X: 10, Y: 30 + float64(i%4)*15, VX: 2.5, VY: (float64(i%3) - 1) * 0.5,
		Size: 9, Heat: 180 + float64(i%5)*20,
	})
	if i%2 == 1 {
		gen.WithBlob(l2frames.SyntheticBlob{X: 130, Y: 95, Size: 5, Heat: 200, StartFrame: 20, EndFrame: 22})
	}
	return gen
}

// outcome is the result of one clip, kept in input order.
type outcome struct {
	res *pipeline.Result
	err error
}

func processAll(ctx context.Context, sources []l2frames.Source, opts *pipeline.Options, f *cliFlags) []outcome {
	outcomes := make([]outcome, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.workers)

	for i, src := range sources {
		g.Go(func() error {
			res, err := pipeline.ProcessClip(gctx, src, opts)
			if err == nil && res.Debug != nil {
				err = writeDebug(f.debugDir, res)
			}
			if err != nil {
				monitoring.Logf("clip %d failed: %v", i, err)
			}
			outcomes[i] = outcome{res: res, err: err}
			// A bad clip does not stop the batch.
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func writeDebug(dir string, res *pipeline.Result) error {
	path, err := security.ArtifactPath(dir, res.Source, "_debug.json")
	if err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create debug file: %w", err)
	}
	defer file.Close()
	return res.Debug.WriteJSON(file)
}
