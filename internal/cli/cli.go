package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/asynkron/srcpatch/internal/manifest"
	"github.com/asynkron/srcpatch/internal/systemtools"
	"github.com/asynkron/srcpatch/pkg/patch"
)

// Run applies the patch batch described by the CLI arguments.
// It returns 0 on success, 1 when the batch fails and 2 for usage errors.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	if err := godotenv.Load(); err != nil {
		// A missing .env file is fine, but other errors should be surfaced.
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			fmt.Fprintf(stderr, "failed to load .env: %v\n", err)
			return 1
		}
	}

	var cfg config
	var logLevel, manifestPath string

	flagSet := flag.NewFlagSet("srcpatch", flag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.Usage = func() {
		fmt.Fprintln(flagSet.Output(), "usage: srcpatch [flags] [patch ...]")
		flagSet.PrintDefaults()
	}
	flagSet.StringVar(&cfg.WorkDir, "work-dir", envOr("SRCPATCH_WORK_DIR", ""), "directory the patches are applied in (default: current directory)")
	flagSet.StringVar(&cfg.BaseDir, "base-dir", envOr("SRCPATCH_BASE_DIR", ""), "directory relative patch paths are resolved against (default: current directory)")
	flagSet.StringVar(&manifestPath, "manifest", "", "JSON manifest listing the patches and directories")
	flagSet.StringVar(&cfg.Engine, "engine", envOr("SRCPATCH_ENGINE", engineExternal), "patch engine: external or native")
	flagSet.StringVar(&cfg.PatchBin, "patch-bin", envOr("SRCPATCH_PATCH_BIN", ""), "patch executable used by the external engine")
	flagSet.BoolVar(&cfg.DryRun, "dry-run", false, "apply to an in-memory copy of the working directory (native engine)")
	flagSet.BoolVar(&cfg.IgnoreWhitespace, "ignore-whitespace", false, "match hunk context ignoring whitespace (native engine)")
	flagSet.StringVar(&logLevel, "log-level", envOr("SRCPATCH_LOG_LEVEL", "info"), "log level: debug, info, warn or error")
	flagSet.BoolVar(&cfg.Stats, "stats", false, "print batch statistics")

	if err := flagSet.Parse(args); err != nil {
		return 2
	}
	cfg.Patches = flagSet.Args()

	level, err := patch.ParseLogLevel(logLevel)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	cfg.LogLevel = level
	cfg.Engine = strings.ToLower(strings.TrimSpace(cfg.Engine))

	if manifestPath != "" {
		m, err := manifest.Load(manifestPath)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 2
		}
		explicit := make(map[string]bool)
		flagSet.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
		cfg.mergeManifest(m, explicit)
	}

	if err := cfg.setDefaults(); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if err := cfg.validate(); err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	return runBatch(ctx, cfg, stdout, stderr)
}

func runBatch(ctx context.Context, cfg config, stdout, stderr io.Writer) int {
	var provider patch.ToolProvider
	switch cfg.Engine {
	case engineNative:
		provider = patch.NewNativeTool(patch.NativeOptions{
			Options: patch.Options{IgnoreWhitespace: cfg.IgnoreWhitespace},
			DryRun:  cfg.DryRun,
		})
	default:
		tools := systemtools.New()
		tools.Override(systemtools.Patch, cfg.PatchBin)
		provider = tools
	}

	logger := patch.NewStdLogger(cfg.LogLevel, stderr)
	metrics := patch.NewInMemoryMetrics()
	applier := patch.NewApplier(provider, patch.ApplierOptions{
		Logger:  logger,
		Metrics: metrics,
	})

	ctx = patch.WithTraceID(ctx, newTraceID())
	logger.Debug(ctx, "starting batch",
		patch.Field("patches", len(cfg.Patches)),
		patch.Field("work_dir", cfg.WorkDir),
		patch.Field("base_dir", cfg.BaseDir),
		patch.Field("engine", cfg.Engine),
	)

	report := newReporter(stderr)
	err := applier.ApplyPatches(ctx, cfg.Patches, cfg.WorkDir, cfg.BaseDir)
	if cfg.Stats {
		newReporter(stdout).renderStats(stdout, metrics.Snapshot())
	}
	if err != nil {
		report.renderFailure(stderr, err)
		return 1
	}

	verb := "applied"
	if cfg.DryRun {
		verb = "checked"
	}
	fmt.Fprintf(stdout, "%s %d patch(es) in %s\n", verb, len(cfg.Patches), cfg.WorkDir)
	return 0
}

// newTraceID returns an identifier shared by the log lines of one batch.
func newTraceID() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}
