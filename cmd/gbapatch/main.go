// Command gbapatch applies the batteryless-save transformation to one
// or more GBA ROM files.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"syscall"

	"github.com/xyproto/env/v2"
	"golang.org/x/sync/errgroup"

	"github.com/brinkforge/gba-batteryless/internal/patcher"
	"github.com/brinkforge/gba-batteryless/pkg/log"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "gbapatch:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("gbapatch", flag.ContinueOnError)

	out := fs.String("out", "", "output path (single-file mode only; defaults to <rom>.patched.gba)")
	outDir := fs.String("out-dir", "", "output directory (batch mode: one or more rom paths given)")
	auto := fs.Bool("auto", env.Bool("GBAPATCH_AUTO_MODE"), "default to a 128KB save instead of failing when no save routine is recognized")
	force := fs.Bool("force", false, "overwrite the output file if it already exists")
	fingerprintFlag := fs.Bool("fingerprint", false, "log an xxhash fingerprint of the input and output ROM buffers")
	workers := fs.Int("workers", env.Int("GBAPATCH_WORKERS", runtime.GOMAXPROCS(0)), "maximum number of ROMs to patch concurrently")
	failFast := fs.Bool("fail-fast", false, "cancel remaining batch jobs as soon as one fails")
	logLevel := fs.String("log-level", env.Str("GBAPATCH_LOG_LEVEL", "info"), "log level: debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		return err
	}

	roms := fs.Args()
	if len(roms) == 0 {
		return errors.New("usage: gbapatch [flags] rom [rom...]")
	}
	if len(roms) > 1 && *out != "" {
		return errors.New("-out cannot be used with more than one rom; use -out-dir")
	}

	logger := log.New(*logLevel)

	jobs := make([]job, len(roms))
	for i, romPath := range roms {
		outPath := *out
		if outPath == "" {
			outPath = defaultOutPath(romPath, *outDir)
		}
		jobs[i] = job{romPath: romPath, outPath: outPath}
	}

	if err := prepareOutputs(jobs, *force); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return runBatch(ctx, jobs, *workers, *failFast, logger, *auto, *fingerprintFlag)
}

type job struct {
	romPath, outPath string
}

func defaultOutPath(romPath, outDir string) string {
	base := filepath.Base(romPath)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext) + ".patched.gba"
	if outDir != "" {
		return filepath.Join(outDir, name)
	}
	return filepath.Join(filepath.Dir(romPath), name)
}

// prepareOutputs removes any pre-existing output path when -force was
// given, and fails fast (before any work starts) when it wasn't, rather
// than letting a worker silently overwrite a stale file partway through
// a batch.
func prepareOutputs(jobs []job, force bool) error {
	for _, j := range jobs {
		_, err := os.Stat(j.outPath)
		if err == nil {
			if !force {
				return fmt.Errorf("%s already exists (pass -force to overwrite)", j.outPath)
			}
			if err := os.Remove(j.outPath); err != nil {
				return fmt.Errorf("removing stale output %s: %w", j.outPath, err)
			}
			continue
		}
		if !os.IsNotExist(err) {
			return fmt.Errorf("stat %s: %w", j.outPath, err)
		}
	}
	return nil
}

// runBatch patches every job, bounded to workers concurrent patches. Each
// worker gets its own Patcher and ROM buffer; nothing is shared across
// goroutines.
func runBatch(ctx context.Context, jobs []job, workers int, failFast bool, logger log.Logger, auto, fingerprint bool) error {
	if workers < 1 {
		workers = 1
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var opts []patcher.Option
	opts = append(opts, patcher.WithLogger(logger))
	if auto {
		opts = append(opts, patcher.WithAutoMode())
	}
	if fingerprint {
		opts = append(opts, patcher.WithFingerprint())
	}

	var mu sync.Mutex
	var firstErr error
	recordFailure := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	for _, j := range jobs {
		j := j
		g.Go(func() error {
			// A cancelled context (e.g. SIGINT, or a failed sibling in
			// fail-fast mode) stops jobs that have not started yet.
			select {
			case <-gCtx.Done():
				return nil
			default:
			}
			if !failFast {
				// Tolerant mode: every already-scheduled job still
				// runs to completion regardless of sibling failures;
				// returning nil here keeps a sibling's failure from
				// cancelling gCtx itself.
				if err := patcher.New(opts...).Patch(j.romPath, j.outPath); err != nil {
					logger.Errorf("%s: %v", j.romPath, err)
					recordFailure(err)
				}
				return nil
			}
			return patcher.New(opts...).Patch(j.romPath, j.outPath)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return firstErr
}
