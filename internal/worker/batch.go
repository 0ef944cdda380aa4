package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/blinkenlights/convertster/internal/config"
	"github.com/blinkenlights/convertster/internal/converter"
	"golang.org/x/sync/semaphore"
)

// Options configures a BatchConverter.
type Options struct {
	Workers          int // concurrent conversions; <= 0 means config.DefaultWorkers()
	JPEGQuality      int // clamped to 5-100
	PNGCompression   int // clamped to 0-9
	PreserveMetadata bool
}

func DefaultOptions() Options {
	return Options{
		Workers:        config.DefaultWorkers(),
		JPEGQuality:    config.DefaultJPEGQuality,
		PNGCompression: config.DefaultPNGCompression,
	}
}

// OptionsFromConfig builds Options from the loaded environment configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Workers:          cfg.Workers,
		JPEGQuality:      cfg.JPEGQuality,
		PNGCompression:   cfg.PNGCompression,
		PreserveMetadata: cfg.PreserveMetadata,
	}
}

// BatchConverter converts batches of files to a single target format with a bounded
// number of conversions in flight.
type BatchConverter struct {
	codec            converter.ImageCodec
	workers          int
	jpegQuality      int
	pngCompression   int
	preserveMetadata bool
}

func NewBatchConverter(codec converter.ImageCodec, opts Options) *BatchConverter {
	workers := opts.Workers
	if workers <= 0 {
		workers = config.DefaultWorkers()
	}
	return &BatchConverter{
		codec:            codec,
		workers:          workers,
		jpegQuality:      config.ClampJPEGQuality(opts.JPEGQuality),
		pngCompression:   config.ClampPNGCompression(opts.PNGCompression),
		preserveMetadata: opts.PreserveMetadata,
	}
}

func (b *BatchConverter) Workers() int { return b.workers }

// batchState is shared by the tasks of one Convert call.
type batchState struct {
	sem       *semaphore.Weighted
	successes atomic.Int64
	failures  atomic.Int64
	skips     atomic.Int64
}

// Convert converts every path to target and calls onDone exactly once per path as soon as
// that path's outcome is known. Outcomes arrive in completion order, not input order, and
// onDone runs on the caller's goroutine. Convert returns after all outcomes were delivered.
//
// Per-file errors never abort the batch. Cancelling ctx marks files that have not finished
// yet as skipped; files already converted keep their outcome.
func (b *BatchConverter) Convert(ctx context.Context, target string, paths []string, onDone converter.Handler) converter.Summary {
	format, fmtErr := converter.ParseFormat(target)
	if fmtErr != nil {
		log.Printf("[batch] Request to convert to unsupported target format %s", target)
	}

	state := &batchState{sem: semaphore.NewWeighted(int64(b.workers))}
	results := make(chan converter.Outcome, len(paths))

	for _, path := range paths {
		go func(path string) {
			results <- b.process(ctx, state, format, fmtErr, path)
		}(path)
	}

	for range paths {
		outcome := <-results
		if onDone != nil {
			onDone(outcome)
		}
	}

	summary := converter.Summary{
		Total:     len(paths),
		Succeeded: int(state.successes.Load()),
		Failed:    int(state.failures.Load()),
		Skipped:   int(state.skips.Load()),
		Cancelled: ctx.Err() != nil,
	}
	log.Printf("[batch] Finished %d file(s): %d succeeded, %d failed, %d skipped",
		summary.Total, summary.Succeeded, summary.Failed, summary.Skipped)
	return summary
}

// process runs one task: acquire a slot, convert, classify, release.
func (b *BatchConverter) process(ctx context.Context, state *batchState, format converter.Format, fmtErr error, path string) converter.Outcome {
	log.Printf("[batch] Processing %s...", path)
	outcome := converter.Outcome{Path: path}
	if fmtErr == nil {
		outcome.Output = converter.OutputPath(path, format)
	}

	if err := state.sem.Acquire(ctx, 1); err != nil {
		state.skips.Add(1)
		log.Printf("[batch] Cancelled while awaiting slot for %s.", path)
		outcome.Status = converter.StatusSkipped
		outcome.Err = err
		return outcome
	}
	log.Printf("[batch] Acquired slot for %s.", path)
	defer func() {
		state.sem.Release(1)
		log.Printf("[batch] Released slot for %s.", path)
	}()

	err := fmtErr
	if err == nil {
		log.Printf("[batch] Converting %s to %s...", path, format.Name)
		err = b.convertOne(ctx, format, path, outcome.Output)
	}

	switch {
	case err == nil:
		state.successes.Add(1)
		outcome.Status = converter.StatusSucceeded
		log.Printf("[batch] Successfully converted %s.", path)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		state.skips.Add(1)
		outcome.Status = converter.StatusSkipped
		outcome.Err = err
		log.Printf("[batch] Conversion cancelled for %s", path)
	default:
		state.failures.Add(1)
		outcome.Status = converter.StatusFailed
		outcome.Err = err
		log.Printf("[batch] Error converting %s: %v", path, err)
	}
	return outcome
}

// convertOne decodes path and writes out. A panicking codec is reported as an error.
func (b *BatchConverter) convertOne(ctx context.Context, format converter.Format, path, out string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("codec panic: %v", r)
		}
	}()

	img, err := b.codec.Load(ctx, path)
	if err != nil {
		return err
	}

	switch format {
	case converter.JPEG:
		log.Printf("[batch] Saving %s", out)
		err = b.codec.SaveJPEG(ctx, img, out, b.jpegQuality)
	case converter.PNG:
		log.Printf("[batch] Saving %s", out)
		err = b.codec.SavePNG(ctx, img, out, b.pngCompression)
	default:
		err = fmt.Errorf("target file type %s: %w", format.Name, converter.ErrUnsupportedFormat)
	}
	if err != nil {
		return err
	}

	if b.preserveMetadata {
		if perr := converter.PreserveCaptureTime(path, out); perr != nil {
			log.Printf("[batch] Could not preserve capture time for %s: %v", out, perr)
		}
	}
	return nil
}
