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

	"github.com/blinkenlights/convertster/internal/config"
	"github.com/blinkenlights/convertster/internal/converter"
	"github.com/blinkenlights/convertster/internal/progress"
	"github.com/blinkenlights/convertster/internal/worker"
)

const (
	exitOK        = 0
	exitFailed    = 1
	exitUsage     = 2
	exitCancelled = 130
)

type cliOptions struct {
	target       string
	paths        []string
	skipExisting bool
	verbose      bool
	opts         worker.Options
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg := config.Load()
	cli, err := parseArgs(args, cfg, stderr)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(stderr, err)
		}
		return exitUsage
	}

	// Logs go to the debug output file, to stderr with -v, and nowhere otherwise.
	closeLog, err := cfg.SetupLogging()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	defer closeLog()
	if cfg.DebugOutput == "" {
		if cli.verbose {
			log.SetOutput(stderr)
		} else {
			log.SetOutput(io.Discard)
		}
	}

	paths := cli.paths
	if cli.skipExisting {
		var existing []string
		paths, existing = filterExisting(cli.target, paths)
		for _, p := range existing {
			fmt.Fprintf(stdout, "Skipping %s: target already exists\n", p)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conv := worker.NewBatchConverter(converter.NewStdCodec(), cli.opts)
	r := progress.NewRenderer(stdout, len(paths))
	summary := conv.Convert(ctx, cli.target, paths, r.Outcome)
	r.Finish(summary)
	return exitCode(summary)
}

func parseArgs(args []string, cfg *config.Config, stderr io.Writer) (*cliOptions, error) {
	fs := flag.NewFlagSet("convertster", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: convertster [flags] <TARGET> <file>...\n\nTARGET is one of: %v\n\n", converter.SupportedFormats())
		fs.PrintDefaults()
	}

	cli := &cliOptions{opts: worker.OptionsFromConfig(cfg)}
	fs.BoolVar(&cli.skipExisting, "skip-existing", false, "leave files whose target already exists untouched")
	fs.BoolVar(&cli.verbose, "v", false, "log every conversion step to stderr")
	fs.IntVar(&cli.opts.Workers, "workers", cli.opts.Workers, "number of concurrent conversions")
	fs.IntVar(&cli.opts.JPEGQuality, "quality", cli.opts.JPEGQuality, "JPEG quality (5-100)")
	fs.IntVar(&cli.opts.PNGCompression, "compression", cli.opts.PNGCompression, "PNG compression level (0-9)")
	fs.BoolVar(&cli.opts.PreserveMetadata, "preserve-time", cli.opts.PreserveMetadata, "stamp the capture time onto converted files")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() < 2 {
		fs.Usage()
		return nil, errors.New("a target format and at least one file are required")
	}
	cli.target = fs.Arg(0)
	cli.paths = fs.Args()[1:]
	return cli, nil
}

// filterExisting splits paths into those to convert and those whose target exists.
func filterExisting(target string, paths []string) (keep, existing []string) {
	format, err := converter.ParseFormat(target)
	if err != nil {
		return paths, nil
	}
	for _, p := range paths {
		if _, err := os.Stat(converter.OutputPath(p, format)); err == nil {
			existing = append(existing, p)
			continue
		}
		keep = append(keep, p)
	}
	return keep, existing
}

func exitCode(s converter.Summary) int {
	switch {
	case s.Cancelled:
		return exitCancelled
	case s.Failed > 0:
		return exitFailed
	default:
		return exitOK
	}
}
