// Command sizeprobe reports the download size of a list of URLs, probing
// them in parallel on a thread pool with HTTP HEAD requests.
//
// Usage:
//
//	sizeprobe [--config file.yaml] [--workers n] [--timeout 5s] [url ...]
//
// Every setting can also come from the YAML file or from SIZEPROBE_*
// environment variables (SIZEPROBE_URLS is comma separated).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"github.com/utkarsh5026/threadpool/pool"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("sizeprobe", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "YAML config file")
	fs.Int("workers", 0, "Number of worker threads (0 = one per URL, capped at CPU count)")
	fs.Duration("timeout", 10*time.Second, "Per-URL timeout")
	fs.Int("retries", 0, "Attempts per URL (0 or 1 = no retry)")
	fs.Float64("rate", 0, "Maximum requests per second (0 = unlimited)")
	fs.String("log-level", "info", "Log level: debug, info, warn, error")
	fs.String("log-format", "text", "Log format: text or json")
	fs.Bool("progress", true, "Show a progress bar")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := loadConfig(*configPath, fs)
	if err != nil {
		red.Fprintf(stderr, "sizeprobe: %v\n", err)
		return 2
	}

	logger, err := setupLogger(cfg.LogLevel, cfg.LogFormat, stderr)
	if err != nil {
		red.Fprintf(stderr, "sizeprobe: %v\n", err)
		return 2
	}

	start := time.Now()
	res, err := probeAll(ctx, cfg, logger, stdout)
	if err != nil {
		red.Fprintf(stderr, "sizeprobe: %v\n", err)
		return 1
	}

	printReport(stdout, cfg.URLs, res, time.Since(start))
	if len(res.Errors) > 0 {
		return 1
	}
	return 0
}

// probeAll runs the batch while a second goroutine turns worker
// notifications into progress.
func probeAll(ctx context.Context, cfg *Config, logger *slog.Logger, out io.Writer) (*pool.Results[probeResult], error) {
	requests := make([]probeRequest, len(cfg.URLs))
	for i, u := range cfg.URLs {
		requests[i] = probeRequest{URL: u, Index: i}
	}

	var bar *progressbar.ProgressBar
	if cfg.Progress {
		bar = progressbar.NewOptions(len(requests),
			progressbar.OptionSetWriter(out),
			progressbar.OptionSetDescription("Probing"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
		)
	}

	events := make(chan pool.Message, len(requests))
	batchDone := make(chan struct{})

	opts := []pool.Option{
		pool.WithWorkerFile(handlerName),
		pool.WithLogger(logger),
		pool.WithOnMessage(func(m pool.Message) {
			select {
			case events <- m:
			case <-batchDone:
			}
		}),
		pool.WithOnError(func(err error) {
			logger.Error("worker fault", "error", err)
		}),
	}
	if cfg.Workers > 0 {
		opts = append(opts, pool.WithMaxWorkers(cfg.Workers))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, pool.WithTimeout(cfg.Timeout))
	}
	if cfg.Retries > 1 {
		opts = append(opts, pool.WithRetryPolicy(cfg.Retries, 200*time.Millisecond))
	}
	if cfg.RateLimit > 0 {
		opts = append(opts, pool.WithRateLimit(cfg.RateLimit, 1))
	}

	var res *pool.Results[probeResult]
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(batchDone)
		var err error
		res, err = pool.RunBatch[probeRequest, probeResult](gctx, requests, opts...)
		if err != nil {
			return fmt.Errorf("probe batch: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		consume(events, batchDone, func(m pool.Message) { track(m, bar, logger) })
		return nil
	})

	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("interrupted: %w", err)
		}
		return nil, err
	}
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(out)
	}
	return res, nil
}

// consume handles events until batchDone is closed, then whatever is still
// buffered.
func consume(events <-chan pool.Message, batchDone <-chan struct{}, handle func(pool.Message)) {
	for {
		select {
		case m := <-events:
			handle(m)
		case <-batchDone:
			for {
				select {
				case m := <-events:
					handle(m)
				default:
					return
				}
			}
		}
	}
}

func track(m pool.Message, bar *progressbar.ProgressBar, logger *slog.Logger) {
	var req probeRequest
	if err := m.Decode(&req); err != nil {
		logger.Warn("undecodable notification", "event", m.Event, "error", err)
		return
	}
	logger.Debug("probe "+m.Event, "url", req.URL, "worker", m.Worker, "task", m.Task.ID)

	if bar == nil {
		return
	}
	switch m.Event {
	case "start":
		bar.Describe("Probing " + req.URL)
	case "end":
		_ = bar.Add(1)
	}
}
