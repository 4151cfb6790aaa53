package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/utkarsh5026/threadpool/pool"
)

const handlerName = "sizeprobe"

var errNoLength = errors.New("failed to get size")

type probeRequest struct {
	URL   string `json:"url"`
	Index int    `json:"index"`
}

type probeResult struct {
	Index   int
	URL     string
	Size    int64
	Elapsed time.Duration
	Worker  int
}

var httpClient = &http.Client{}

func init() {
	pool.Register[probeRequest, probeResult](handlerName, probe)
}

// probe reads the download size of one URL with a HEAD request.
func probe(ctx context.Context, req probeRequest, n pool.Notifier) (probeResult, error) {
	start := time.Now()
	_ = n.Emit("start", req)
	defer func() {
		_ = n.Emit("end", req)
	}()

	size, err := contentLength(ctx, req.URL)
	if err != nil {
		return probeResult{}, err
	}
	return probeResult{
		Index:   req.Index,
		URL:     req.URL,
		Size:    size,
		Elapsed: time.Since(start),
		Worker:  n.Worker(),
	}, nil
}

func contentLength(ctx context.Context, url string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("HEAD %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return 0, fmt.Errorf("HEAD %s: %s", url, resp.Status)
	}
	if resp.ContentLength < 0 {
		return 0, fmt.Errorf("HEAD %s: %w", url, errNoLength)
	}
	return resp.ContentLength, nil
}
