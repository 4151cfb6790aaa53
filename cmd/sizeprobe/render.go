package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/utkarsh5026/threadpool/pool"
)

var (
	bold  = color.New(color.Bold)
	green = color.New(color.FgGreen)
	red   = color.New(color.FgRed)
)

// row is one line of the report, successful or not.
type row struct {
	index   int
	url     string
	size    string
	elapsed string
	worker  string
	err     string
}

func rows(urls []string, res *pool.Results[probeResult]) []row {
	out := make([]row, len(res.Outcomes))
	for i, o := range res.Outcomes {
		r := row{index: i + 1, url: urls[i], size: "-", elapsed: "-", worker: "-"}
		if o.Err != nil {
			r.err = causeOf(o.Err).Error()
		} else {
			r.size = formatBytes(o.Value.Size)
			r.elapsed = o.Value.Elapsed.Round(time.Millisecond).String()
			r.worker = fmt.Sprintf("%d", o.Value.Worker)
		}
		out[i] = r
	}
	return out
}

func causeOf(err error) error {
	var we *pool.WorkerError
	if errors.As(err, &we) && we.Cause != nil {
		return we.Cause
	}
	return err
}

func printReport(w io.Writer, urls []string, res *pool.Results[probeResult], wall time.Duration) {
	fmt.Fprintln(w)
	bold.Fprintln(w, "Download sizes")

	table := tablewriter.NewWriter(w)
	table.Header("#", "URL", "Size", "Time", "Worker", "Error")
	for _, r := range rows(urls, res) {
		_ = table.Append(fmt.Sprintf("%d", r.index), r.url, r.size, r.elapsed, r.worker, r.err)
	}
	_ = table.Render()

	var total int64
	var busy time.Duration
	for _, v := range res.Results {
		total += v.Size
		busy += v.Elapsed
	}

	fmt.Fprintln(w)
	green.Fprintf(w, "✓ %d probed, %s in total\n", len(res.Results), formatBytes(total))
	if len(res.Errors) > 0 {
		red.Fprintf(w, "✗ %d failed\n", len(res.Errors))
	}
	fmt.Fprintf(w, "  request time: %s, wall time: %s\n",
		busy.Round(time.Millisecond), wall.Round(time.Millisecond))
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
