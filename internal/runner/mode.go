package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"go-refine-pipeline/internal/metrics"
	"go-refine-pipeline/internal/render"
	"go-refine-pipeline/internal/store"
)

// Controller runs the cycle runner either once (batch) or repeatedly
// under the three-loop streaming model: a fit loop, an operator command
// loop, and a render loop on the calling goroutine, all sharing one
// cancellation signal.
type Controller struct {
	Runner *CycleRunner
	Bus    *metrics.Bus
	Sinks  []render.Sink

	PollInterval   time.Duration
	RenderInterval time.Duration

	// Console is the operator's line-oriented command input.
	Console io.Reader
	Out     io.Writer

	// MetricsDumpPath receives the serialized non-empty metric buffers
	// when the command loop exits.
	MetricsDumpPath string
}

// RunBatch processes all currently pending files once and flushes the
// sinks a single time. Terminal on return.
func (c *Controller) RunBatch(ctx context.Context) error {
	store.UpdateRunStatus(c.Runner.RunID, "running")
	if err := c.Runner.RunOnce(ctx); err != nil {
		store.UpdateRunStatus(c.Runner.RunID, "failed")
		return err
	}
	c.renderOnce()
	store.UpdateRunStatus(c.Runner.RunID, "completed")
	return nil
}

// RunStream polls the input directory indefinitely until the operator
// sends STOP. Cancellation is cooperative: a file mid-fit finishes, and
// only the next file boundary observes the signal.
func (c *Controller) RunStream(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	store.UpdateRunStatus(c.Runner.RunID, "streaming")

	var wg sync.WaitGroup
	var once sync.Once
	var fitErr error
	fail := func(err error) {
		once.Do(func() {
			fitErr = err
			cancel()
		})
	}

	// Fit loop: one cycle per poll interval.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			if ctx.Err() != nil {
				return
			}
			if err := c.Runner.RunOnce(ctx); err != nil {
				fmt.Fprintf(c.Out, "❌ Fit loop stopped: %v\n", err)
				fail(err)
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.PollInterval):
			}
		}
	}()

	// Command loop: sole writer of the stop signal during normal
	// operation.
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.commandLoop(ctx, cancel)
	}()

	// Render loop on the calling goroutine.
	for {
		select {
		case <-ctx.Done():
			c.renderOnce()
			wg.Wait()
			if fitErr != nil {
				store.UpdateRunStatus(c.Runner.RunID, "failed")
			} else {
				store.UpdateRunStatus(c.Runner.RunID, "stopped")
			}
			return fitErr
		case <-time.After(c.RenderInterval):
			c.renderOnce()
		}
	}
}

// commandLoop reads operator commands until STOP, end of input, or
// cancellation from the fit loop. On exit it serializes all non-empty
// metric buffers for offline inspection. The inner reader goroutine may
// stay blocked on the console read after cancellation; that is the
// usual cost of an uninterruptible stdin read.
func (c *Controller) commandLoop(ctx context.Context, cancel context.CancelFunc) {
	fmt.Fprintln(c.Out, "=== COMMANDS ===")
	fmt.Fprintln(c.Out, "Type STOP to exit")
	fmt.Fprintln(c.Out, "================")

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(c.Console)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		close(lines)
	}()

	defer func() {
		if err := c.dumpMetrics(); err != nil {
			fmt.Fprintf(c.Out, "⚠️ Failed to dump metric buffers: %v\n", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if strings.TrimSpace(line) == "STOP" {
				fmt.Fprintln(c.Out, "🛑 Stopping the streaming sequential pipeline...")
				cancel()
				return
			}
			fmt.Fprintln(c.Out, "Unrecognized input. Please type 'STOP' to end.")
		}
	}
}

// renderOnce drains every bus handle and forwards the values to the
// sinks, then lets the sinks flush.
func (c *Controller) renderOnce() {
	for _, handle := range c.Bus.Handles() {
		for {
			value, ok := handle.Drain()
			if !ok {
				break
			}
			for _, sink := range c.Sinks {
				sink.Observe(handle.Channel, handle.Key, value)
			}
		}
	}
	for _, sink := range c.Sinks {
		if err := sink.Flush(); err != nil {
			fmt.Fprintf(c.Out, "⚠️ Sink flush failed: %v\n", err)
		}
	}
}

// dumpMetrics writes the still-buffered samples to the side file. No
// file is written when every buffer is empty.
func (c *Controller) dumpMetrics() error {
	if c.MetricsDumpPath == "" {
		return nil
	}
	samples := c.Bus.Snapshot()
	if len(samples) == 0 {
		return nil
	}
	out, err := os.Create(c.MetricsDumpPath)
	if err != nil {
		return err
	}
	defer out.Close()
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(samples)
}
