package runner

import (
	"context"
	"fmt"

	"go-refine-pipeline/internal/checkpoint"
	"go-refine-pipeline/internal/metrics"
	"go-refine-pipeline/internal/model"
	"go-refine-pipeline/internal/refine"
	"go-refine-pipeline/internal/sequencer"
	"go-refine-pipeline/internal/store"
)

// CycleRunner owns the run state and processes all currently pending
// input files once per call, in ascending OrderKey order. A single fit
// is in flight at any time: each stage run seeds from the previous
// file's converged values.
type CycleRunner struct {
	RunID       string
	Sequencer   *sequencer.Sequencer
	Scheduler   *refine.Scheduler
	Checkpoints *checkpoint.Store
	Bus         *metrics.Bus

	// RefinableNames is the caller-controlled unfreezing order.
	RefinableNames []string

	// Plot channels populated once per completed file.
	PlotVariableNames    []string
	PlotResultEntryNames []string
	PlotY                bool
	PlotYCalc            bool

	State model.RunState
	Seed  model.VariableValueMap
}

// CheckForNewData reconciles the directory listing with the committed
// order and updates the run state. A listing that contradicts the
// committed order fails with ErrOrderingViolation and requires an
// operator restart.
func (r *CycleRunner) CheckForNewData() error {
	discovered, err := r.Sequencer.Discover()
	if err != nil {
		return err
	}
	state, err := sequencer.Reconcile(r.State.Known, discovered, r.State.Completed)
	if err != nil {
		return err
	}
	if len(state.Known) > len(r.State.Known) && len(state.Running) > 0 {
		names := make([]string, len(state.Running))
		for i, f := range state.Running {
			names[i] = f.Name()
		}
		fmt.Printf("📂 Pending input files detected: %v\n", names)
	}
	r.State = *state
	return nil
}

// ResumeFrom repositions the run state at the named input file and loads
// the seed from the preceding file's checkpoint. Invoked only on
// explicit operator request, never implicitly.
func (r *CycleRunner) ResumeFrom(inputFilename string, mapFn checkpoint.MapFunc) error {
	if err := r.CheckForNewData(); err != nil {
		return err
	}
	seed, err := r.Checkpoints.ResumeFrom(&r.State, inputFilename, mapFn)
	if err != nil {
		return err
	}
	r.Seed = seed
	return nil
}

// RunOnce processes all currently pending files in order. An empty
// pending set is a no-op, not an error. Cancellation is observed only at
// file boundaries: a file already mid-fit completes before the loop
// exits, and the remaining files stay pending for the next invocation.
func (r *CycleRunner) RunOnce(ctx context.Context) error {
	if err := r.CheckForNewData(); err != nil {
		store.SaveRunError(r.RunID, err)
		return err
	}
	if len(r.State.Running) == 0 {
		return nil
	}

	pending := append([]model.InputFile(nil), r.State.Running...)
	for _, file := range pending {
		if ctx.Err() != nil {
			break
		}
		fmt.Printf("🔬 Processing %s...\n", file.Name())
		store.SaveRunLog(r.RunID, "fit", "info", "processing input file", map[string]interface{}{
			"file":      file.Name(),
			"order_key": file.OrderKey,
		})

		record, err := r.Scheduler.Run(ctx, file, r.RefinableNames, r.Seed)
		if err != nil {
			store.SaveRunError(r.RunID, err)
			return err
		}

		r.Seed = record.VariableValues()
		r.State.MarkCompleted(file)
		if err := store.SaveProcessedFile(r.RunID, file.Path, file.OrderKey,
			r.Checkpoints.ResultPath(file), record.Rw, record.ReducedChi2); err != nil {
			return fmt.Errorf("failed to journal processed file %s: %w", file.Name(), err)
		}
		r.offerPlotValues(record)
		fmt.Printf("✅ Completed %s (Rw=%.4f)\n", file.Name(), record.Rw)
	}
	return nil
}

// offerPlotValues pushes the per-file plot series: converged variable
// values, scalar result entries, and the observed/calculated curves.
func (r *CycleRunner) offerPlotValues(record *model.ResultRecord) {
	for _, name := range r.PlotVariableNames {
		handle := r.Bus.Lookup(metrics.ChannelVariables, name)
		if handle == nil {
			continue
		}
		if pack, ok := record.Variables[name]; ok {
			handle.Offer(pack.Value)
		} else if pack, ok := record.FixedVariables[name]; ok {
			handle.Offer(pack.Value)
		}
	}
	for _, name := range r.PlotResultEntryNames {
		handle := r.Bus.Lookup(metrics.ChannelResultEntries, name)
		if handle == nil {
			continue
		}
		if value, ok := record.Entry(name); ok {
			handle.Offer(value)
		}
	}
	if r.PlotY || r.PlotYCalc {
		x, y, ycalc := r.Scheduler.Engine.Profile()
		if r.PlotY {
			if handle := r.Bus.Lookup(metrics.ChannelProfiles, "y"); handle != nil {
				handle.Offer(metrics.Curve{X: x, Y: y})
			}
		}
		if r.PlotYCalc {
			if handle := r.Bus.Lookup(metrics.ChannelProfiles, "ycalc"); handle != nil {
				handle.Offer(metrics.Curve{X: x, Y: ycalc})
			}
		}
	}
}
