package refine

import (
	"context"
	"fmt"

	"go-refine-pipeline/internal/checkpoint"
	"go-refine-pipeline/internal/metrics"
	"go-refine-pipeline/internal/model"
)

// Scheduler drives the progressive unfreezing protocol for a single
// input file: variables are added to the free set one at a time in the
// caller's order, with a joint re-optimization over the cumulative free
// set after each addition. Refining scale before lattice before thermal
// parameters is the natural use; the scheduler never reorders.
type Scheduler struct {
	Engine      Engine
	Checkpoints *checkpoint.Store
	Bus         *metrics.Bus

	// IntermediateNames are the metric names streamed on the
	// intermediate_results channel during each stage's evaluations.
	IntermediateNames []string
}

// Run refines one input file through the full stage sequence and
// persists the result record via the checkpoint store. The seed is the
// previous file's converged values (or the caller's initial map for the
// first file).
func (s *Scheduler) Run(ctx context.Context, file model.InputFile, orderedNames []string, seed model.VariableValueMap) (*model.ResultRecord, error) {
	if err := s.Engine.Prepare(ctx, file.Path, seed); err != nil {
		return nil, fmt.Errorf("failed to prepare engine for %s: %w", file.Name(), err)
	}

	for i := range orderedNames {
		free := orderedNames[:i+1]
		if err := s.Engine.Optimize(ctx, free, s.offerIntermediates); err != nil {
			return nil, fmt.Errorf("stage %d/%d (freeing %s) failed for %s: %w",
				i+1, len(orderedNames), orderedNames[i], file.Name(), err)
		}
	}

	record, err := s.Engine.Results()
	if err != nil {
		return nil, fmt.Errorf("failed to collect results for %s: %w", file.Name(), err)
	}
	if err := s.Checkpoints.Save(file, record); err != nil {
		return nil, err
	}
	return record, nil
}

// offerIntermediates fires once per objective evaluation; the bus
// handles decide which evaluations actually reach a consumer.
func (s *Scheduler) offerIntermediates() {
	if s.Bus == nil {
		return
	}
	for _, name := range s.IntermediateNames {
		handle := s.Bus.Lookup(metrics.ChannelIntermediate, name)
		if handle == nil {
			continue
		}
		if value, err := s.Engine.Metric(name); err == nil {
			handle.Offer(value)
		}
	}
}
