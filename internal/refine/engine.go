package refine

import (
	"context"
	"fmt"
	"strings"

	"go-refine-pipeline/internal/model"
)

// EvalHook is invoked once per objective evaluation inside the solver,
// letting the stage scheduler stream intermediate metrics without the
// engine knowing about the metric bus.
type EvalHook func()

// Engine is the refinement engine contract. The pipeline core drives it
// through Optimize and Metric and never looks inside the physical model
// or the solver.
type Engine interface {
	// Prepare loads the profile data for one input file and seeds the
	// parameter state. All parameters start fixed.
	Prepare(ctx context.Context, inputPath string, seed model.VariableValueMap) error

	// VariableNames returns the engine's declared parameter names.
	VariableNames() []string

	// Optimize refines the given free parameter set jointly, holding all
	// other parameters fixed. The call is synchronous and not cancellable
	// mid-fit; onEval fires once per objective evaluation.
	Optimize(ctx context.Context, free []string, onEval EvalHook) error

	// Metric returns a named intermediate metric for the current
	// parameter state (residual, contributions, restraints, chi2,
	// reduced_chi2).
	Metric(name string) (float64, error)

	// Value returns the current value of a declared parameter.
	Value(name string) (float64, error)

	// Profile returns the observed and calculated curves for the current
	// parameter state.
	Profile() (x, y, ycalc []float64)

	// Results assembles the full result record for the last Optimize.
	Results() (*model.ResultRecord, error)
}

// ValidateVariableNames checks requested variable names against the
// engine's declared parameters once at load time, so a bad name fails
// before any file is touched. The error lists the allowed names.
func ValidateVariableNames(engine Engine, names []string) error {
	declared := engine.VariableNames()
	allowed := make(map[string]bool, len(declared))
	for _, name := range declared {
		allowed[name] = true
	}
	for _, name := range names {
		if !allowed[name] {
			return fmt.Errorf("%w: %q is not declared by the engine; choose from: %s",
				model.ErrUnknownVariable, name, strings.Join(declared, ", "))
		}
	}
	return nil
}

// ValidateResultEntryNames checks requested result entry names against
// the streamable result entries.
func ValidateResultEntryNames(names []string) error {
	allowed := make(map[string]bool, len(model.ResultEntryNames))
	for _, name := range model.ResultEntryNames {
		allowed[name] = true
	}
	for _, name := range names {
		if !allowed[name] {
			return fmt.Errorf("%w: %q is not a streamable result entry; choose from: %s",
				model.ErrUnknownVariable, name, strings.Join(model.ResultEntryNames, ", "))
		}
	}
	return nil
}
