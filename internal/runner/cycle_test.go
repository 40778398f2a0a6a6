package runner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"go-refine-pipeline/internal/checkpoint"
	"go-refine-pipeline/internal/metrics"
	"go-refine-pipeline/internal/model"
	"go-refine-pipeline/internal/refine"
	"go-refine-pipeline/internal/sequencer"
)

// fakeEngine converges every fit instantly and bumps scale by one, so
// seed chaining across files is observable.
type fakeEngine struct {
	preparedPaths []string
	seeds         []model.VariableValueMap
	current       model.VariableValueMap
}

func (f *fakeEngine) Prepare(ctx context.Context, inputPath string, seed model.VariableValueMap) error {
	f.preparedPaths = append(f.preparedPaths, inputPath)
	f.seeds = append(f.seeds, seed.Clone())
	f.current = seed.Clone()
	return nil
}

func (f *fakeEngine) VariableNames() []string { return []string{"scale"} }

func (f *fakeEngine) Optimize(ctx context.Context, free []string, onEval refine.EvalHook) error {
	f.current["scale"] = f.current["scale"] + 1
	if onEval != nil {
		onEval()
	}
	return nil
}

func (f *fakeEngine) Metric(name string) (float64, error) { return 0.5, nil }

func (f *fakeEngine) Value(name string) (float64, error) { return f.current[name], nil }

func (f *fakeEngine) Profile() (x, y, ycalc []float64) {
	return []float64{0, 1}, []float64{1, 2}, []float64{1, 2}
}

func (f *fakeEngine) Results() (*model.ResultRecord, error) {
	return &model.ResultRecord{
		Chi2:        0.25,
		ReducedChi2: 0.01,
		Rw:          0.1,
		Variables: map[string]model.UncertainValue{
			"scale": {Value: f.current["scale"], Uncertainty: 0.01},
		},
		FixedVariables: map[string]model.FixedValue{},
		Constraints:    map[string]model.UncertainValue{},
		Certain:        true,
	}, nil
}

func newTestRunner(t *testing.T, inputDir string) (*CycleRunner, *fakeEngine) {
	t.Helper()
	seq, err := sequencer.New(inputDir, `(\d+)K\.gr`)
	require.NoError(t, err)

	engine := &fakeEngine{}
	ckpt := checkpoint.New(filepath.Join(t.TempDir(), "results"))
	return &CycleRunner{
		RunID:       "test-run",
		Sequencer:   seq,
		Scheduler:   &refine.Scheduler{Engine: engine, Checkpoints: ckpt},
		Checkpoints: ckpt,
		Bus:         metrics.NewBus(),

		RefinableNames: []string{"scale"},
		Seed:           model.VariableValueMap{"scale": 1},
	}, engine
}

func addInput(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("0 0\n"), 0644))
}

func TestRunOnceProcessesPendingInOrder(t *testing.T) {
	dir := t.TempDir()
	addInput(t, dir, "sample_30K.gr")
	addInput(t, dir, "sample_10K.gr")
	addInput(t, dir, "sample_20K.gr")
	runner, engine := newTestRunner(t, dir)

	require.NoError(t, runner.RunOnce(context.Background()))

	require.Len(t, runner.State.Completed, 3)
	require.Empty(t, runner.State.Running)
	require.Equal(t, "sample_10K.gr", runner.State.Completed[0].Name())
	require.Equal(t, "sample_30K.gr", runner.State.Completed[2].Name())

	// Each fit seeds from the previous file's converged values.
	require.Equal(t, 1.0, engine.seeds[0]["scale"])
	require.Equal(t, 2.0, engine.seeds[1]["scale"])
	require.Equal(t, 3.0, engine.seeds[2]["scale"])

	for _, file := range runner.State.Completed {
		_, err := os.Stat(runner.Checkpoints.ResultPath(file))
		require.NoError(t, err)
	}
}

func TestRunOnceIsIdempotentWhenNothingPending(t *testing.T) {
	dir := t.TempDir()
	addInput(t, dir, "sample_10K.gr")
	runner, engine := newTestRunner(t, dir)

	require.NoError(t, runner.RunOnce(context.Background()))
	require.NoError(t, runner.RunOnce(context.Background()))

	require.Len(t, engine.preparedPaths, 1)
	require.Len(t, runner.State.Completed, 1)
}

func TestRunOncePicksUpAppendedFile(t *testing.T) {
	dir := t.TempDir()
	addInput(t, dir, "sample_10K.gr")
	runner, engine := newTestRunner(t, dir)

	require.NoError(t, runner.RunOnce(context.Background()))
	addInput(t, dir, "sample_20K.gr")
	require.NoError(t, runner.RunOnce(context.Background()))

	require.Len(t, engine.preparedPaths, 2)
	require.Equal(t, "sample_20K.gr", filepath.Base(engine.preparedPaths[1]))
	// The new file's fit seeds from 10K's converged values.
	require.Equal(t, 2.0, engine.seeds[1]["scale"])
}

func TestRunOnceFailsOnOutOfOrderArrival(t *testing.T) {
	dir := t.TempDir()
	addInput(t, dir, "sample_10K.gr")
	addInput(t, dir, "sample_20K.gr")
	runner, _ := newTestRunner(t, dir)

	require.NoError(t, runner.RunOnce(context.Background()))

	// A colder measurement lands after warmer ones were committed.
	addInput(t, dir, "sample_5K.gr")
	err := runner.RunOnce(context.Background())
	require.ErrorIs(t, err, model.ErrOrderingViolation)
}

func TestRunOnceObservesCancellationAtFileBoundary(t *testing.T) {
	dir := t.TempDir()
	addInput(t, dir, "sample_10K.gr")
	addInput(t, dir, "sample_20K.gr")
	runner, engine := newTestRunner(t, dir)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, runner.RunOnce(ctx))

	require.Empty(t, engine.preparedPaths)
	require.Len(t, runner.State.Running, 2)
}

func TestRunOnceOffersPlotValues(t *testing.T) {
	dir := t.TempDir()
	addInput(t, dir, "sample_10K.gr")
	runner, _ := newTestRunner(t, dir)
	runner.PlotVariableNames = []string{"scale"}
	runner.PlotResultEntryNames = []string{"chi2"}
	runner.PlotY = true
	runner.PlotYCalc = true

	scaleHandle := runner.Bus.Register(metrics.ChannelVariables, "scale", 1)
	chi2Handle := runner.Bus.Register(metrics.ChannelResultEntries, "chi2", 1)
	yHandle := runner.Bus.Register(metrics.ChannelProfiles, "y", 1)
	ycalcHandle := runner.Bus.Register(metrics.ChannelProfiles, "ycalc", 1)

	require.NoError(t, runner.RunOnce(context.Background()))

	value, ok := scaleHandle.Drain()
	require.True(t, ok)
	require.Equal(t, 2.0, value)
	value, ok = chi2Handle.Drain()
	require.True(t, ok)
	require.Equal(t, 0.25, value)

	curve, ok := yHandle.Drain()
	require.True(t, ok)
	require.Equal(t, metrics.Curve{X: []float64{0, 1}, Y: []float64{1, 2}}, curve)
	require.Equal(t, 1, ycalcHandle.Len())
}

func TestResumeFromSeedsFromPrecedingCheckpoint(t *testing.T) {
	dir := t.TempDir()
	addInput(t, dir, "sample_10K.gr")
	addInput(t, dir, "sample_20K.gr")
	addInput(t, dir, "sample_30K.gr")
	runner, _ := newTestRunner(t, dir)

	// First pass commits checkpoints for all three files.
	require.NoError(t, runner.RunOnce(context.Background()))

	// A fresh runner resumes at 30K, seeding from 20K's record.
	resumed, resumedEngine := newTestRunner(t, dir)
	resumed.Checkpoints = runner.Checkpoints
	resumed.Scheduler.Checkpoints = runner.Checkpoints

	mapFn := func(inputFilename string) string {
		stem := inputFilename[:len(inputFilename)-len(filepath.Ext(inputFilename))]
		return stem + "_result.json"
	}
	require.NoError(t, resumed.ResumeFrom("sample_30K.gr", mapFn))
	require.Equal(t, 3.0, resumed.Seed["scale"])
	require.Len(t, resumed.State.Completed, 2)
	require.Len(t, resumed.State.Running, 1)

	require.NoError(t, resumed.RunOnce(context.Background()))
	require.Equal(t, []model.VariableValueMap{{"scale": 3}}, resumedEngine.seeds)
}
