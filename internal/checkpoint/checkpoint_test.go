package checkpoint

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"go-refine-pipeline/internal/model"
)

func stemMap(inputFilename string) string {
	stem := strings.TrimSuffix(inputFilename, filepath.Ext(inputFilename))
	return stem + "_result.json"
}

func sampleRecord(scale float64) *model.ResultRecord {
	return &model.ResultRecord{
		Residual:    0.5,
		Chi2:        0.5,
		ReducedChi2: 0.01,
		Rw:          0.12,
		Variables: map[string]model.UncertainValue{
			"scale": {Value: scale, Uncertainty: 0.02},
			"width": {Value: 1.5, Uncertainty: 0.001},
		},
		FixedVariables: map[string]model.FixedValue{
			"baseline": {Value: 0},
		},
		Constraints: map[string]model.UncertainValue{
			"fwhm": {Value: 3.53, Uncertainty: 0.002},
		},
		Certain: true,
	}
}

func TestResultPath(t *testing.T) {
	store := New("/results")
	file := model.InputFile{Path: "/data/sample_10K.gr", OrderKey: 10}
	require.Equal(t, filepath.Join("/results", "sample_10K_result.json"), store.ResultPath(file))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "results"))
	file := model.InputFile{Path: "/data/sample_10K.gr", OrderKey: 10}

	require.NoError(t, store.Save(file, sampleRecord(2.5)))

	record, err := store.Load(store.ResultPath(file))
	require.NoError(t, err)
	require.Equal(t, 2.5, record.Variables["scale"].Value)
	require.Equal(t, 0.02, record.Variables["scale"].Uncertainty)
	require.Equal(t, 0.0, record.FixedVariables["baseline"].Value)
	require.True(t, record.Certain)

	seed, err := store.LoadVariables(store.ResultPath(file))
	require.NoError(t, err)
	require.Equal(t, model.VariableValueMap{"scale": 2.5, "width": 1.5}, seed)
}

func TestLoadMissingCheckpoint(t *testing.T) {
	store := New(t.TempDir())
	_, err := store.Load(filepath.Join(store.Dir, "absent_result.json"))
	require.ErrorIs(t, err, model.ErrMissingCheckpoint)
}

func TestResumeFromRepositionsState(t *testing.T) {
	store := New(t.TempDir())
	a := model.InputFile{Path: "/data/sample_10K.gr", OrderKey: 10}
	b := model.InputFile{Path: "/data/sample_20K.gr", OrderKey: 20}
	c := model.InputFile{Path: "/data/sample_30K.gr", OrderKey: 30}
	require.NoError(t, store.Save(a, sampleRecord(3.0)))

	state := &model.RunState{Known: []model.InputFile{a, b, c}}
	seed, err := store.ResumeFrom(state, "sample_20K.gr", stemMap)
	require.NoError(t, err)
	require.Equal(t, 3.0, seed["scale"])
	require.Equal(t, []model.InputFile{a}, state.Completed)
	require.Equal(t, []model.InputFile{b, c}, state.Running)
}

func TestResumeFromUnknownFile(t *testing.T) {
	store := New(t.TempDir())
	a := model.InputFile{Path: "/data/sample_10K.gr", OrderKey: 10}
	state := &model.RunState{Known: []model.InputFile{a}}

	_, err := store.ResumeFrom(state, "sample_99K.gr", stemMap)
	require.ErrorIs(t, err, model.ErrUnknownInputFile)
}

func TestResumeFromFirstFile(t *testing.T) {
	store := New(t.TempDir())
	a := model.InputFile{Path: "/data/sample_10K.gr", OrderKey: 10}
	state := &model.RunState{Known: []model.InputFile{a}}

	_, err := store.ResumeFrom(state, "sample_10K.gr", stemMap)
	require.ErrorIs(t, err, model.ErrMissingCheckpoint)
}

func TestResumeFromMissingPrecedingCheckpoint(t *testing.T) {
	store := New(t.TempDir())
	a := model.InputFile{Path: "/data/sample_10K.gr", OrderKey: 10}
	b := model.InputFile{Path: "/data/sample_20K.gr", OrderKey: 20}
	state := &model.RunState{Known: []model.InputFile{a, b}}

	// No record was ever saved for 10K; resumption must not invent a seed.
	_, err := store.ResumeFrom(state, "sample_20K.gr", stemMap)
	require.ErrorIs(t, err, model.ErrMissingCheckpoint)
}
