package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go-refine-pipeline/internal/model"
)

// Store persists one ResultRecord per processed input file as a JSON
// document in the output result directory.
type Store struct {
	Dir string
}

// New returns a checkpoint store rooted at the given result directory.
func New(dir string) *Store {
	return &Store{Dir: dir}
}

// ResultPath derives the deterministic result path for an input file:
// <input-stem>_result.json inside the result directory.
func (s *Store) ResultPath(file model.InputFile) string {
	return filepath.Join(s.Dir, file.Stem()+"_result.json")
}

// Save writes the result record for the given input file. Records are
// immutable once written; Save overwrites only if a stale record from a
// previous aborted run is present.
func (s *Store) Save(file model.InputFile, record *model.ResultRecord) error {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create result directory: %w", err)
	}
	path := s.ResultPath(file)
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create result file %s: %w", path, err)
	}
	defer out.Close()

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(record); err != nil {
		return fmt.Errorf("failed to encode result record: %w", err)
	}
	return nil
}

// Load reads a persisted result record back from disk.
func (s *Store) Load(resultPath string) (*model.ResultRecord, error) {
	data, err := os.ReadFile(resultPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", model.ErrMissingCheckpoint, resultPath)
		}
		return nil, fmt.Errorf("failed to read result file %s: %w", resultPath, err)
	}
	var record model.ResultRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode result file %s: %w", resultPath, err)
	}
	return &record, nil
}

// LoadVariables reads the converged variable values from a persisted
// result record, failing with ErrMissingCheckpoint if the file is absent.
func (s *Store) LoadVariables(resultPath string) (model.VariableValueMap, error) {
	record, err := s.Load(resultPath)
	if err != nil {
		return nil, err
	}
	return record.VariableValues(), nil
}

// MapFunc maps an input filename to the expected result filename of its
// checkpoint. It is supplied by the caller and invoked only on explicit
// resume.
type MapFunc func(inputFilename string) string

// ResumeFrom repositions the run state so processing restarts at the named
// input file: everything before it becomes completed, it and everything
// after become running. The seed for the next stage run is loaded from the
// immediately preceding file's checkpoint via mapFn. Resumption never
// falls back to a default seed: a missing checkpoint is an error.
func (s *Store) ResumeFrom(state *model.RunState, inputFilename string, mapFn MapFunc) (model.VariableValueMap, error) {
	index := state.IndexOf(inputFilename)
	if index < 0 {
		return nil, fmt.Errorf("%w: %s not found in known input files", model.ErrUnknownInputFile, inputFilename)
	}
	if index == 0 {
		return nil, fmt.Errorf("%w: no completed file precedes %s", model.ErrMissingCheckpoint, inputFilename)
	}

	state.Completed = append([]model.InputFile(nil), state.Known[:index]...)
	state.Running = append([]model.InputFile(nil), state.Known[index:]...)

	previous := state.Completed[len(state.Completed)-1]
	resultPath := filepath.Join(s.Dir, mapFn(previous.Name()))
	seed, err := s.LoadVariables(resultPath)
	if err != nil {
		return nil, err
	}
	fmt.Printf("⏪ Resuming from input file: %s (seed from %s)\n", inputFilename, filepath.Base(resultPath))
	return seed, nil
}
