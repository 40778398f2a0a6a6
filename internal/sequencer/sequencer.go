package sequencer

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"go-refine-pipeline/internal/model"
)

// Sequencer discovers input files in a watched directory and orders them
// by the numeric token extracted from their filenames.
type Sequencer struct {
	Dir     string
	Pattern *regexp.Regexp
}

// New compiles the filename order pattern and returns a sequencer for
// the given directory. The pattern must contain at least one capture
// group, which must match a decimal integer in every filename.
func New(dir, pattern string) (*Sequencer, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: bad filename order pattern %q: %v", model.ErrConfiguration, pattern, err)
	}
	if re.NumSubexp() < 1 {
		return nil, fmt.Errorf("%w: filename order pattern %q has no capture group", model.ErrConfiguration, pattern)
	}
	return &Sequencer{Dir: dir, Pattern: re}, nil
}

// OrderKey extracts the order key from a filename, or fails with
// ErrPatternMismatch when the pattern yields no numeric group.
func (s *Sequencer) OrderKey(name string) (int64, error) {
	matches := s.Pattern.FindStringSubmatch(name)
	if len(matches) < 2 {
		return 0, fmt.Errorf("%w: %q does not match %q", model.ErrPatternMismatch, name, s.Pattern.String())
	}
	key, err := strconv.ParseInt(matches[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q captured non-numeric order token %q", model.ErrPatternMismatch, name, matches[1])
	}
	return key, nil
}

// Discover lists the watched directory and returns all input files sorted
// by ascending OrderKey (filename as tie-break). Every regular entry must
// match the pattern, else discovery fails with ErrPatternMismatch.
func (s *Sequencer) Discover() ([]model.InputFile, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list input directory %s: %w", s.Dir, err)
	}

	var files []model.InputFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		key, err := s.OrderKey(entry.Name())
		if err != nil {
			return nil, err
		}
		path, err := filepath.Abs(filepath.Join(s.Dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve path for %s: %w", entry.Name(), err)
		}
		files = append(files, model.InputFile{Path: path, OrderKey: key})
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].OrderKey != files[j].OrderKey {
			return files[i].OrderKey < files[j].OrderKey
		}
		return files[i].Path < files[j].Path
	})
	return files, nil
}

// Reconcile checks a fresh directory listing against the previously known
// order and recomputes the run state. The previously known files must be
// a prefix of the new listing; a removed, renamed, or late-arriving file
// that sorts earlier than a committed one fails with ErrOrderingViolation,
// and the caller is expected to stop and require an operator restart.
func Reconcile(prevKnown, discovered, completed []model.InputFile) (*model.RunState, error) {
	if len(discovered) < len(prevKnown) {
		return nil, fmt.Errorf("%w: %d known files but only %d discovered",
			model.ErrOrderingViolation, len(prevKnown), len(discovered))
	}
	for i, prev := range prevKnown {
		if discovered[i].Path != prev.Path {
			return nil, fmt.Errorf("%w: position %d changed from %s to %s",
				model.ErrOrderingViolation, i, prev.Name(), discovered[i].Name())
		}
	}

	state := &model.RunState{
		Known:     discovered,
		Completed: completed,
	}
	// Running is the set difference in Known order, not an unordered diff.
	done := make(map[string]bool, len(completed))
	for _, f := range completed {
		done[f.Path] = true
	}
	for _, f := range discovered {
		if !done[f.Path] {
			state.Running = append(state.Running, f)
		}
	}
	return state, nil
}
