package model

import (
	"path/filepath"
	"sort"
	"strings"
)

// InputFile is a discovered experimental data file, identified by its
// absolute path and ordered by the numeric token extracted from its name.
type InputFile struct {
	Path     string `json:"path"`
	OrderKey int64  `json:"order_key"`
}

// Name returns the base filename of the input file.
func (f InputFile) Name() string {
	return filepath.Base(f.Path)
}

// Stem returns the base filename without its extension, used to derive
// the result filename for this input.
func (f InputFile) Stem() string {
	name := f.Name()
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// RunState tracks the three ordered sequences over the input files.
// Completed is always a prefix of Known in OrderKey order, and
// Running = Known − Completed preserving Known order.
type RunState struct {
	Known     []InputFile `json:"known"`
	Completed []InputFile `json:"completed"`
	Running   []InputFile `json:"running"`
}

// MarkCompleted moves file from the head of Running into Completed.
func (s *RunState) MarkCompleted(file InputFile) {
	s.Completed = append(s.Completed, file)
	for i, f := range s.Running {
		if f.Path == file.Path {
			s.Running = append(s.Running[:i], s.Running[i+1:]...)
			break
		}
	}
}

// IndexOf returns the position of the named file inside Known, or -1.
func (s *RunState) IndexOf(filename string) int {
	for i, f := range s.Known {
		if f.Name() == filename {
			return i
		}
	}
	return -1
}

// VariableValueMap maps variable names to numeric values. It is used both
// as a fit's initial guess and as a fit's converged output. Refinement
// order is carried separately by the caller's ordered name slice.
type VariableValueMap map[string]float64

// SortedNames returns the variable names in lexicographic order, for
// deterministic iteration.
func (m VariableValueMap) SortedNames() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a copy of the map so converged values from one file can
// seed the next without aliasing.
func (m VariableValueMap) Clone() VariableValueMap {
	out := make(VariableValueMap, len(m))
	for name, value := range m {
		out[name] = value
	}
	return out
}
