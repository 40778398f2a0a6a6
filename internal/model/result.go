package model

// UncertainValue is a refined value with its estimated uncertainty.
type UncertainValue struct {
	Value       float64 `json:"value"`
	Uncertainty float64 `json:"uncertainty"`
}

// FixedValue is a parameter that was held fixed during the fit.
type FixedValue struct {
	Value float64 `json:"value"`
}

// ResultRecord is the persisted outcome of one staged refinement run
// for one input file. Immutable once written; read back only on resume.
type ResultRecord struct {
	Residual         float64                   `json:"residual"`
	Contributions    float64                   `json:"contributions"`
	Restraints       float64                   `json:"restraints"`
	Chi2             float64                   `json:"chi2"`
	ReducedChi2      float64                   `json:"reduced_chi2"`
	Rw               float64                   `json:"rw"`
	Variables        map[string]UncertainValue `json:"variables"`
	FixedVariables   map[string]FixedValue     `json:"fixed_variables"`
	Constraints      map[string]UncertainValue `json:"constraints"`
	CovarianceMatrix [][]float64               `json:"covariance_matrix"`
	Certain          bool                      `json:"certain"`
}

// VariableValues extracts just the converged values, used to seed the
// next file's stage run.
func (r *ResultRecord) VariableValues() VariableValueMap {
	values := make(VariableValueMap, len(r.Variables))
	for name, pack := range r.Variables {
		values[name] = pack.Value
	}
	return values
}

// ResultEntryNames lists the scalar result entries that can be streamed
// on the result_entries channel.
var ResultEntryNames = []string{
	"residual",
	"contributions",
	"restraints",
	"chi2",
	"reduced_chi2",
}

// Entry returns the named scalar result entry. The boolean reports
// whether the name is a known entry.
func (r *ResultRecord) Entry(name string) (float64, bool) {
	switch name {
	case "residual":
		return r.Residual, true
	case "contributions":
		return r.Contributions, true
	case "restraints":
		return r.Restraints, true
	case "chi2":
		return r.Chi2, true
	case "reduced_chi2":
		return r.ReducedChi2, true
	}
	return 0, false
}
