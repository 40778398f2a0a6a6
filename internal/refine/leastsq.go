package refine

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"go-refine-pipeline/internal/model"
)

// CalcOptions narrows the calculation range applied to a loaded profile.
// Zero values leave the range as parsed from the file.
type CalcOptions struct {
	Xmin float64
	Xmax float64
}

// GaussianEngine is the built-in reference refinement engine: a damped
// Gauss-Newton least-squares fit of a Gaussian peak with a flat baseline
// to a two-column profile. It exists so the pipeline runs end to end
// without an external solver; production deployments swap in their own
// Engine implementation.
type GaussianEngine struct {
	Opts CalcOptions

	x, y   []float64
	params model.VariableValueMap
	free   []string
	cov    [][]float64
	chi2   float64
}

const fwhmFactor = 2.3548200450309493 // 2*sqrt(2*ln 2)

var gaussianParams = []string{"scale", "center", "width", "baseline"}

// NewGaussianEngine returns an engine with all parameters at their
// defaults and nothing loaded.
func NewGaussianEngine(opts CalcOptions) *GaussianEngine {
	return &GaussianEngine{Opts: opts}
}

// VariableNames returns the declared parameter names.
func (e *GaussianEngine) VariableNames() []string {
	return append([]string(nil), gaussianParams...)
}

// Prepare loads the profile file and seeds the parameter state. All
// parameters start fixed; Optimize frees them.
func (e *GaussianEngine) Prepare(ctx context.Context, inputPath string, seed model.VariableValueMap) error {
	x, y, err := readProfile(inputPath)
	if err != nil {
		return err
	}
	if e.Opts.Xmin != 0 || e.Opts.Xmax != 0 {
		x, y = clipRange(x, y, e.Opts.Xmin, e.Opts.Xmax)
	}
	if len(x) == 0 {
		return fmt.Errorf("profile %s has no data points in the calculation range", inputPath)
	}
	e.x, e.y = x, y

	e.params = model.VariableValueMap{"scale": 1, "center": 0, "width": 1, "baseline": 0}
	for name, value := range seed {
		if _, ok := e.params[name]; !ok {
			return fmt.Errorf("%w: %q in seed values", model.ErrUnknownVariable, name)
		}
		e.params[name] = value
	}
	e.free = nil
	e.cov = nil
	e.chi2 = e.computeChi2(e.params)
	return nil
}

// Value returns the current value of a declared parameter.
func (e *GaussianEngine) Value(name string) (float64, error) {
	value, ok := e.params[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", model.ErrUnknownVariable, name)
	}
	return value, nil
}

// Profile returns the observed and calculated curves.
func (e *GaussianEngine) Profile() (x, y, ycalc []float64) {
	ycalc = make([]float64, len(e.x))
	for i, xi := range e.x {
		ycalc[i] = e.model(e.params, xi)
	}
	return e.x, e.y, ycalc
}

func (e *GaussianEngine) model(p model.VariableValueMap, x float64) float64 {
	width := p["width"]
	if width == 0 {
		width = 1e-12
	}
	d := (x - p["center"]) / width
	return p["scale"]*math.Exp(-0.5*d*d) + p["baseline"]
}

func (e *GaussianEngine) residuals(p model.VariableValueMap) []float64 {
	r := make([]float64, len(e.x))
	for i, xi := range e.x {
		r[i] = e.y[i] - e.model(p, xi)
	}
	return r
}

func (e *GaussianEngine) computeChi2(p model.VariableValueMap) float64 {
	chi2 := 0.0
	for _, ri := range e.residuals(p) {
		chi2 += ri * ri
	}
	return chi2
}

// Optimize runs a damped Gauss-Newton refinement of the free parameter
// set, holding all other parameters fixed. onEval fires once per
// objective evaluation.
func (e *GaussianEngine) Optimize(ctx context.Context, free []string, onEval EvalHook) error {
	if len(e.x) == 0 {
		return fmt.Errorf("engine not prepared: no profile loaded")
	}
	for _, name := range free {
		if _, ok := e.params[name]; !ok {
			return fmt.Errorf("%w: %q", model.ErrUnknownVariable, name)
		}
	}
	e.free = append([]string(nil), free...)

	eval := func(p model.VariableValueMap) float64 {
		chi2 := e.computeChi2(p)
		if onEval != nil {
			e.chi2 = chi2
			onEval()
		}
		return chi2
	}

	lambda := 1e-3
	chi2 := eval(e.params)
	for iter := 0; iter < 200; iter++ {
		jt, r := e.jacobian(free)

		// Normal equations with Levenberg damping on the diagonal.
		n := len(free)
		a := make([][]float64, n)
		b := make([]float64, n)
		for i := 0; i < n; i++ {
			a[i] = make([]float64, n)
			for j := 0; j < n; j++ {
				for k := range r {
					a[i][j] += jt[i][k] * jt[j][k]
				}
			}
			for k := range r {
				b[i] += jt[i][k] * r[k]
			}
		}
		for i := 0; i < n; i++ {
			a[i][i] *= 1 + lambda
		}

		step, ok := solve(a, b)
		if !ok {
			break
		}

		trial := e.params.Clone()
		for i, name := range free {
			trial[name] += step[i]
		}
		trialChi2 := eval(trial)
		if trialChi2 < chi2 {
			improvement := chi2 - trialChi2
			e.params = trial
			chi2 = trialChi2
			lambda = math.Max(lambda/4, 1e-12)
			if improvement <= 1e-14*(1+chi2) {
				break
			}
		} else {
			lambda *= 8
			if lambda > 1e10 {
				break
			}
		}
	}
	e.chi2 = chi2
	e.cov = e.covariance(free)
	return nil
}

// jacobian returns the transposed Jacobian (one row per free parameter)
// and the residual vector, using central finite differences.
func (e *GaussianEngine) jacobian(free []string) (jt [][]float64, r []float64) {
	r = e.residuals(e.params)
	jt = make([][]float64, len(free))
	for i, name := range free {
		h := 1e-6 * math.Max(1, math.Abs(e.params[name]))
		plus := e.params.Clone()
		minus := e.params.Clone()
		plus[name] += h
		minus[name] -= h
		row := make([]float64, len(e.x))
		for k, xk := range e.x {
			row[k] = (e.model(plus, xk) - e.model(minus, xk)) / (2 * h)
		}
		jt[i] = row
	}
	return jt, r
}

// covariance estimates (JᵀJ)⁻¹ · reduced_chi2 over the free set. A
// singular normal matrix yields a sentinel matrix of ones, which the
// result record reports as certain=false.
func (e *GaussianEngine) covariance(free []string) [][]float64 {
	n := len(free)
	if n == 0 {
		return nil
	}
	jt, _ := e.jacobian(free)
	a := make([][]float64, n)
	for i := 0; i < n; i++ {
		a[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			for k := range e.x {
				a[i][j] += jt[i][k] * jt[j][k]
			}
		}
	}
	inv, ok := invert(a)
	if !ok {
		sentinel := make([][]float64, n)
		for i := range sentinel {
			sentinel[i] = make([]float64, n)
			for j := range sentinel[i] {
				sentinel[i][j] = 1
			}
		}
		return sentinel
	}
	rchi2 := e.reducedChi2()
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			inv[i][j] *= rchi2
		}
	}
	return inv
}

func (e *GaussianEngine) reducedChi2() float64 {
	dof := len(e.x) - len(e.free)
	if dof < 1 {
		dof = 1
	}
	return e.chi2 / float64(dof)
}

// Metric returns a named intermediate metric for the current state.
func (e *GaussianEngine) Metric(name string) (float64, error) {
	switch name {
	case "residual":
		return e.chi2, nil
	case "contributions":
		return e.chi2, nil
	case "restraints":
		return 0, nil
	case "chi2":
		return e.chi2, nil
	case "reduced_chi2":
		return e.reducedChi2(), nil
	}
	return 0, fmt.Errorf("%w: metric %q", model.ErrUnknownVariable, name)
}

// Results assembles the result record for the last Optimize call.
func (e *GaussianEngine) Results() (*model.ResultRecord, error) {
	if len(e.x) == 0 {
		return nil, fmt.Errorf("engine not prepared: no profile loaded")
	}

	freeSet := make(map[string]bool, len(e.free))
	for _, name := range e.free {
		freeSet[name] = true
	}

	record := &model.ResultRecord{
		Residual:         e.chi2,
		Contributions:    e.chi2,
		Restraints:       0,
		Chi2:             e.chi2,
		ReducedChi2:      e.reducedChi2(),
		Rw:               e.rw(),
		Variables:        make(map[string]model.UncertainValue),
		FixedVariables:   make(map[string]model.FixedValue),
		Constraints:      make(map[string]model.UncertainValue),
		CovarianceMatrix: e.cov,
		Certain:          true,
	}

	for i, name := range e.free {
		unc := 0.0
		if e.cov != nil {
			unc = math.Sqrt(math.Abs(e.cov[i][i]))
		}
		record.Variables[name] = model.UncertainValue{Value: e.params[name], Uncertainty: unc}
	}
	for _, name := range gaussianParams {
		if !freeSet[name] {
			record.FixedVariables[name] = model.FixedValue{Value: e.params[name]}
		}
	}

	// Derived constraint: full width at half maximum from the width
	// parameter, with propagated uncertainty when width is free.
	widthUnc := 0.0
	if pack, ok := record.Variables["width"]; ok {
		widthUnc = pack.Uncertainty
	}
	record.Constraints["fwhm"] = model.UncertainValue{
		Value:       fwhmFactor * math.Abs(e.params["width"]),
		Uncertainty: fwhmFactor * widthUnc,
	}

	// A sentinel covariance means the derivative estimates degenerated
	// and the uncertainty estimates cannot be trusted.
	if e.cov != nil {
		allOnes := true
		for i := range e.cov {
			for j := range e.cov[i] {
				if e.cov[i][j] != 1 {
					allOnes = false
				}
			}
		}
		if allOnes {
			record.Certain = false
		}
	}
	return record, nil
}

func (e *GaussianEngine) rw() float64 {
	num, den := 0.0, 0.0
	for i, xi := range e.x {
		d := e.y[i] - e.model(e.params, xi)
		num += d * d
		den += e.y[i] * e.y[i]
	}
	if den == 0 {
		return 0
	}
	return math.Sqrt(num / den)
}

// readProfile parses a two-column whitespace-separated profile file.
// Blank lines and lines starting with '#' are skipped.
func readProfile(path string) (x, y []float64, err error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open profile %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		xi, errX := strconv.ParseFloat(fields[0], 64)
		yi, errY := strconv.ParseFloat(fields[1], 64)
		if errX != nil || errY != nil {
			continue
		}
		x = append(x, xi)
		y = append(y, yi)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read profile %s: %w", path, err)
	}
	return x, y, nil
}

func clipRange(x, y []float64, xmin, xmax float64) ([]float64, []float64) {
	var cx, cy []float64
	for i := range x {
		if xmin != 0 && x[i] < xmin {
			continue
		}
		if xmax != 0 && x[i] > xmax {
			continue
		}
		cx = append(cx, x[i])
		cy = append(cy, y[i])
	}
	return cx, cy
}

// solve performs Gaussian elimination with partial pivoting on a copy of
// the inputs. The boolean reports whether the system is non-singular.
func solve(a [][]float64, b []float64) ([]float64, bool) {
	n := len(b)
	m := make([][]float64, n)
	for i := range m {
		m[i] = append(append([]float64(nil), a[i]...), b[i])
	}
	for col := 0; col < n; col++ {
		pivot := col
		for row := col + 1; row < n; row++ {
			if math.Abs(m[row][col]) > math.Abs(m[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(m[pivot][col]) < 1e-300 {
			return nil, false
		}
		m[col], m[pivot] = m[pivot], m[col]
		for row := col + 1; row < n; row++ {
			factor := m[row][col] / m[col][col]
			for k := col; k <= n; k++ {
				m[row][k] -= factor * m[col][k]
			}
		}
	}
	x := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		x[i] = m[i][n]
		for j := i + 1; j < n; j++ {
			x[i] -= m[i][j] * x[j]
		}
		x[i] /= m[i][i]
	}
	return x, true
}

// invert inverts a square matrix by solving against identity columns.
func invert(a [][]float64) ([][]float64, bool) {
	n := len(a)
	inv := make([][]float64, n)
	for i := range inv {
		inv[i] = make([]float64, n)
	}
	for col := 0; col < n; col++ {
		unit := make([]float64, n)
		unit[col] = 1
		solution, ok := solve(a, unit)
		if !ok {
			return nil, false
		}
		for row := 0; row < n; row++ {
			inv[row][col] = solution[row]
		}
	}
	return inv, true
}
