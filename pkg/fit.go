package ageing

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// fitWindow returns the bin range the fit (and, by default, the charge
// integration) runs over. An explicit window from the configuration wins,
// otherwise the window brackets the maximum-count bin by the configured
// margin in bins.
func fitWindow(hist Histogram, config Configuration) (float64, float64) {
	if config.FitWindowLow != 0 || config.FitWindowHigh != 0 {
		return config.FitWindowLow, config.FitWindowHigh
	}
	if hist.Empty() {
		return 0, 0
	}
	margin := config.WindowMargin
	if margin <= 0 {
		margin = 20
	}
	peak := hist.PeakBin()
	lo := peak - margin
	if lo < 0 {
		lo = 0
	}
	hi := peak + margin
	if hi > len(hist.Bins)-1 {
		hi = len(hist.Bins) - 1
	}
	return hist.Bins[lo], hist.Bins[hi]
}

// windowSlice returns the bin centers and counts inside [lo, hi].
func windowSlice(hist Histogram, lo, hi float64) ([]float64, []float64) {
	var xs, ys []float64
	for i, x := range hist.Bins {
		if x < lo || x > hi {
			continue
		}
		xs = append(xs, x)
		ys = append(ys, hist.Counts[i])
	}
	return xs, ys
}

// nParams returns the number of free parameters for the configured
// background model: amplitude, mean and sigma always, plus the background
// terms.
func nParams(model string) int {
	switch model {
	case BackgroundConstant:
		return 4
	case BackgroundLinear:
		return 5
	default:
		return 3
	}
}

// gaussModel evaluates background(x) + A*exp(-(x-mu)^2/(2*sigma^2)) for the
// parameter vector p = [A, mu, sigma, b0, b1] (trailing entries absent for
// smaller background models).
func gaussModel(p []float64, x float64) float64 {
	arg := (x - p[1]) / p[2]
	value := p[0] * math.Exp(-0.5*arg*arg)
	if len(p) > 3 {
		value += p[3]
	}
	if len(p) > 4 {
		value += p[4] * x
	}
	return value
}

// gaussJacobian fills row with the partial derivatives of the model at x.
func gaussJacobian(p []float64, x float64, row []float64) {
	arg := (x - p[1]) / p[2]
	g := math.Exp(-0.5 * arg * arg)
	row[0] = g
	row[1] = p[0] * g * (x - p[1]) / (p[2] * p[2])
	row[2] = p[0] * g * (x - p[1]) * (x - p[1]) / (p[2] * p[2] * p[2])
	if len(p) > 3 {
		row[3] = 1
	}
	if len(p) > 4 {
		row[4] = x
	}
}

// initialGuess derives the starting parameters: amplitude from the peak
// count, mean from the peak position, sigma from the weighted second moment
// in the window (or the configured default), background from the lowest
// count in the window.
func initialGuess(xs, ys []float64, config Configuration) []float64 {
	peak := 0
	low := ys[0]
	for i, y := range ys {
		if y > ys[peak] {
			peak = i
		}
		if y < low {
			low = y
		}
	}
	sigma := config.DefaultSigma
	if sigma <= 0 {
		// Weighted second central moment of the window.
		sigma = stat.StdDev(xs, ys)
		if math.IsNaN(sigma) || sigma <= 0 {
			sigma = (xs[len(xs)-1] - xs[0]) / 4
		}
	}

	p := make([]float64, nParams(config.BackgroundModel))
	p[0] = ys[peak] - low
	if p[0] <= 0 {
		p[0] = ys[peak]
	}
	p[1] = xs[peak]
	p[2] = sigma
	if len(p) > 3 {
		p[3] = low
	}
	return p
}

// sigmaFloor returns the strictly positive lower bound for the fitted sigma.
func sigmaFloor(hist Histogram, config Configuration) float64 {
	floor := config.SigmaFloor
	if floor <= 0 {
		floor = 1e-6 * (hist.Bins[len(hist.Bins)-1] - hist.Bins[0])
	}
	if floor <= 0 {
		floor = 1e-9
	}
	return floor
}

// chiSquare computes the weighted sum of squared residuals with Poisson
// uncertainties, sqrt(count) floored at 1.
func chiSquare(p, xs, ys []float64) float64 {
	total := 0.0
	for i, x := range xs {
		sigma := math.Sqrt(ys[i])
		if sigma < 1 {
			sigma = 1
		}
		r := (ys[i] - gaussModel(p, x)) / sigma
		total += r * r
	}
	return total
}

// FitGaussian fits the configured Gaussian-plus-background model to the
// histogram with a Levenberg-Marquardt minimization of the Poisson-weighted
// least squares. The context aborts a stalled fit between iterations. On
// failure the returned FitResult has Valid=false and the error is an
// *InsufficientDataError or *FitConvergenceError.
func FitGaussian(ctx context.Context, hist Histogram, config Configuration) (FitResult, error) {
	result := FitResult{Valid: false}
	if hist.Empty() {
		err := &InsufficientDataError{Reason: "histogram is empty"}
		result.Reason = err.Error()
		return result, err
	}
	if hist.TotalCount() <= 0 {
		err := &InsufficientDataError{Reason: "histogram has no counts"}
		result.Reason = err.Error()
		return result, err
	}

	lo, hi := fitWindow(hist, config)
	result.WindowLow, result.WindowHigh = lo, hi
	xs, ys := windowSlice(hist, lo, hi)
	np := nParams(config.BackgroundModel)
	if len(xs) <= np {
		err := &InsufficientDataError{
			Reason: fmt.Sprintf("fit window holds %d bins, need more than %d", len(xs), np)}
		result.Reason = err.Error()
		return result, err
	}

	floor := sigmaFloor(hist, config)
	p := initialGuess(xs, ys, config)
	if p[2] < floor {
		p[2] = floor
	}

	chi2 := chiSquare(p, xs, ys)
	lambda := 1e-3
	iterations := 0

	jtj := mat.NewDense(np, np, nil)
	jtr := mat.NewVecDense(np, nil)
	row := make([]float64, np)
	trial := make([]float64, np)

	for iterations < config.MaxIterations {
		if err := ctx.Err(); err != nil {
			convErr := &FitConvergenceError{Iterations: iterations, Reason: err.Error()}
			result.Iterations = iterations
			result.Reason = convErr.Error()
			return result, convErr
		}
		iterations++

		// Damped normal equations: (J^T J + lambda*diag(J^T J)) dp = J^T r.
		jtj.Zero()
		jtr.Zero()
		for i, x := range xs {
			sigma := math.Sqrt(ys[i])
			if sigma < 1 {
				sigma = 1
			}
			gaussJacobian(p, x, row)
			r := (ys[i] - gaussModel(p, x)) / sigma
			for a := 0; a < np; a++ {
				wa := row[a] / sigma
				jtr.SetVec(a, jtr.AtVec(a)+wa*r)
				for b := 0; b <= a; b++ {
					jtj.Set(a, b, jtj.At(a, b)+wa*row[b]/sigma)
				}
			}
		}
		for a := 0; a < np; a++ {
			for b := a + 1; b < np; b++ {
				jtj.Set(a, b, jtj.At(b, a))
			}
		}

		damped := mat.NewDense(np, np, nil)
		damped.Copy(jtj)
		for a := 0; a < np; a++ {
			d := jtj.At(a, a)
			if d == 0 {
				d = 1e-12
			}
			damped.Set(a, a, d*(1+lambda))
		}

		var step mat.VecDense
		if err := step.SolveVec(damped, jtr); err != nil {
			lambda *= 10
			if lambda > 1e12 {
				convErr := &FitConvergenceError{Iterations: iterations, Reason: "normal equations are singular"}
				result.Iterations = iterations
				result.Reason = convErr.Error()
				return result, convErr
			}
			continue
		}

		for a := 0; a < np; a++ {
			trial[a] = p[a] + step.AtVec(a)
		}
		if trial[2] < floor {
			trial[2] = floor
		}
		trialChi2 := chiSquare(trial, xs, ys)
		if trialChi2 < chi2 {
			improvement := chi2 - trialChi2
			copy(p, trial)
			converged := improvement < config.Tolerance*(chi2+1)
			chi2 = trialChi2
			lambda /= 10
			if lambda < 1e-12 {
				lambda = 1e-12
			}
			if converged {
				result.Amplitude = p[0]
				result.Mean = p[1]
				result.StdDev = p[2]
				if np > 3 {
					result.Background = p[3]
				}
				if np > 4 {
					result.BackgroundSlope = p[4]
				}
				result.Chi2 = chi2 / float64(len(xs)-np)
				result.Iterations = iterations
				result.Valid = true
				return result, nil
			}
		} else {
			lambda *= 10
			if lambda > 1e12 {
				convErr := &FitConvergenceError{Iterations: iterations, Reason: "step rejection limit reached"}
				result.Iterations = iterations
				result.Reason = convErr.Error()
				return result, convErr
			}
		}
	}

	convErr := &FitConvergenceError{Iterations: iterations, Reason: "iteration cap reached"}
	result.Iterations = iterations
	result.Reason = convErr.Error()
	return result, convErr
}
