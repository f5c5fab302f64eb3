// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package deg

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/pdiddy/repurpose-engine/pkg/types"
)

// Tester runs a differential-expression test of case against reference
// over the samples of m labeled by groups. Results are returned in gene
// order of m. Implementations must be deterministic.
type Tester interface {
	Test(m *Matrix, groups []string, reference, caseGroup string) ([]types.DEGResult, error)
}

// WelchTester normalizes counts by median-of-ratios size factors,
// log-transforms them, and applies Welch's t-test per gene with
// Benjamini-Hochberg adjustment.
type WelchTester struct{}

// Test implements Tester.
func (WelchTester) Test(m *Matrix, groups []string, reference, caseGroup string) ([]types.DEGResult, error) {
	if len(groups) != len(m.Samples) {
		return nil, fmt.Errorf("%d group labels for %d samples", len(groups), len(m.Samples))
	}

	var refIdx, caseIdx []int
	for j, g := range groups {
		switch g {
		case reference:
			refIdx = append(refIdx, j)
		case caseGroup:
			caseIdx = append(caseIdx, j)
		}
	}
	if len(refIdx) == 0 || len(caseIdx) == 0 {
		return nil, fmt.Errorf("%w: need samples labeled %q and %q", ErrMissingGroup, reference, caseGroup)
	}
	if len(refIdx) < 2 || len(caseIdx) < 2 {
		return nil, fmt.Errorf("%w: need at least two replicates per group (got %d %s, %d %s)",
			ErrMissingGroup, len(refIdx), reference, len(caseIdx), caseGroup)
	}

	sf, err := SizeFactors(m)
	if err != nil {
		return nil, err
	}

	results := make([]types.DEGResult, len(m.Genes))
	pvals := make([]float64, len(m.Genes))
	ref := make([]float64, len(refIdx))
	cas := make([]float64, len(caseIdx))

	for i, row := range m.Values {
		var sum float64
		for j, v := range row {
			sum += v / sf[j]
		}
		for k, j := range refIdx {
			ref[k] = math.Log2(row[j]/sf[j] + 1)
		}
		for k, j := range caseIdx {
			cas[k] = math.Log2(row[j]/sf[j] + 1)
		}

		t, lfc, p := welch(ref, cas)
		results[i] = types.DEGResult{
			Gene:           m.Genes[i],
			BaseMean:       sum / float64(len(row)),
			Log2FoldChange: lfc,
			Stat:           t,
			PValue:         p,
		}
		pvals[i] = p
	}

	for i, q := range AdjustBH(pvals) {
		results[i].PAdj = q
	}
	return results, nil
}

// welch returns the t statistic, the difference of means (b - a), and the
// two-sided p-value.
func welch(a, b []float64) (t, diff, p float64) {
	ma, va := stat.MeanVariance(a, nil)
	mb, vb := stat.MeanVariance(b, nil)
	diff = mb - ma

	na, nb := float64(len(a)), float64(len(b))
	sa, sb := va/na, vb/nb
	se := math.Sqrt(sa + sb)
	if se == 0 {
		if diff == 0 {
			return 0, 0, 1
		}
		return math.Copysign(math.Inf(1), diff), diff, 0
	}

	t = diff / se
	df := (sa + sb) * (sa + sb) / (sa*sa/(na-1) + sb*sb/(nb-1))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p = 2 * dist.Survival(math.Abs(t))
	if p > 1 {
		p = 1
	}
	return t, diff, p
}

// SizeFactors computes median-of-ratios size factors over genes with
// positive counts in every sample.
func SizeFactors(m *Matrix) ([]float64, error) {
	n := len(m.Samples)
	var logGeo []float64
	var rows [][]float64
	for _, row := range m.Values {
		positive := true
		var s float64
		for _, v := range row {
			if v <= 0 || math.IsNaN(v) {
				positive = false
				break
			}
			s += math.Log(v)
		}
		if positive {
			logGeo = append(logGeo, s/float64(n))
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no gene has positive counts in every sample; cannot normalize")
	}

	sf := make([]float64, n)
	ratios := make([]float64, len(rows))
	for j := 0; j < n; j++ {
		for i, row := range rows {
			ratios[i] = math.Log(row[j]) - logGeo[i]
		}
		sf[j] = math.Exp(median(ratios))
	}
	return sf, nil
}

func median(xs []float64) float64 {
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}

// AdjustBH applies the Benjamini-Hochberg procedure and returns adjusted
// p-values in input order.
func AdjustBH(p []float64) []float64 {
	n := len(p)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return p[order[a]] < p[order[b]] })

	adj := make([]float64, n)
	running := 1.0
	for k := n - 1; k >= 0; k-- {
		i := order[k]
		q := p[i] * float64(n) / float64(k+1)
		if q < running {
			running = q
		}
		adj[i] = running
	}
	return adj
}
