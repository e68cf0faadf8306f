// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sparsity drops rare taxa from a relative abundance matrix.
//
// Filtering runs in two passes. The first removes taxa that are zero in too
// many samples. The second removes taxa whose mean abundance, taken over the
// samples where they are present, does not exceed a threshold. Degenerate
// arithmetic never fails: a taxon absent from every sample has a NaN mean and
// is dropped by the second pass.
package sparsity

import (
	"math"

	"github.com/grailbio/taxprofile/matrix"
)

// Opts controls filtering.
type Opts struct {
	// Threshold is the minimum mean abundance among non-zero entries. Taxa
	// whose mean is at or below Threshold are dropped.
	Threshold float64
	// MaxZeroFraction is the fraction of zero entries at which a taxon is
	// dropped by the first pass.
	MaxZeroFraction float64
}

// DefaultOpts is the default value of Opts.
var DefaultOpts = Opts{
	Threshold:       0.01,
	MaxZeroFraction: 0.8,
}

// Stats holds per-taxon statistics of the taxa that survive the zero-fraction
// pass, computed before the threshold pass.
type Stats struct {
	Taxa []string
	// Sum is the total abundance across samples. NaN entries are skipped.
	Sum []float64
	// NonZero is the number of samples with a non-zero entry.
	NonZero []int
	// RowMean is Sum/NonZero, or NaN when NonZero is 0.
	RowMean []float64
}

// Column labels of the statistics table.
const (
	SumCol     = "sum"
	NonZeroCol = "noZero"
	RowMeanCol = "rowMeans"
)

// Matrix returns the statistics as a table with one row per taxon and the
// columns sum, noZero and rowMeans.
func (s *Stats) Matrix() *matrix.Matrix {
	m := matrix.New(s.Taxa, []string{SumCol, NonZeroCol, RowMeanCol})
	for i := range s.Taxa {
		m.Data[i][0] = s.Sum[i]
		m.Data[i][1] = float64(s.NonZero[i])
		m.Data[i][2] = s.RowMean[i]
	}
	return m
}

// Result is the output of Filter.
type Result struct {
	// Filtered holds the taxa that pass both passes.
	Filtered *matrix.Matrix
	// Log2 is Filtered with zeros left at 0 and everything else replaced by
	// its base-2 logarithm.
	Log2 *matrix.Matrix
	// Stats covers the taxa that pass the zero-fraction pass.
	Stats *Stats
	// RowsBefore and RowsAfter are the number of taxa before and after
	// filtering.
	RowsBefore, RowsAfter int
}

// ZeroFractions returns, for each row of m, the fraction of entries that are
// exactly zero. NaN is not zero. With no columns every fraction is NaN.
func ZeroFractions(m *matrix.Matrix) []float64 {
	fracs := make([]float64, m.NRows())
	for i, row := range m.Data {
		if len(row) == 0 {
			fracs[i] = math.NaN()
			continue
		}
		zeros := 0
		for _, v := range row {
			if v == 0 {
				zeros++
			}
		}
		fracs[i] = float64(zeros) / float64(len(row))
	}
	return fracs
}

// ComputeStats returns the statistics of every row of m.
func ComputeStats(m *matrix.Matrix) *Stats {
	n := m.NRows()
	s := &Stats{
		Taxa:    append([]string(nil), m.Rows...),
		Sum:     make([]float64, n),
		NonZero: make([]int, n),
		RowMean: make([]float64, n),
	}
	for i, row := range m.Data {
		for _, v := range row {
			if v != 0 {
				s.NonZero[i]++
			}
			if !math.IsNaN(v) {
				s.Sum[i] += v
			}
		}
		if s.NonZero[i] == 0 {
			s.RowMean[i] = math.NaN()
			continue
		}
		s.RowMean[i] = s.Sum[i] / float64(s.NonZero[i])
	}
	return s
}

// Filter removes sparse and low-abundance taxa from the abundance matrix m.
func Filter(m *matrix.Matrix, opts Opts) Result {
	var keep []int
	for i, frac := range ZeroFractions(m) {
		if frac < opts.MaxZeroFraction {
			keep = append(keep, i)
		}
	}
	dense := m.SelectRows(keep)
	stats := ComputeStats(dense)

	keep = keep[:0]
	for i, mean := range stats.RowMean {
		if mean > opts.Threshold {
			keep = append(keep, i)
		}
	}
	filtered := dense.SelectRows(keep)
	return Result{
		Filtered:   filtered,
		Log2:       Log2(filtered),
		Stats:      stats,
		RowsBefore: m.NRows(),
		RowsAfter:  filtered.NRows(),
	}
}

// Log2 returns the base-2 logarithm of m. Zero entries stay 0 rather than
// becoming -Inf, and NaN entries become 0.
func Log2(m *matrix.Matrix) *matrix.Matrix {
	return m.Map(func(v float64) float64 {
		if v == 0 || math.IsNaN(v) {
			return 0
		}
		return math.Log2(v)
	})
}
