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
package sparsity_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/grailbio/taxprofile/matrix"
	"github.com/grailbio/taxprofile/sparsity"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
)

func newMatrix(rows []string, data [][]float64) *matrix.Matrix {
	cols := make([]string, len(data[0]))
	for j := range cols {
		cols[j] = string(rune('a' + j))
	}
	m := matrix.New(rows, cols)
	for i := range data {
		copy(m.Data[i], data[i])
	}
	return m
}

func TestZeroFractions(t *testing.T) {
	m := newMatrix([]string{"x", "y", "z"}, [][]float64{
		{0, 0, 0, 0, 1},
		{1, 2, 3, 4, 5},
		{0, math.NaN(), 1, 0, 0},
	})
	expect.EQ(t, sparsity.ZeroFractions(m), []float64{0.8, 0, 0.6})
}

func TestFilter(t *testing.T) {
	m := newMatrix([]string{"sparse", "rare", "common", "lowmean", "edge"}, [][]float64{
		{0, 0, 0, 0, 50},                  // 80% zeros: dropped by pass 1
		{0, 0, 0, 10, 10},                 // 60% zeros: kept
		{20, 30, 40, 50, 60},              // kept
		{0.005, 0.01, 0.005, 0.01, 0.005}, // mean 0.007: dropped by pass 2
		{0.01, 0.01, 0, 0, 0},             // mean == threshold: dropped by pass 2
	})
	res := sparsity.Filter(m, sparsity.DefaultOpts)
	expect.EQ(t, res.RowsBefore, 5)
	expect.EQ(t, res.RowsAfter, 2)
	expect.EQ(t, res.Filtered.Rows, []string{"rare", "common"})
	expect.EQ(t, res.Filtered.Data, [][]float64{{0, 0, 0, 10, 10}, {20, 30, 40, 50, 60}})

	// Statistics cover everything that survived the zero-fraction pass.
	expect.EQ(t, res.Stats.Taxa, []string{"rare", "common", "lowmean", "edge"})
	expect.EQ(t, res.Stats.NonZero, []int{2, 5, 5, 2})
	expect.EQ(t, res.Stats.Sum[0], 20.0)
	expect.EQ(t, res.Stats.RowMean[1], 40.0)
	assert.InDelta(t, 0.007, res.Stats.RowMean[2], 1e-12)

	st := res.Stats.Matrix()
	expect.EQ(t, st.Cols, []string{"sum", "noZero", "rowMeans"})
	expect.EQ(t, st.Data[0], []float64{20, 2, 10})
}

func TestFilterAllZeroRow(t *testing.T) {
	// With a zero-fraction cutoff above 1 an all-zero row reaches pass 2,
	// where its NaN mean drops it.
	m := newMatrix([]string{"zero", "one"}, [][]float64{{0, 0}, {1, 1}})
	res := sparsity.Filter(m, sparsity.Opts{Threshold: 0.01, MaxZeroFraction: 1.5})
	expect.EQ(t, res.Stats.Taxa, []string{"zero", "one"})
	expect.True(t, math.IsNaN(res.Stats.RowMean[0]))
	expect.EQ(t, res.Filtered.Rows, []string{"one"})
}

func TestFilterNaNColumn(t *testing.T) {
	nan := math.NaN()
	m := newMatrix([]string{"x"}, [][]float64{{nan, 2, 4}})
	res := sparsity.Filter(m, sparsity.DefaultOpts)
	expect.EQ(t, res.Stats.Sum, []float64{6})
	expect.EQ(t, res.Stats.NonZero, []int{3})
	expect.EQ(t, res.Stats.RowMean, []float64{2})
	expect.EQ(t, res.RowsAfter, 1)
	expect.EQ(t, res.Log2.Data[0], []float64{0, 1, 2})
}

func TestFilterNoRows(t *testing.T) {
	m := matrix.New(nil, []string{"SRR1", "SRR2"})
	res := sparsity.Filter(m, sparsity.DefaultOpts)
	expect.EQ(t, res.RowsBefore, 0)
	expect.EQ(t, res.RowsAfter, 0)
	expect.EQ(t, res.Filtered.Cols, []string{"SRR1", "SRR2"})
}

func TestFilterProperties(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	rows := make([]string, 40)
	for i := range rows {
		rows[i] = string(rune('A'+i/26)) + string(rune('a'+i%26))
	}
	for iter := 0; iter < 50; iter++ {
		data := make([][]float64, len(rows))
		for i := range data {
			data[i] = make([]float64, 6)
			for j := range data[i] {
				if r.Intn(2) == 0 {
					data[i][j] = r.Float64() * math.Pow(10, float64(r.Intn(5)-3))
				}
			}
		}
		m := newMatrix(rows, data)
		res := sparsity.Filter(m, sparsity.DefaultOpts)
		expect.LE(t, res.Filtered.NRows(), m.NRows())
		fracs := sparsity.ZeroFractions(res.Filtered)
		stats := sparsity.ComputeStats(res.Filtered)
		for i := range res.Filtered.Rows {
			expect.True(t, fracs[i] < 0.8)
			expect.True(t, stats.RowMean[i] > 0.01)
		}
		for i, row := range res.Filtered.Data {
			for j, v := range row {
				if v == 0 {
					expect.EQ(t, res.Log2.Data[i][j], 0.0)
				} else {
					expect.EQ(t, res.Log2.Data[i][j], math.Log2(v))
				}
			}
		}
	}
}
