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

// Package diversity computes per-sample alpha diversity of an abundance
// matrix.
package diversity

import (
	"github.com/grailbio/taxprofile/matrix"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Column labels of the diversity table.
const (
	ShannonCol  = "shannon"
	RichnessCol = "richness"
)

// Table holds the diversity of each sample.
type Table struct {
	Samples  []string
	Shannon  []float64
	Richness []int
}

// present returns the positive entries of vals. NaN is not positive.
func present(vals []float64) []float64 {
	var p []float64
	for _, v := range vals {
		if v > 0 {
			p = append(p, v)
		}
	}
	return p
}

// Shannon returns the Shannon entropy, in nats, of the positive entries of
// vals. The entries are normalized to sum to 1 first, so raw counts and
// percentages give the same result. A sample with nothing present has
// entropy 0.
func Shannon(vals []float64) float64 {
	p := present(vals)
	if len(p) == 0 {
		return 0
	}
	// Divide, not scale by 1/total: a lone taxon must get probability exactly 1.
	total := floats.Sum(p)
	for i := range p {
		p[i] /= total
	}
	return stat.Entropy(p)
}

// Richness returns the number of positive entries in vals.
func Richness(vals []float64) int {
	return len(present(vals))
}

// Compute returns the diversity of every column of m.
func Compute(m *matrix.Matrix) *Table {
	t := &Table{
		Samples:  append([]string(nil), m.Cols...),
		Shannon:  make([]float64, m.NCols()),
		Richness: make([]int, m.NCols()),
	}
	for j := range m.Cols {
		col := m.Col(j)
		t.Shannon[j] = Shannon(col)
		t.Richness[j] = Richness(col)
	}
	return t
}

// Matrix returns the table with one row per sample and the columns shannon and
// richness.
func (t *Table) Matrix() *matrix.Matrix {
	m := matrix.New(t.Samples, []string{ShannonCol, RichnessCol})
	for i := range t.Samples {
		m.Data[i][0] = t.Shannon[i]
		m.Data[i][1] = float64(t.Richness[i])
	}
	return m
}
