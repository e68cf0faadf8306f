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

// Package matrix holds dense taxon-by-sample tables: read counts built from
// classification reports, and their relative abundances.
package matrix

import (
	"fmt"
	"math"
)

// Matrix is a dense table with labeled rows and columns. For count and
// abundance matrices rows are taxa and columns are samples, but the same type
// also carries the per-taxon and per-sample statistics tables.
type Matrix struct {
	// Rows and Cols are the row and column labels. Labels are unique.
	Rows []string
	Cols []string
	// Data[i][j] is the value at Rows[i], Cols[j].
	Data [][]float64

	rowIdx map[string]int
	colIdx map[string]int
}

// New creates a zero-filled matrix with the given labels. It panics if a label
// is repeated.
func New(rows, cols []string) *Matrix {
	m := &Matrix{
		Rows:   append([]string(nil), rows...),
		Cols:   append([]string(nil), cols...),
		Data:   make([][]float64, len(rows)),
		rowIdx: make(map[string]int, len(rows)),
		colIdx: make(map[string]int, len(cols)),
	}
	values := make([]float64, len(rows)*len(cols))
	for i, r := range rows {
		if _, ok := m.rowIdx[r]; ok {
			panic(fmt.Sprintf("matrix: duplicate row %q", r))
		}
		m.rowIdx[r] = i
		m.Data[i] = values[i*len(cols) : (i+1)*len(cols) : (i+1)*len(cols)]
	}
	for j, c := range cols {
		if _, ok := m.colIdx[c]; ok {
			panic(fmt.Sprintf("matrix: duplicate column %q", c))
		}
		m.colIdx[c] = j
	}
	return m
}

// NRows returns the number of rows.
func (m *Matrix) NRows() int { return len(m.Rows) }

// NCols returns the number of columns.
func (m *Matrix) NCols() int { return len(m.Cols) }

// RowIndex returns the index of the named row, or -1.
func (m *Matrix) RowIndex(row string) int {
	if i, ok := m.rowIdx[row]; ok {
		return i
	}
	return -1
}

// ColIndex returns the index of the named column, or -1.
func (m *Matrix) ColIndex(col string) int {
	if j, ok := m.colIdx[col]; ok {
		return j
	}
	return -1
}

// Get returns the value at the named row and column. ok is false if either
// label is absent.
func (m *Matrix) Get(row, col string) (v float64, ok bool) {
	i, j := m.RowIndex(row), m.ColIndex(col)
	if i < 0 || j < 0 {
		return 0, false
	}
	return m.Data[i][j], true
}

// Col returns a copy of column j.
func (m *Matrix) Col(j int) []float64 {
	col := make([]float64, len(m.Rows))
	for i := range m.Data {
		col[i] = m.Data[i][j]
	}
	return col
}

// ColSums returns the sum of each column. NaN entries are skipped.
func (m *Matrix) ColSums() []float64 {
	sums := make([]float64, len(m.Cols))
	for _, row := range m.Data {
		for j, v := range row {
			if !math.IsNaN(v) {
				sums[j] += v
			}
		}
	}
	return sums
}

// Values returns all entries in row-major order.
func (m *Matrix) Values() []float64 {
	vals := make([]float64, 0, len(m.Rows)*len(m.Cols))
	for _, row := range m.Data {
		vals = append(vals, row...)
	}
	return vals
}

// Map returns a new matrix of the same shape with fn applied to every entry.
func (m *Matrix) Map(fn func(v float64) float64) *Matrix {
	out := New(m.Rows, m.Cols)
	for i, row := range m.Data {
		for j, v := range row {
			out.Data[i][j] = fn(v)
		}
	}
	return out
}

// SelectRows returns a new matrix with the rows at the given indices, in that
// order.
func (m *Matrix) SelectRows(indices []int) *Matrix {
	rows := make([]string, len(indices))
	for k, i := range indices {
		rows[k] = m.Rows[i]
	}
	out := New(rows, m.Cols)
	for k, i := range indices {
		copy(out.Data[k], m.Data[i])
	}
	return out
}
