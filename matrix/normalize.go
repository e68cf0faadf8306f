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
package matrix

import "math"

// Normalize returns the relative abundance matrix of m: each entry is its
// percentage of the column total, so every column sums to 100. Columns whose
// total is zero become all NaN.
func Normalize(m *Matrix) *Matrix {
	out := New(m.Rows, m.Cols)
	totals := m.ColSums()
	for i, row := range m.Data {
		for j, v := range row {
			if totals[j] == 0 {
				out.Data[i][j] = math.NaN()
				continue
			}
			out.Data[i][j] = v / totals[j] * 100
		}
	}
	return out
}
