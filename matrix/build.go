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

import (
	"strings"

	"github.com/biogo/store/llrb"
	"github.com/grailbio/base/log"
	"github.com/grailbio/taxprofile/encoding/breport"
)

// BuildOpts controls how count matrices are assembled.
type BuildOpts struct {
	// SumDuplicates adds up the reads of an organism listed more than once in
	// the same report at the same rank. By default the last listing wins.
	SumDuplicates bool
}

// DefaultBuildOpts is the default value of BuildOpts.
var DefaultBuildOpts = BuildOpts{}

// taxon is an organism name, ordered for use in llrb.
type taxon string

// Compare implements llrb.Comparable.
func (t taxon) Compare(c llrb.Comparable) int {
	return strings.Compare(string(t), string(c.(taxon)))
}

// Build returns the taxon-by-sample read count matrix of the reports at the
// given rank. Rows are the organisms seen at that rank in any report, sorted
// by name. Columns are the report samples in the order given; a sample with no
// records at the rank gets an all-zero column. Sample names must be unique.
func Build(reports []*breport.Report, rank string, opts BuildOpts) *Matrix {
	var names llrb.Tree
	for _, rep := range reports {
		for _, rec := range rep.Records {
			if rec.Rank == rank {
				names.Insert(taxon(rec.Name))
			}
		}
	}
	rows := make([]string, 0, names.Len())
	names.Do(func(c llrb.Comparable) bool {
		rows = append(rows, string(c.(taxon)))
		return false
	})
	cols := make([]string, len(reports))
	for j, rep := range reports {
		cols[j] = rep.Sample
	}

	m := New(rows, cols)
	for j, rep := range reports {
		seen := map[int]bool{}
		for _, rec := range rep.Records {
			if rec.Rank != rank {
				continue
			}
			i := m.rowIdx[rec.Name]
			if seen[i] {
				log.Debug.Printf("sample %s: %q listed more than once at rank %s", rep.Sample, rec.Name, rank)
				if opts.SumDuplicates {
					m.Data[i][j] += rec.NumReads
					continue
				}
			}
			seen[i] = true
			m.Data[i][j] = rec.NumReads
		}
	}
	return m
}

// BuildAll builds one count matrix per rank.
func BuildAll(reports []*breport.Report, ranks []string, opts BuildOpts) map[string]*Matrix {
	ms := make(map[string]*Matrix, len(ranks))
	for _, rank := range ranks {
		ms[rank] = Build(reports, rank, opts)
	}
	return ms
}
