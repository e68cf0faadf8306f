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

/*
Package profile runs the taxonomic profiling pipeline over a set of
classification reports. For each selected rank it builds the count matrix,
converts it to relative abundance, removes sparse and low-abundance taxa,
renders the diagnostic charts and computes per-sample alpha diversity. Every
intermediate matrix is written to the output directory as a CSV file whose
name starts with the rank label.
*/
package profile

import (
	"context"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/taxprofile/diversity"
	"github.com/grailbio/taxprofile/encoding/breport"
	"github.com/grailbio/taxprofile/graphs"
	"github.com/grailbio/taxprofile/matrix"
	"github.com/grailbio/taxprofile/sparsity"
	"github.com/grailbio/taxprofile/util"
)

// Opts controls a pipeline run.
type Opts struct {
	// Ranks lists the rank labels to profile, e.g. "S" or "G".
	Ranks []string
	// Threshold is the minimum mean non-zero relative abundance, in percent,
	// of a taxon that survives filtering. It does not move the cutoff of the
	// low mean abundance chart, which stays at graphs.DefaultOpts.LowMeanCutoff.
	Threshold float64
	// OutDir is the directory that receives the CSV files and the graphs
	// subdirectory. It is created if it is a local path.
	OutDir string
	// Suffix is the report file name suffix used for discovery and for
	// sample ID extraction.
	Suffix string
	// Plots enables the diagnostic charts.
	Plots bool
	// Compress writes block-gzipped CSV files with a .gz extension.
	Compress bool
	// SumDuplicates adds up repeated organisms within one report instead of
	// keeping the last value.
	SumDuplicates bool
	// Parallelism bounds the number of reports read, and ranks processed,
	// concurrently. 0 means runtime.NumCPU().
	Parallelism int
}

// DefaultOpts is the default value of Opts.
var DefaultOpts = Opts{
	Ranks:       []string{"S"},
	Threshold:   sparsity.DefaultOpts.Threshold,
	OutDir:      "output",
	Suffix:      breport.DefaultSuffix,
	Plots:       true,
	Parallelism: 0,
}

// Artifact names, without the rank prefix and the extension.
const (
	CountsName       = "counts_matrix"
	AbundanceName    = "rela_abun_matrix"
	FilteredName     = "rela_abun_matrix_filtered"
	Log2Name         = "rela_abun_matrix_filteredAndLog2"
	StatsName        = "mean_NoZeros"
	DiversityName    = "alpha_diversity"
	csvExt           = ".csv"
	compressedCSVExt = ".csv.gz"
)

// ArtifactPath returns the path of the named CSV artifact of rank in outDir.
func ArtifactPath(outDir, rank, name string, compress bool) string {
	ext := csvExt
	if compress {
		ext = compressedCSVExt
	}
	return filepath.Join(outDir, rank+"_"+name+ext)
}

// GraphOpts returns the chart options of a run. The zero-fraction reference
// line follows the filter; the other settings are graphs.DefaultOpts.
func (o Opts) GraphOpts() graphs.Opts {
	g := graphs.DefaultOpts
	g.MaxZeroFraction = sparsity.DefaultOpts.MaxZeroFraction
	return g
}

// RankResult holds everything computed for one rank.
type RankResult struct {
	Rank      string
	Counts    *matrix.Matrix
	Abundance *matrix.Matrix
	Filter    sparsity.Result
	Diversity *diversity.Table
	// Graphs lists the chart paths. It is empty if Opts.Plots is false.
	Graphs []string
	// Empty is true if no report has a record at this rank. Only Counts is set
	// in that case.
	Empty bool
}

// ListReports returns the paths of the files in dir whose name ends with
// suffix, optionally followed by ".gz", sorted by path. Subdirectories are not
// searched.
func ListReports(ctx context.Context, dir, suffix string) ([]string, error) {
	var paths []string
	lister := file.List(ctx, dir, false)
	for lister.Scan() {
		if lister.IsDir() {
			continue
		}
		path := lister.Path()
		if !breport.HasSuffix(path, suffix) {
			log.Debug.Printf("ignoring %s", path)
			continue
		}
		paths = append(paths, path)
	}
	if err := lister.Err(); err != nil {
		return nil, errors.E(err, "list", dir)
	}
	sort.Strings(paths)
	return paths, nil
}

// each calls fn(i) for every i in [0, n), running at most limit (0 means
// runtime.NumCPU()) contiguous chunks of indices concurrently.
func each(n, limit int, fn func(i int) error) error {
	if limit <= 0 {
		limit = runtime.NumCPU()
	}
	nJob := limit
	if n < nJob {
		nJob = n
	}
	return traverse.Each(nJob, func(jobIdx int) error {
		startIdx := (jobIdx * n) / nJob
		endIdx := ((jobIdx + 1) * n) / nJob
		for i := startIdx; i < endIdx; i++ {
			if err := fn(i); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReadReports parses the given report files, at most limit at a time,
// keeping their order. Two files that yield the same sample ID are an error.
func ReadReports(ctx context.Context, paths []string, opts breport.Opts, limit int) ([]*breport.Report, error) {
	reports := make([]*breport.Report, len(paths))
	err := each(len(paths), limit, func(i int) error {
		log.Printf("processing %s", paths[i])
		rep, err := breport.ReadFile(ctx, paths[i], opts)
		reports[i] = rep
		return err
	})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]string, len(reports))
	for i, rep := range reports {
		if prev, ok := seen[rep.Sample]; ok {
			return nil, errors.E(errors.Invalid, "sample", rep.Sample, "appears in both", prev, "and", paths[i])
		}
		seen[rep.Sample] = paths[i]
	}
	return reports, nil
}

func writeCSV(ctx context.Context, path string, m *matrix.Matrix) error {
	if err := matrix.WriteCSVFile(ctx, path, m); err != nil {
		return err
	}
	log.Printf("saved %s", path)
	return nil
}

// processRank runs every stage after matrix construction for one rank.
func processRank(ctx context.Context, counts *matrix.Matrix, rank string, opts Opts) (RankResult, error) {
	res := RankResult{Rank: rank, Counts: counts}
	path := func(name string) string { return ArtifactPath(opts.OutDir, rank, name, opts.Compress) }
	if err := writeCSV(ctx, path(CountsName), counts); err != nil {
		return res, err
	}
	if counts.NRows() == 0 {
		log.Error.Printf("rank %s: no records in any report, skipping", rank)
		res.Empty = true
		return res, nil
	}

	res.Abundance = matrix.Normalize(counts)
	if err := writeCSV(ctx, path(AbundanceName), res.Abundance); err != nil {
		return res, err
	}

	filterOpts := sparsity.DefaultOpts
	filterOpts.Threshold = opts.Threshold
	res.Filter = sparsity.Filter(res.Abundance, filterOpts)
	log.Printf("rank %s: %d taxa before filtering, %d after", rank, res.Filter.RowsBefore, res.Filter.RowsAfter)
	for _, a := range []struct {
		name string
		m    *matrix.Matrix
	}{
		{StatsName, res.Filter.Stats.Matrix()},
		{FilteredName, res.Filter.Filtered},
		{Log2Name, res.Filter.Log2},
	} {
		if err := writeCSV(ctx, path(a.name), a.m); err != nil {
			return res, err
		}
	}

	if opts.Plots {
		var err error
		if res.Graphs, err = graphs.Generate(ctx, res.Abundance, res.Filter.Filtered, res.Filter.Stats, opts.OutDir, rank, opts.GraphOpts()); err != nil {
			return res, err
		}
	}

	res.Diversity = diversity.Compute(res.Filter.Filtered)
	return res, writeCSV(ctx, path(DiversityName), res.Diversity.Matrix())
}

// Run reads the reports at paths and profiles each rank in opts.Ranks. The
// results are in the order of opts.Ranks. A rank without any record is logged
// and reported as Empty; it doesn't fail the run.
func Run(ctx context.Context, paths []string, opts Opts) ([]RankResult, error) {
	if len(paths) == 0 {
		return nil, errors.E(errors.Invalid, "no report files")
	}
	if err := util.MkdirAll(opts.OutDir); err != nil {
		return nil, err
	}
	log.Printf("selected ranks: %s", strings.Join(opts.Ranks, ","))
	reports, err := ReadReports(ctx, paths, breport.Opts{Suffix: opts.Suffix}, opts.Parallelism)
	if err != nil {
		return nil, err
	}

	buildOpts := matrix.BuildOpts{SumDuplicates: opts.SumDuplicates}
	results := make([]RankResult, len(opts.Ranks))
	err = each(len(opts.Ranks), opts.Parallelism, func(i int) error {
		rank := opts.Ranks[i]
		counts := matrix.Build(reports, rank, buildOpts)
		var err error
		if results[i], err = processRank(ctx, counts, rank, opts); err != nil {
			return errors.E(err, "rank", rank)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
