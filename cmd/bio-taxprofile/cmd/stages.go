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

package cmd

import (
	"context"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/taxprofile/diversity"
	"github.com/grailbio/taxprofile/encoding/breport"
	"github.com/grailbio/taxprofile/graphs"
	"github.com/grailbio/taxprofile/matrix"
	"github.com/grailbio/taxprofile/profile"
	"github.com/grailbio/taxprofile/sparsity"
	"github.com/grailbio/taxprofile/util"
)

func listReports(ctx context.Context, dir, suffix string) ([]string, error) {
	paths, err := profile.ListReports(ctx, dir, suffix)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, errors.E(errors.NotExist, "no files ending with", suffix, "in", dir)
	}
	return paths, nil
}

func runPipeline(ctx context.Context, dir string, opts profile.Opts) error {
	paths, err := listReports(ctx, dir, opts.Suffix)
	if err != nil {
		return err
	}
	results, err := profile.Run(ctx, paths, opts)
	if err != nil {
		return err
	}
	for _, r := range results {
		if r.Empty {
			continue
		}
		log.Printf("rank %s: %d samples, %d taxa kept of %d", r.Rank, r.Counts.NCols(), r.Filter.RowsAfter, r.Filter.RowsBefore)
	}
	return nil
}

func writeMatrix(ctx context.Context, path string, m *matrix.Matrix) error {
	if err := matrix.WriteCSVFile(ctx, path, m); err != nil {
		return err
	}
	log.Printf("saved %s", path)
	return nil
}

func buildMatrices(ctx context.Context, dir string, opts profile.Opts) error {
	paths, err := listReports(ctx, dir, opts.Suffix)
	if err != nil {
		return err
	}
	reports, err := profile.ReadReports(ctx, paths, breport.Opts{Suffix: opts.Suffix}, opts.Parallelism)
	if err != nil {
		return err
	}
	if err := util.MkdirAll(opts.OutDir); err != nil {
		return err
	}
	matrices := matrix.BuildAll(reports, opts.Ranks, matrix.BuildOpts{SumDuplicates: opts.SumDuplicates})
	for _, rank := range opts.Ranks {
		m := matrices[rank]
		if m.NRows() == 0 {
			log.Error.Printf("rank %s: no records in any report", rank)
		}
		if err := writeMatrix(ctx, profile.ArtifactPath(opts.OutDir, rank, profile.CountsName, opts.Compress), m); err != nil {
			return err
		}
	}
	return nil
}

func normalize(ctx context.Context, path string, flags stageFlags) error {
	counts, err := matrix.ReadCSVFile(ctx, path)
	if err != nil {
		return err
	}
	if err := util.MkdirAll(*flags.outDir); err != nil {
		return err
	}
	return writeMatrix(ctx, flags.path(profile.AbundanceName), matrix.Normalize(counts))
}

func filterAbundance(ctx context.Context, path string, threshold float64) (*matrix.Matrix, sparsity.Result, error) {
	abund, err := matrix.ReadCSVFile(ctx, path)
	if err != nil {
		return nil, sparsity.Result{}, err
	}
	opts := sparsity.DefaultOpts
	opts.Threshold = threshold
	return abund, sparsity.Filter(abund, opts), nil
}

func filter(ctx context.Context, path string, threshold float64, flags stageFlags) error {
	_, res, err := filterAbundance(ctx, path, threshold)
	if err != nil {
		return err
	}
	log.Printf("rank %s: %d taxa before filtering, %d after", *flags.rank, res.RowsBefore, res.RowsAfter)
	if err := util.MkdirAll(*flags.outDir); err != nil {
		return err
	}
	if err := writeMatrix(ctx, flags.path(profile.StatsName), res.Stats.Matrix()); err != nil {
		return err
	}
	if err := writeMatrix(ctx, flags.path(profile.FilteredName), res.Filtered); err != nil {
		return err
	}
	return writeMatrix(ctx, flags.path(profile.Log2Name), res.Log2)
}

func alphaDiversity(ctx context.Context, path string, flags stageFlags) error {
	filtered, err := matrix.ReadCSVFile(ctx, path)
	if err != nil {
		return err
	}
	if err := util.MkdirAll(*flags.outDir); err != nil {
		return err
	}
	return writeMatrix(ctx, flags.path(profile.DiversityName), diversity.Compute(filtered).Matrix())
}

func plot(ctx context.Context, path string, threshold float64, flags stageFlags) error {
	abund, res, err := filterAbundance(ctx, path, threshold)
	if err != nil {
		return err
	}
	_, err = graphs.Generate(ctx, abund, res.Filtered, res.Stats, *flags.outDir, *flags.rank, profile.DefaultOpts.GraphOpts())
	return err
}
