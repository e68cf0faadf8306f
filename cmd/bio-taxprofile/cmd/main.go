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

// Package cmd implements the bio-taxprofile subcommands.
package cmd

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/taxprofile/profile"
	"v.io/x/lib/cmdline"
)

// parseRanks splits a comma-separated rank list, dropping empty labels.
func parseRanks(s string) []string {
	var ranks []string
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			ranks = append(ranks, r)
		}
	}
	return ranks
}

// stageFlags are shared by the subcommands that work on one matrix file.
type stageFlags struct {
	rank     *string
	outDir   *string
	compress *bool
}

func newStageFlags(fs *flag.FlagSet) stageFlags {
	return stageFlags{
		rank:     fs.String("rank", "S", "Rank label used to name the output files"),
		outDir:   fs.String("out", profile.DefaultOpts.OutDir, "Output directory"),
		compress: fs.Bool("compress", profile.DefaultOpts.Compress, "Write block-gzipped .csv.gz files"),
	}
}

func (f stageFlags) path(name string) string {
	return profile.ArtifactPath(*f.outDir, *f.rank, name, *f.compress)
}

func newCmdRun() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "run",
		Short: "Run the whole pipeline on a directory of reports",
		Long: `
Run lists the reports in the given directory, builds a count matrix for each
selected rank, and writes the relative abundance, filtered, log2 and diversity
tables plus the diagnostic charts to the output directory.

Every file name starts with the rank label, including the per-taxon filter
statistics: they go to <rank>_mean_NoZeros.csv, one file per rank, rather than
a single mean_NoZeros.csv shared by all ranks.`,
		ArgsName: "dir",
	}
	ranks := cmd.Flags.String("ranks", strings.Join(profile.DefaultOpts.Ranks, ","), "Comma-separated rank labels to profile, e.g. S,G,F")
	threshold := cmd.Flags.Float64("threshold", profile.DefaultOpts.Threshold, "Minimum mean non-zero relative abundance (percent) of a kept taxon")
	outDir := cmd.Flags.String("out", profile.DefaultOpts.OutDir, "Output directory")
	suffix := cmd.Flags.String("suffix", profile.DefaultOpts.Suffix, "Report file name suffix")
	plots := cmd.Flags.Bool("plots", profile.DefaultOpts.Plots, "Render the diagnostic charts")
	compress := cmd.Flags.Bool("compress", profile.DefaultOpts.Compress, "Write block-gzipped .csv.gz files")
	sumDuplicates := cmd.Flags.Bool("sum-duplicates", profile.DefaultOpts.SumDuplicates, "Sum organisms repeated within a report instead of keeping the last value")
	parallelism := cmd.Flags.Int("parallelism", profile.DefaultOpts.Parallelism, "Maximum number of reports or ranks processed at once; 0 = runtime.NumCPU()")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("run takes one directory argument, but got %v", argv)
		}
		opts := profile.Opts{
			Ranks:         parseRanks(*ranks),
			Threshold:     *threshold,
			OutDir:        *outDir,
			Suffix:        *suffix,
			Plots:         *plots,
			Compress:      *compress,
			SumDuplicates: *sumDuplicates,
			Parallelism:   *parallelism,
		}
		return runPipeline(vcontext.Background(), argv[0], opts)
	})
	return cmd
}

func newCmdMatrix() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "matrix",
		Short:    "Build the count matrix of each rank from a directory of reports",
		ArgsName: "dir",
	}
	ranks := cmd.Flags.String("ranks", strings.Join(profile.DefaultOpts.Ranks, ","), "Comma-separated rank labels")
	outDir := cmd.Flags.String("out", profile.DefaultOpts.OutDir, "Output directory")
	suffix := cmd.Flags.String("suffix", profile.DefaultOpts.Suffix, "Report file name suffix")
	compress := cmd.Flags.Bool("compress", profile.DefaultOpts.Compress, "Write block-gzipped .csv.gz files")
	sumDuplicates := cmd.Flags.Bool("sum-duplicates", profile.DefaultOpts.SumDuplicates, "Sum organisms repeated within a report")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("matrix takes one directory argument, but got %v", argv)
		}
		opts := profile.DefaultOpts
		opts.Ranks = parseRanks(*ranks)
		opts.OutDir = *outDir
		opts.Suffix = *suffix
		opts.Compress = *compress
		opts.SumDuplicates = *sumDuplicates
		return buildMatrices(vcontext.Background(), argv[0], opts)
	})
	return cmd
}

func newCmdNormalize() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "normalize",
		Short:    "Convert a count matrix to relative abundance",
		ArgsName: "counts.csv",
	}
	flags := newStageFlags(&cmd.Flags)
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("normalize takes one matrix path, but got %v", argv)
		}
		return normalize(vcontext.Background(), argv[0], flags)
	})
	return cmd
}

func newCmdFilter() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "filter",
		Short:    "Remove sparse and low-abundance taxa from a relative abundance matrix",
		ArgsName: "abundance.csv",
	}
	flags := newStageFlags(&cmd.Flags)
	threshold := cmd.Flags.Float64("threshold", profile.DefaultOpts.Threshold, "Minimum mean non-zero relative abundance (percent) of a kept taxon")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("filter takes one matrix path, but got %v", argv)
		}
		return filter(vcontext.Background(), argv[0], *threshold, flags)
	})
	return cmd
}

func newCmdDiversity() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "diversity",
		Short:    "Compute Shannon index and richness of each sample",
		ArgsName: "filtered.csv",
	}
	flags := newStageFlags(&cmd.Flags)
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("diversity takes one matrix path, but got %v", argv)
		}
		return alphaDiversity(vcontext.Background(), argv[0], flags)
	})
	return cmd
}

func newCmdPlot() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "plot",
		Short:    "Render the diagnostic charts of a relative abundance matrix",
		ArgsName: "abundance.csv",
	}
	flags := newStageFlags(&cmd.Flags)
	threshold := cmd.Flags.Float64("threshold", profile.DefaultOpts.Threshold, "Filtering threshold the charts describe")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("plot takes one matrix path, but got %v", argv)
		}
		return plot(vcontext.Background(), argv[0], *threshold, flags)
	})
	return cmd
}

// Run parses the command line and runs the selected subcommand.
func Run() {
	shutdown := grail.Init()
	cmdline.HideGlobalFlagsExcept()
	root := &cmdline.Command{
		Name:     "bio-taxprofile",
		Short:    "Taxonomic profiling of classification reports",
		LookPath: false,
		Children: []*cmdline.Command{
			newCmdRun(),
			newCmdMatrix(),
			newCmdNormalize(),
			newCmdFilter(),
			newCmdDiversity(),
			newCmdPlot(),
		},
	}
	env := cmdline.EnvFromOS()
	runner, args, err := cmdline.Parse(root, env, os.Args[1:])
	if err == nil {
		err = runner.Run(env, args)
	}
	shutdown()
	os.Exit(cmdline.ExitCode(err, env.Stderr))
}
