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
package graphs_test

import (
	"context"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/grailbio/taxprofile/graphs"
	"github.com/grailbio/taxprofile/matrix"
	"github.com/grailbio/taxprofile/sparsity"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/expect"
)

func abundance() *matrix.Matrix {
	m := matrix.New(
		[]string{"Org A", "Org B", "Org C", "Org D"},
		[]string{"SRR1", "SRR2", "SRR3", "SRR4", "SRR5"})
	m.Data[0] = []float64{60, 50, 70, 40, 55}
	m.Data[1] = []float64{39.995, 49.5, 0, 59.9, 44.9}
	m.Data[2] = []float64{0, 0.5, 30, 0.1, 0.1}
	m.Data[3] = []float64{0.005, 0, 0, 0, 0}
	return m
}

func checkPNG(t *testing.T, path string) {
	t.Helper()
	f, err := os.Open(path)
	expect.NoError(t, err)
	defer f.Close() // nolint: errcheck
	_, err = png.DecodeConfig(f)
	expect.NoError(t, err, path)
}

func TestGenerate(t *testing.T) {
	tmpDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	abund := abundance()
	res := sparsity.Filter(abund, sparsity.DefaultOpts)
	paths, err := graphs.Generate(context.Background(), abund, res.Filtered, res.Stats, tmpDir, "S", graphs.DefaultOpts)
	expect.NoError(t, err)
	expect.EQ(t, paths, []string{
		filepath.Join(tmpDir, "graphs", "proportion_zeros_S.png"),
		filepath.Join(tmpDir, "graphs", "hist_mean_abundance_S.png"),
		filepath.Join(tmpDir, "graphs", "hist_column_sums_filtered_S.png"),
		filepath.Join(tmpDir, "graphs", "hist_before_after_log2_S.png"),
	})
	for _, path := range paths {
		checkPNG(t, path)
	}
}

func TestGenerateEmpty(t *testing.T) {
	tmpDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	abund := matrix.New(nil, []string{"SRR1"})
	res := sparsity.Filter(abund, sparsity.DefaultOpts)
	paths, err := graphs.Generate(context.Background(), abund, res.Filtered, res.Stats, tmpDir, "G", graphs.DefaultOpts)
	expect.NoError(t, err)
	for _, path := range paths {
		checkPNG(t, path)
	}
}
