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
package breport_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/taxprofile/encoding/breport"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/expect"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

func TestSampleID(t *testing.T) {
	for _, test := range []struct {
		path   string
		sample string
		ok     bool
	}{
		{"SRR14291145.breport", "SRR14291145", true},
		{"/data/bracken/SRR1.breport", "SRR1", true},
		{"/data/bracken/run7_ERR0042.breport.gz", "ERR0042", true},
		{"/data/bracken/SRR1.breport.txt", "", false},
		{"/data/bracken/.breport", "", false},
		{"/data/bracken/SRR1.kreport", "", false},
	} {
		sample, err := breport.SampleID(test.path, breport.DefaultSuffix)
		if !test.ok {
			expect.EQ(t, errors.Cause(err), breport.ErrMalformedFilename, test.path)
			continue
		}
		expect.NoError(t, err, test.path)
		expect.EQ(t, sample, test.sample)
	}
}

func TestHasSuffix(t *testing.T) {
	expect.True(t, breport.HasSuffix("a/SRR1.breport", ".breport"))
	expect.True(t, breport.HasSuffix("a/SRR1.breport.gz", ".breport"))
	expect.False(t, breport.HasSuffix("a/SRR1.breport.csv", ".breport"))
}

func TestRead(t *testing.T) {
	// No header line: the first line is a record.
	in := "75.00\t3\t1\tS\t562\t    Escherichia coli  \n25.00\t1\t1\tG\t561\t  Escherichia\n"
	rep, err := breport.Read(strings.NewReader(in), "SRR9")
	expect.NoError(t, err)
	expect.EQ(t, *rep, breport.Report{
		Sample: "SRR9",
		Records: []breport.Record{
			{PercentReads: 75, NumReads: 3, NumReadsDirect: 1, Rank: "S", TaxID: "562", Name: "Escherichia coli"},
			{PercentReads: 25, NumReads: 1, NumReadsDirect: 1, Rank: "G", TaxID: "561", Name: "Escherichia"},
		},
	})
	expect.EQ(t, len(rep.Select("S")), 1)
	expect.EQ(t, len(rep.Select("s")), 0)
}

func TestReadEmpty(t *testing.T) {
	rep, err := breport.Read(strings.NewReader(""), "SRR9")
	expect.NoError(t, err)
	expect.EQ(t, len(rep.Records), 0)
}

func TestReadBadSchema(t *testing.T) {
	for _, in := range []string{
		"12.5\t4\tS\t99\tOnly five\n",
		"percent\treads\tdirect\trank\ttaxid\tname\n12.5,4,4,S,99,Commas\n",
		"12.5\tmany\t4\tS\t99\tNot a number\n",
		// Comma-delimited, with no header.
		"68.15,107,107,S,394,Org A\n",
		// A corrupt first record is not mistaken for a header.
		"x68.15\t107\t107\tS\t394\tOrg A\n12.5\t4\t4\tS\t99\tOrg B\n",
		// A header line with the wrong number of columns.
		"percent\treads\tname\n12.5\t4\t4\tS\t99\tOrg B\n",
	} {
		_, err := breport.Read(strings.NewReader(in), "SRR9")
		expect.EQ(t, errors.Cause(err), breport.ErrUnreadableFile, in)
	}
}

func TestReadFile(t *testing.T) {
	ctx := context.Background()
	rep, err := breport.ReadFile(ctx, filepath.Join("testdata", "SRR14291145.breport"), breport.DefaultOpts)
	expect.NoError(t, err)
	expect.EQ(t, rep.Sample, "SRR14291145")
	// The header line is skipped.
	expect.EQ(t, len(rep.Records), 3)
	species := rep.Select("S")
	expect.EQ(t, len(species), 1)
	expect.EQ(t, species[0].Name, "Ruminiclostridium cellulolyticum")
	expect.EQ(t, species[0].NumReads, 107.0)
	expect.EQ(t, species[0].TaxID, "394503")
}

func TestReadFileGzip(t *testing.T) {
	tmpDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	data, err := os.ReadFile(filepath.Join("testdata", "SRR14291146.breport"))
	expect.NoError(t, err)
	path := filepath.Join(tmpDir, "SRR14291146.breport.gz")
	f, err := os.Create(path)
	expect.NoError(t, err)
	w := gzip.NewWriter(f)
	_, err = w.Write(data)
	expect.NoError(t, err)
	expect.NoError(t, w.Close())
	expect.NoError(t, f.Close())

	rep, err := breport.ReadFile(context.Background(), path, breport.DefaultOpts)
	expect.NoError(t, err)
	expect.EQ(t, rep.Sample, "SRR14291146")
	expect.EQ(t, len(rep.Select("S")), 2)
}

func TestReadFileErrors(t *testing.T) {
	ctx := context.Background()
	_, err := breport.ReadFile(ctx, filepath.Join("testdata", "SRR404.breport"), breport.DefaultOpts)
	expect.EQ(t, errors.Cause(err), breport.ErrUnreadableFile)

	_, err = breport.ReadFile(ctx, filepath.Join("testdata", "SRR3.breport"), breport.DefaultOpts)
	expect.EQ(t, errors.Cause(err), breport.ErrUnreadableFile)

	_, err = breport.ReadFile(ctx, filepath.Join("testdata", "SRR3.breport"), breport.Opts{Suffix: ".kreport"})
	expect.EQ(t, errors.Cause(err), breport.ErrMalformedFilename)
}
