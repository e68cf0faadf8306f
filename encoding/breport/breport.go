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

// Package breport reads per-sample taxonomic classification reports, as
// produced by Bracken ("breport" files).
//
// A report is tab-separated text with six columns in a fixed order:
//
//   percent_reads  num_reads  num_reads_direct  rank  taxonomy_id  organism_name
//
// Organism names are usually indented with leading spaces to show the tree
// depth; the reader trims them. A leading header line is tolerated and skipped.
package breport

import (
	"bufio"
	"context"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/tsv"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// NumColumns is the number of tab-separated columns in a report line.
const NumColumns = 6

// DefaultSuffix is the file suffix of classification reports.
const DefaultSuffix = ".breport"

var (
	// ErrUnreadableFile is the cause of errors for reports that are missing or
	// that don't follow the six-column layout.
	ErrUnreadableFile = errors.New("unreadable report file")
	// ErrMalformedFilename is the cause of errors for report paths that don't
	// carry a sample accession before the report suffix.
	ErrMalformedFilename = errors.New("malformed report filename")
)

// Record is one line of a report.
type Record struct {
	PercentReads float64
	NumReads     float64
	// NumReadsDirect is the number of reads assigned directly to this taxon
	// and not to any of its descendants.
	NumReadsDirect float64
	// Rank is the taxonomic rank code, e.g. "S" for species or "G" for genus.
	// It is only ever compared for equality.
	Rank  string
	TaxID string
	// Name of the organism, with surrounding whitespace removed.
	Name string
}

// Report holds the records of one sample, in file order.
type Report struct {
	Sample  string
	Records []Record
}

// Opts controls how report files are located and named.
type Opts struct {
	// Suffix is the filename suffix that follows the sample accession. A
	// trailing ".gz" after the suffix is always accepted.
	Suffix string
}

// DefaultOpts is the default value of Opts.
var DefaultOpts = Opts{
	Suffix: DefaultSuffix,
}

func sampleRegexp(suffix string) *regexp.Regexp {
	return regexp.MustCompile(`([[:alnum:]]+)` + regexp.QuoteMeta(suffix) + `(\.gz)?$`)
}

// SampleID extracts the sample accession from a report path. The accession is
// the run of alphanumeric characters right before the suffix, so both
// "SRR14291145.breport" and "/data/run1_SRR14291145.breport.gz" yield
// "SRR14291145".
func SampleID(path, suffix string) (string, error) {
	m := sampleRegexp(suffix).FindStringSubmatch(path)
	if m == nil {
		return "", errors.Wrapf(ErrMalformedFilename, "%s: no sample accession before %q", path, suffix)
	}
	return m[1], nil
}

// HasSuffix reports whether path looks like a report: it ends with suffix,
// optionally followed by ".gz".
func HasSuffix(path, suffix string) bool {
	return strings.HasSuffix(path, suffix) || strings.HasSuffix(path, suffix+".gz")
}

// isHeader reports whether the first line of a report is a column header
// rather than a record. A header has the six tab-separated columns of a record
// but none of the three count columns is a number. Any other line is left to
// the record decoder, which rejects it if it is malformed.
func isHeader(line string) bool {
	fields := strings.Split(strings.TrimRight(line, "\r\n"), "\t")
	if len(fields) != NumColumns {
		return false
	}
	for _, f := range fields[:3] {
		if _, err := strconv.ParseFloat(strings.TrimSpace(f), 64); err == nil {
			return false
		}
	}
	return true
}

// Read parses the report of the given sample from r.
func Read(r io.Reader, sample string) (*Report, error) {
	br := bufio.NewReader(r)
	first, err := br.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, errors.Wrapf(ErrUnreadableFile, "sample %s: %v", sample, err)
	}
	in := io.Reader(br)
	if !isHeader(first) {
		in = io.MultiReader(strings.NewReader(first), br)
	}

	tr := tsv.NewReader(in)
	tr.FieldsPerRecord = NumColumns
	tr.LazyQuotes = true

	rep := &Report{Sample: sample}
	for {
		var rec Record
		if err := tr.Read(&rec); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.Wrapf(ErrUnreadableFile, "sample %s, record %d: %v", sample, len(rep.Records)+1, err)
		}
		rec.Name = strings.TrimSpace(rec.Name)
		rep.Records = append(rep.Records, rec)
	}
	return rep, nil
}

// ReadFile parses the report at path. The sample is named after the accession
// in the filename. Paths ending in ".gz" are decompressed.
func ReadFile(ctx context.Context, path string, opts Opts) (rep *Report, err error) {
	sample, err := SampleID(path, opts.Suffix)
	if err != nil {
		return nil, err
	}
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(ErrUnreadableFile, "open %s: %v", path, err)
	}
	defer func() {
		if e := in.Close(ctx); e != nil && err == nil {
			err = errors.Wrapf(ErrUnreadableFile, "close %s: %v", path, e)
		}
	}()
	reader := io.Reader(in.Reader(ctx))
	if fileio.DetermineType(path) == fileio.Gzip {
		gz, err := gzip.NewReader(reader)
		if err != nil {
			return nil, errors.Wrapf(ErrUnreadableFile, "gunzip %s: %v", path, err)
		}
		defer gz.Close() // nolint: errcheck
		reader = gz
	}
	if rep, err = Read(reader, sample); err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return rep, nil
}

// Select returns the records at the given rank. Ranks match exactly; no
// hierarchical resolution is done ("S1" is not "S").
func (r *Report) Select(rank string) []Record {
	var recs []Record
	for _, rec := range r.Records {
		if rec.Rank == rank {
			recs = append(recs, rec)
		}
	}
	return recs
}
