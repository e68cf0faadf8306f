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
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"runtime"
	"strconv"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/hts/bgzf"
	"github.com/klauspost/compress/gzip"
)

// FormatValue renders v the way it appears in a CSV cell. Integral values are
// written without an exponent or fraction, NaN is an empty cell, and other
// values use the shortest representation that parses back to v.
func FormatValue(v float64) string {
	switch {
	case math.IsNaN(v):
		return ""
	case v == math.Trunc(v) && math.Abs(v) < 1e15:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ParseValue parses a CSV cell written by FormatValue. An empty cell is NaN.
func ParseValue(s string) (float64, error) {
	if s == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// WriteCSV writes m as comma-separated text. The first line holds the column
// labels after an empty cell; each following line holds a row label and the
// row's values.
func WriteCSV(w io.Writer, m *Matrix) error {
	cw := csv.NewWriter(w)
	rec := make([]string, len(m.Cols)+1)
	copy(rec[1:], m.Cols)
	if err := cw.Write(rec); err != nil {
		return err
	}
	for i, row := range m.Data {
		rec[0] = m.Rows[i]
		for j, v := range row {
			rec[j+1] = FormatValue(v)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV reads a matrix written by WriteCSV.
func ReadCSV(r io.Reader) (*Matrix, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.E(errors.Invalid, "matrix: missing header line")
	}
	if err != nil {
		return nil, err
	}
	cols := header[1:]
	var (
		rows []string
		data [][]float64
		seen = map[string]bool{}
	)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if seen[rec[0]] {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("matrix: duplicate row %q", rec[0]))
		}
		seen[rec[0]] = true
		vals := make([]float64, len(cols))
		for j, s := range rec[1:] {
			if vals[j], err = ParseValue(s); err != nil {
				return nil, errors.E(errors.Invalid, err, fmt.Sprintf("matrix: row %q, column %q", rec[0], cols[j]))
			}
		}
		rows = append(rows, rec[0])
		data = append(data, vals)
	}
	for j, c := range cols {
		for _, c2 := range cols[:j] {
			if c == c2 {
				return nil, errors.E(errors.Invalid, fmt.Sprintf("matrix: duplicate column %q", c))
			}
		}
	}
	m := New(rows, cols)
	for i := range data {
		copy(m.Data[i], data[i])
	}
	return m, nil
}

// WriteCSVFile writes m to path in the format of WriteCSV. If path ends in
// ".gz" the output is block-gzipped.
func WriteCSVFile(ctx context.Context, path string, m *Matrix) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "create", path)
	}
	defer file.CloseAndReport(ctx, out, &err)
	if fileio.DetermineType(path) != fileio.Gzip {
		if err = WriteCSV(out.Writer(ctx), m); err != nil {
			return errors.E(err, "write", path)
		}
		return nil
	}
	bw := bgzf.NewWriter(out.Writer(ctx), runtime.NumCPU())
	if err = WriteCSV(bw, m); err != nil {
		bw.Close() // nolint: errcheck
		return errors.E(err, "write", path)
	}
	if err = bw.Close(); err != nil {
		return errors.E(err, "bgzf close", path)
	}
	return nil
}

// ReadCSVFile reads a matrix written by WriteCSVFile.
func ReadCSVFile(ctx context.Context, path string) (m *Matrix, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "open", path)
	}
	defer func() {
		if e := in.Close(ctx); e != nil && err == nil {
			err = errors.E(e, "close", path)
		}
	}()
	r := io.Reader(in.Reader(ctx))
	if fileio.DetermineType(path) == fileio.Gzip {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.E(err, "gunzip", path)
		}
		defer gz.Close() // nolint: errcheck
		r = gz
	}
	if m, err = ReadCSV(r); err != nil {
		return nil, errors.E(err, "read", path)
	}
	return m, nil
}
