package dataio

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/orneryd/edgepredict/pkg/pool"
)

const labelColumn = "label"

// FeatureHeader returns "Id,f1..fK" plus "label" when labelled.
func FeatureHeader(k int, labelled bool) []string {
	header := make([]string, 0, k+2)
	header = append(header, "Id")
	for i := 1; i <= k; i++ {
		header = append(header, "f"+strconv.Itoa(i))
	}
	if labelled {
		header = append(header, labelColumn)
	}
	return header
}

func formatFloat(buf []byte, v float64) ([]byte, string) {
	buf = strconv.AppendFloat(buf[:0], v, 'g', -1, 64)
	return buf, string(buf)
}

// WriteFeatures writes x as a feature CSV with 0-based row ids. y may be nil
// for unlabelled data; otherwise it must have one entry per row. Values use
// the shortest representation that parses back to the same float64.
func WriteFeatures(w io.Writer, x [][]float64, y []float64) error {
	if y != nil && len(y) != len(x) {
		return fmt.Errorf("%w: %d rows, %d labels", ErrMalformedFeatures, len(x), len(y))
	}
	k := 0
	if len(x) > 0 {
		k = len(x[0])
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(FeatureHeader(k, y != nil)); err != nil {
		return err
	}

	buf := pool.GetByteBuffer()
	defer func() { pool.PutByteBuffer(buf) }()

	record := make([]string, 0, k+2)
	for i, row := range x {
		if len(row) != k {
			return fmt.Errorf("%w: row %d has %d features, want %d", ErrMalformedFeatures, i, len(row), k)
		}
		record = append(record[:0], strconv.Itoa(i))
		var s string
		for _, v := range row {
			buf, s = formatFloat(buf, v)
			record = append(record, s)
		}
		if y != nil {
			buf, s = formatFloat(buf, y[i])
			record = append(record, s)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadFeatures reads a feature CSV. labels is nil when the file has no
// label column.
func ReadFeatures(r io.Reader) (x [][]float64, labels []float64, err error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil, fmt.Errorf("%w: missing header", ErrMalformedFeatures)
	}
	if err != nil {
		return nil, nil, err
	}
	if len(header) < 1 || header[0] != "Id" {
		return nil, nil, fmt.Errorf("%w: header must start with Id", ErrMalformedFeatures)
	}
	labelled := header[len(header)-1] == labelColumn
	k := len(header) - 1
	if labelled {
		k--
		labels = []float64{}
	}
	x = [][]float64{}

	for row := 0; ; row++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%w: row %d: %v", ErrMalformedFeatures, row, err)
		}

		values := make([]float64, k)
		for j := range values {
			values[j], err = strconv.ParseFloat(record[j+1], 64)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: row %d column %s: %v", ErrMalformedFeatures, row, header[j+1], err)
			}
		}
		x = append(x, values)

		if labelled {
			label, err := strconv.ParseFloat(record[k+1], 64)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: row %d label: %v", ErrMalformedFeatures, row, err)
			}
			labels = append(labels, label)
		}
	}
	return x, labels, nil
}
