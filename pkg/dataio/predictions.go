package dataio

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/orneryd/edgepredict/pkg/blobstore"
	"github.com/orneryd/edgepredict/pkg/pool"
)

// WritePredictions writes "Id,Prediction" rows with 1-based ids.
func WritePredictions(w io.Writer, preds []float64) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Id", "Prediction"}); err != nil {
		return err
	}

	buf := pool.GetByteBuffer()
	defer func() { pool.PutByteBuffer(buf) }()

	record := make([]string, 2)
	for i, p := range preds {
		record[0] = strconv.Itoa(i + 1)
		buf, record[1] = formatFloat(buf, p)
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadPredictions reads a prediction CSV. Rows must be numbered 1..n in
// order.
func ReadPredictions(r io.Reader) ([]float64, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 2

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: missing header", ErrMalformedPredictions)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPredictions, err)
	}
	if header[0] != "Id" || header[1] != "Prediction" {
		return nil, fmt.Errorf("%w: unexpected header %v", ErrMalformedPredictions, header)
	}

	preds := []float64{}
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPredictions, err)
		}
		id, err := strconv.Atoi(record[0])
		if err != nil || id != len(preds)+1 {
			return nil, fmt.Errorf("%w: row %d has id %q", ErrMalformedPredictions, len(preds)+1, record[0])
		}
		p, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrMalformedPredictions, id, err)
		}
		preds = append(preds, p)
	}
	return preds, nil
}

// PredictionKey returns the i-th candidate name, "<prefix><i>.csv".
func PredictionKey(prefix string, i int) string {
	return prefix + strconv.Itoa(i) + ".csv"
}

// SavePredictions writes preds to the first free slot among
// prefix0.csv..prefix{maxFiles-1}.csv and returns the key used. Existing
// files are never overwritten; when every slot is taken it returns
// ErrSaveExhausted.
func SavePredictions(ctx context.Context, store blobstore.BlobStore, prefix string, maxFiles int, preds []float64) (string, error) {
	var body bytes.Buffer
	if err := WritePredictions(&body, preds); err != nil {
		return "", err
	}

	for i := 0; i < maxFiles; i++ {
		key := PredictionKey(prefix, i)
		exists, err := store.Exists(ctx, key)
		if err != nil {
			return "", fmt.Errorf("probing %s: %w", key, err)
		}
		if exists {
			continue
		}

		err = store.Create(ctx, key, body.Bytes())
		if errors.Is(err, blobstore.ErrExists) {
			// Lost a race with another writer; try the next slot.
			continue
		}
		if err != nil {
			return "", fmt.Errorf("saving %s: %w", key, err)
		}
		return key, nil
	}
	return "", fmt.Errorf("%w: %s0.csv..%s%d.csv", ErrSaveExhausted, prefix, prefix, maxFiles-1)
}
