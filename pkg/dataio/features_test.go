package dataio

import (
	"bytes"
	"math"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureHeader(t *testing.T) {
	assert.Equal(t, []string{"Id", "f1", "f2"}, FeatureHeader(2, false))
	assert.Equal(t, []string{"Id", "f1", "label"}, FeatureHeader(1, true))
}

func TestWriteFeatures(t *testing.T) {
	g := goldie.New(t)

	x := [][]float64{
		{2, 0.6666666666666666, 0.5, 0},
		{0, 0, 0.1, 1e-7},
	}

	t.Run("labelled", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteFeatures(&buf, x, []float64{1, 0}))
		g.Assert(t, "features_labelled", buf.Bytes())
	})

	t.Run("unlabelled", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteFeatures(&buf, x, nil))
		g.Assert(t, "features_unlabelled", buf.Bytes())
	})

	t.Run("label_count_mismatch", func(t *testing.T) {
		err := WriteFeatures(&bytes.Buffer{}, x, []float64{1})
		assert.ErrorIs(t, err, ErrMalformedFeatures)
	})

	t.Run("ragged_rows", func(t *testing.T) {
		err := WriteFeatures(&bytes.Buffer{}, [][]float64{{1, 2}, {3}}, nil)
		assert.ErrorIs(t, err, ErrMalformedFeatures)
	})
}

func TestFeatureRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 7))
	x := make([][]float64, 50)
	y := make([]float64, len(x))
	for i := range x {
		x[i] = make([]float64, 28)
		for j := range x[i] {
			x[i][j] = rng.Float64() * math.Pow(10, float64(rng.IntN(12)-6))
		}
		y[i] = float64(i % 2)
	}

	t.Run("labelled", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteFeatures(&buf, x, y))

		gotX, gotY, err := ReadFeatures(&buf)
		require.NoError(t, err)
		assert.Equal(t, x, gotX)
		assert.Equal(t, y, gotY)
	})

	t.Run("unlabelled", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteFeatures(&buf, x, nil))

		gotX, gotY, err := ReadFeatures(&buf)
		require.NoError(t, err)
		assert.Equal(t, x, gotX)
		assert.Nil(t, gotY)
	})
}

func TestReadFeaturesErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"bad_header", "Row,f1\n0,1\n"},
		{"bad_value", "Id,f1\n0,abc\n"},
		{"bad_label", "Id,f1,label\n0,1,yes\n"},
		{"short_row", "Id,f1,f2\n0,1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ReadFeatures(strings.NewReader(tt.in))
			assert.ErrorIs(t, err, ErrMalformedFeatures)
		})
	}
}
