package tiling

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/tilekit/internal/tensor"
)

func testPlan(t *testing.T) *Plan {
	t.Helper()
	pl := NewPlanner(Platform{Cores: 3, UBBytes: 4096, Align: 64})
	p, err := pl.PlanTriangular(TriangularRequest{
		Shape:    tensor.Shape{3, 20, 24},
		Diagonal: -2,
		Upper:    true,
		Elem:     tensor.Float16,
		Strategy: StrategyTiled,
		RowTile:  8,
		ColTile:  8,
	})
	require.NoError(t, err)
	return p
}

func TestBlobRoundTrip(t *testing.T) {
	p := testPlan(t)
	blob, err := Encode(p)
	require.NoError(t, err)
	assert.Len(t, blob, BlobSize(len(p.Inputs)))
	assert.Equal(t, BlobMagic, string(blob[:4]))

	got, err := Decode(blob)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestBlobRoundTripBroadcast(t *testing.T) {
	pl := NewPlanner(Platform{Cores: 4, UBBytes: 1024})
	p, err := pl.PlanElementwise(ElementwiseRequest{
		Inputs:  []tensor.Shape{{1, 1, 1}, {4, 4}, {4, 4}},
		InTypes: []tensor.DataType{tensor.Int32, tensor.Int32, tensor.Int32},
		OutType: tensor.Int32,
		Elem:    tensor.Int32,
	})
	require.NoError(t, err)

	blob, err := Encode(p)
	require.NoError(t, err)
	got, err := Decode(blob)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestBlobCorruption(t *testing.T) {
	blob, err := Encode(testPlan(t))
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func([]byte) []byte
		want   error
	}{
		{"magic", func(b []byte) []byte { b[0] = 'X'; return b }, ErrInvalidMagic},
		{"version", func(b []byte) []byte { b[4] = 9; return b }, ErrUnsupportedVersion},
		{"payload bit", func(b []byte) []byte { b[40] ^= 1; return b }, ErrChecksumMismatch},
		{"checksum bit", func(b []byte) []byte { b[len(b)-1] ^= 0x80; return b }, ErrChecksumMismatch},
		{"truncated", func(b []byte) []byte { return b[:len(b)-1] }, ErrTruncated},
		{"empty", func([]byte) []byte { return nil }, ErrTruncated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := tt.mutate(append([]byte(nil), blob...))
			_, err := Decode(b)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v, want %v", err, tt.want)
		})
	}
}

func TestEncodeRejectsInvalidPlan(t *testing.T) {
	p := testPlan(t)
	p.BlockTail = 0
	_, err := Encode(p)
	assert.True(t, errors.Is(err, ErrInvalidPlan))
}
