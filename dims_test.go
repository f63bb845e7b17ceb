package ndchunk

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewDims(t *testing.T) {
	tests := []struct {
		name    string
		ext     []int
		wantErr bool
	}{
		{"rank 1", []int{5}, false},
		{"rank 8 max", []int{1, 2, 3, 4, 5, 6, 7, 8}, false},
		{"rank 0 rejected", nil, true},
		{"rank 9 rejected", []int{1, 1, 1, 1, 1, 1, 1, 1, 1}, true},
		{"zero extent rejected", []int{3, 0, 2}, true},
		{"negative extent rejected", []int{3, -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewDims(tt.ext...)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, len(tt.ext), d.Rank())
			require.Equal(t, tt.ext, d.Slice())
		})
	}
}

func TestDimsExtentBeyondRank(t *testing.T) {
	d, err := NewDims(3, 4)
	require.NoError(t, err)
	require.Equal(t, 1, d.Extent(5))
}

func TestDimsProduct(t *testing.T) {
	d, err := NewDims(4, 3, 3)
	require.NoError(t, err)
	require.Equal(t, 36, d.Product())
}

func TestDimsEqual(t *testing.T) {
	a, _ := NewDims(2, 3)
	b, _ := NewDims(2, 3)
	c, _ := NewDims(3, 2)
	d, _ := NewDims(2, 3, 1)
	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
	require.False(t, a.Equal(d))
}

func TestDimsString(t *testing.T) {
	d, _ := NewDims(2, 3)
	require.Equal(t, "[2 3]", d.String())
}
