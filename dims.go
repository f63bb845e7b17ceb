package ndchunk

import "fmt"

// MaxRank is the maximum number of axes an Array or Dims may carry. Dims
// stores its extents in a fixed MaxRank-sized array in which axes beyond
// the actual rank hold extent 1.
const MaxRank = 8

// Dims is a bounded tuple of per-axis extents, rank in [1, MaxRank]. It is a
// value type: once constructed it never changes, and is cheap to copy.
type Dims struct {
	rank int
	ext  [MaxRank]int
}

// NewDims builds a Dims from the given extents. Every extent must be
// strictly positive and len(ext) must be in [1, MaxRank].
func NewDims(ext ...int) (Dims, error) {
	var d Dims
	if len(ext) < 1 || len(ext) > MaxRank {
		return d, invalidArgf("rank %d out of range [1,%d]", len(ext), MaxRank)
	}
	d.rank = len(ext)
	for i := range d.ext {
		d.ext[i] = 1
	}
	for i, e := range ext {
		if e <= 0 {
			return Dims{}, invalidArgf("extent at axis %d must be positive, got %d", i, e)
		}
		d.ext[i] = e
	}
	return d, nil
}

// Rank returns the number of axes this Dims was constructed with.
func (d Dims) Rank() int { return d.rank }

// Extent returns the extent of axis i. Axes beyond Rank() return 1, so
// algorithms may index any axis in [0, MaxRank) uniformly.
func (d Dims) Extent(i int) int { return d.ext[i] }

// Slice returns the rank-length extent slice.
func (d Dims) Slice() []int {
	out := make([]int, d.rank)
	copy(out, d.ext[:d.rank])
	return out
}

// Product returns the product of all extents (axes beyond Rank() being 1
// does not affect it).
func (d Dims) Product() int {
	p := 1
	for i := 0; i < d.rank; i++ {
		p *= d.ext[i]
	}
	return p
}

// Equal reports whether d and other have the same rank and extents.
func (d Dims) Equal(other Dims) bool {
	if d.rank != other.rank {
		return false
	}
	for i := 0; i < d.rank; i++ {
		if d.ext[i] != other.ext[i] {
			return false
		}
	}
	return true
}

func (d Dims) String() string {
	return fmt.Sprintf("%v", d.Slice())
}
