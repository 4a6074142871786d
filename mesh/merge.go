package mesh

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// Merge concatenates parts into one mesh. Positions and line vertices are
// appended in order; every index of a part is shifted by the number of
// positions that precede the part. Nil parts are skipped.
func Merge(parts ...*Mesh) (*Mesh, error) {
	var nPos, nIdx, nLines int
	for i, p := range parts {
		if p == nil {
			continue
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("part %d: %w", i, err)
		}
		nPos += len(p.Positions)
		nIdx += len(p.Indices)
		nLines += len(p.Lines)
	}
	if uint64(nPos) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d positions do not fit 32-bit indices", ErrMergeSizeMismatch, nPos)
	}

	out := &Mesh{}
	if nPos > 0 {
		out.Positions = make([]r3.Vector, 0, nPos)
	}
	if nIdx > 0 {
		out.Indices = make([]uint32, 0, nIdx)
	}
	if nLines > 0 {
		out.Lines = make([]r3.Vector, 0, nLines)
	}
	for _, p := range parts {
		if p == nil {
			continue
		}
		offset := uint32(len(out.Positions))
		out.Positions = append(out.Positions, p.Positions...)
		for _, idx := range p.Indices {
			out.Indices = append(out.Indices, idx+offset)
		}
		out.Lines = append(out.Lines, p.Lines...)
	}

	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}
