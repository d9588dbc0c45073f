package protocol

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// EncodeRLE encodes a sequence of palette ids into base64(varint pairs).
// The pairs are (block_id, run_len) repeated.
func EncodeRLE(ids []uint16) string {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	for i := 0; i < len(ids); {
		b := ids[i]
		run := 1
		for j := i + 1; j < len(ids) && ids[j] == b; j++ {
			run++
		}
		n := binary.PutUvarint(tmp[:], uint64(b))
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(run))
		buf.Write(tmp[:n])
		i += run
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func DecodeRLE(b64 string) ([]uint16, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	var out []uint16
	for i := 0; i < len(raw); {
		b, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		if b > 0xFFFF {
			return nil, fmt.Errorf("block id too large: %d", b)
		}
		for k := uint64(0); k < run; k++ {
			out = append(out, uint16(b))
		}
	}
	return out, nil
}

// Grid is the cube of palette ids around Center, stored dy-major, then dz,
// then dx.
type Grid struct {
	Center [3]int
	Radius int
	IDs    []uint16
}

func gridLen(r int) int {
	d := 2*r + 1
	return d * d * d
}

func (g Grid) index(dx, dy, dz int) (int, bool) {
	r := g.Radius
	if dx < -r || dx > r || dy < -r || dy > r || dz < -r || dz > r {
		return 0, false
	}
	d := 2*r + 1
	return (dy+r)*d*d + (dz+r)*d + (dx + r), true
}

// At looks up an absolute position.
func (g Grid) At(p [3]int) (uint16, bool) {
	i, ok := g.index(p[0]-g.Center[0], p[1]-g.Center[1], p[2]-g.Center[2])
	if !ok || i >= len(g.IDs) {
		return 0, false
	}
	return g.IDs[i], true
}

// Each visits every cell with its absolute position.
func (g Grid) Each(fn func(p [3]int, id uint16)) {
	r := g.Radius
	i := 0
	for dy := -r; dy <= r; dy++ {
		for dz := -r; dz <= r; dz++ {
			for dx := -r; dx <= r; dx++ {
				if i >= len(g.IDs) {
					return
				}
				fn([3]int{g.Center[0] + dx, g.Center[1] + dy, g.Center[2] + dz}, g.IDs[i])
				i++
			}
		}
	}
}

// Apply folds one observation into the grid. RLE replaces it outright; DELTA
// patches the previous cube, which must have the same radius.
func (g Grid) Apply(v VoxelsObs) (Grid, error) {
	switch v.Encoding {
	case "RLE", "":
		ids, err := DecodeRLE(v.Data)
		if err != nil {
			return g, err
		}
		if len(ids) != gridLen(v.Radius) {
			return g, fmt.Errorf("voxels: got %d cells for radius %d", len(ids), v.Radius)
		}
		return Grid{Center: v.Center, Radius: v.Radius, IDs: ids}, nil
	case "DELTA":
		if g.IDs == nil || g.Radius != v.Radius {
			return g, fmt.Errorf("voxels: delta without matching base")
		}
		out := Grid{Center: v.Center, Radius: v.Radius, IDs: append([]uint16(nil), g.IDs...)}
		for _, op := range v.Ops {
			i, ok := out.index(op.D[0], op.D[1], op.D[2])
			if !ok {
				return g, fmt.Errorf("voxels: delta op %v outside radius", op.D)
			}
			out.IDs[i] = op.B
		}
		return out, nil
	default:
		return g, fmt.Errorf("voxels: unknown encoding %q", v.Encoding)
	}
}
