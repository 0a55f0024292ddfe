// Package board provides the hex grid: coordinates, geometry, reachability
// and line of sight. Hexes are addressed by (column, row) in an odd-q offset
// layout; cube coordinates are an internal detail of the geometry functions.
//
// Everything in this package is a pure function of its inputs. The live
// engine and the offline replay verifier both call these functions, so a
// single implementation decides every movement and visibility question.
package board

import "fmt"

// Hex is one cell of the grid. Value semantics: compare and hash by value.
type Hex struct {
	Col int `json:"col" yaml:"col"`
	Row int `json:"row" yaml:"row"`
}

func (h Hex) String() string {
	return fmt.Sprintf("(%d,%d)", h.Col, h.Row)
}

// cube converts odd-q offset coordinates to cube coordinates.
func cube(h Hex) (x, y, z int) {
	x = h.Col
	z = h.Row - (h.Col-(h.Col&1))/2
	y = -x - z
	return
}

// fromCube converts cube coordinates back to odd-q offset.
func fromCube(x, _, z int) Hex {
	return Hex{Col: x, Row: z + (x-(x&1))/2}
}

// cubeDirections are the six unit steps in cube space.
var cubeDirections = [6][3]int{
	{1, -1, 0}, {1, 0, -1}, {0, 1, -1},
	{-1, 1, 0}, {-1, 0, 1}, {0, -1, 1},
}

// Neighbors returns the six adjacent hexes, without bounds filtering.
func Neighbors(h Hex) [6]Hex {
	x, y, z := cube(h)
	var out [6]Hex
	for i, d := range cubeDirections {
		out[i] = fromCube(x+d[0], y+d[1], z+d[2])
	}
	return out
}

// Distance returns the hex distance between a and b: the max of the
// absolute cube coordinate differences.
func Distance(a, b Hex) int {
	ax, ay, az := cube(a)
	bx, by, bz := cube(b)
	dx, dy, dz := abs(ax-bx), abs(ay-by), abs(az-bz)
	m := dx
	if dy > m {
		m = dy
	}
	if dz > m {
		m = dz
	}
	return m
}

// Adjacent reports whether a and b are distinct touching hexes.
func Adjacent(a, b Hex) bool {
	return Distance(a, b) == 1
}

// lineEpsilon nudges line endpoints off hex edges so that samples falling
// exactly between two hexes round the same way every time. The same nudge is
// applied to both endpoints, so Line(a,b) and Line(b,a) visit the same hex
// set and LoS stays symmetric.
const lineEpsilon = 1e-6

// Line returns the hexes on the straight line from a to b, endpoints
// included, sampled once per hex of distance.
func Line(a, b Hex) []Hex {
	n := Distance(a, b)
	if n == 0 {
		return []Hex{a}
	}
	ax, ay, az := cube(a)
	bx, by, bz := cube(b)
	afx := float64(ax) + lineEpsilon
	afy := float64(ay) + 2*lineEpsilon
	afz := float64(az) - 3*lineEpsilon
	bfx := float64(bx) + lineEpsilon
	bfy := float64(by) + 2*lineEpsilon
	bfz := float64(bz) - 3*lineEpsilon

	out := make([]Hex, 0, n+1)
	for i := 0; i <= n; i++ {
		t := float64(i) / float64(n)
		out = append(out, cubeRound(
			afx+(bfx-afx)*t,
			afy+(bfy-afy)*t,
			afz+(bfz-afz)*t,
		))
	}
	return out
}

// cubeRound rounds fractional cube coordinates to the nearest hex,
// re-deriving the component with the largest rounding error so the three
// coordinates still sum to zero.
func cubeRound(fx, fy, fz float64) Hex {
	rx, ry, rz := round(fx), round(fy), round(fz)
	dx, dy, dz := absf(float64(rx)-fx), absf(float64(ry)-fy), absf(float64(rz)-fz)
	switch {
	case dx > dy && dx > dz:
		rx = -ry - rz
	case dy > dz:
		ry = -rx - rz
	default:
		rz = -rx - ry
	}
	return fromCube(rx, ry, rz)
}

func round(f float64) int {
	if f < 0 {
		return int(f - 0.5)
	}
	return int(f + 0.5)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func absf(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
