package board

// HasLineOfSight reports whether an unobstructed sight line exists between
// from and to. The interpolated hexes between the endpoints (endpoints
// excluded) must be free of walls and of LoS-blocking units. Symmetric:
// HasLineOfSight(a,b) == HasLineOfSight(b,a), guaranteed by the shared
// endpoint nudge in Line.
func HasLineOfSight(c *Config, from, to Hex, blockers map[Hex]bool) bool {
	line := Line(from, to)
	if len(line) <= 2 {
		return true
	}
	for _, h := range line[1 : len(line)-1] {
		if c.IsWall(h) || blockers[h] {
			return false
		}
	}
	return true
}
