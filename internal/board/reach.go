package board

// Reachability is a breadth-first search over the six-neighbor graph. A
// neighbor is pruned, in this order, when it is already visited, out of
// bounds, a wall, occupied, or adjacent to an enemy. Occupancy and enemy
// adjacency are waived for a hex that is only ever a destination: such a hex
// gets a distance but is never expanded through. The "cannot end adjacent to
// an enemy" rule is NOT applied here; it is a terminal constraint the state
// machine checks after a path exists. Keeping that split fixed is what lets
// the live engine and the replay verifier agree on every move.

// Unreachable is returned by ShortestDistance when no legal path exists
// within the range budget.
const Unreachable = -1

// distances runs the bounded BFS and returns hop counts for every hex that
// can legally terminate a path of at most maxRange steps from start.
func distances(c *Config, start Hex, maxRange int, occupied, enemyAdjacent map[Hex]bool) map[Hex]int {
	dist := map[Hex]int{start: 0}
	frontier := []Hex{start}
	for hop := 1; hop <= maxRange && len(frontier) > 0; hop++ {
		var next []Hex
		for _, cur := range frontier {
			for _, nb := range Neighbors(cur) {
				if _, seen := dist[nb]; seen {
					continue
				}
				if !c.InBounds(nb) {
					continue
				}
				if c.IsWall(nb) {
					continue
				}
				dist[nb] = hop
				// Occupied or enemy-adjacent hexes can end a path but
				// never continue one.
				if occupied[nb] || enemyAdjacent[nb] {
					continue
				}
				next = append(next, nb)
			}
		}
		frontier = next
	}
	return dist
}

// Reachable reports whether end can be reached from start within moveRange
// hops through legal intermediate hexes.
func Reachable(c *Config, start, end Hex, moveRange int, occupied, enemyAdjacent map[Hex]bool) bool {
	return ShortestDistance(c, start, end, moveRange, occupied, enemyAdjacent) != Unreachable
}

// ShortestDistance returns the BFS path length from start to end, or
// Unreachable. Walls and bounds always block; occupancy and enemy adjacency
// block intermediates only.
func ShortestDistance(c *Config, start, end Hex, moveRange int, occupied, enemyAdjacent map[Hex]bool) int {
	if !c.InBounds(start) || !c.InBounds(end) {
		return Unreachable
	}
	if c.IsWall(end) {
		return Unreachable
	}
	d, ok := distances(c, start, moveRange, occupied, enemyAdjacent)[end]
	if !ok {
		return Unreachable
	}
	return d
}

// ReachableSet returns every hex with a legal path of at most moveRange hops
// from start, mapped to its hop count. Used for move enumeration and
// observation masks; verdicts are identical to per-hex ShortestDistance
// calls because both run the same BFS.
func ReachableSet(c *Config, start Hex, moveRange int, occupied, enemyAdjacent map[Hex]bool) map[Hex]int {
	return distances(c, start, moveRange, occupied, enemyAdjacent)
}

// AdjacencySet returns every in-bounds hex adjacent to any of the given
// positions. Feed enemy unit positions in to build the enemy-adjacency
// constraint for reachability.
func AdjacencySet(c *Config, positions []Hex) map[Hex]bool {
	out := make(map[Hex]bool)
	for _, p := range positions {
		for _, nb := range Neighbors(p) {
			if c.InBounds(nb) {
				out[nb] = true
			}
		}
	}
	return out
}
