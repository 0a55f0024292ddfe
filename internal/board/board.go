package board

import "fmt"

// Config is the immutable grid geometry: dimensions plus the static wall
// layout. Built once at scenario load, read-only afterwards.
type Config struct {
	cols  int
	rows  int
	walls map[Hex]bool
}

// NewConfig validates dimensions and the wall set. Walls outside the board
// are a configuration error, not something to silently clip.
func NewConfig(cols, rows int, walls []Hex) (*Config, error) {
	if cols <= 0 || rows <= 0 {
		return nil, fmt.Errorf("board dimensions must be positive, got %dx%d", cols, rows)
	}
	c := &Config{cols: cols, rows: rows, walls: make(map[Hex]bool, len(walls))}
	for _, w := range walls {
		if !c.InBounds(w) {
			return nil, fmt.Errorf("wall %s outside %dx%d board", w, cols, rows)
		}
		c.walls[w] = true
	}
	return c, nil
}

func (c *Config) Cols() int { return c.cols }
func (c *Config) Rows() int { return c.rows }

// InBounds reports whether h lies on the board.
func (c *Config) InBounds(h Hex) bool {
	return h.Col >= 0 && h.Col < c.cols && h.Row >= 0 && h.Row < c.rows
}

// IsWall reports whether h is a wall cell.
func (c *Config) IsWall(h Hex) bool {
	return c.walls[h]
}

// NumWalls returns the wall count.
func (c *Config) NumWalls() int { return len(c.walls) }

// Walls returns a copy of the wall set.
func (c *Config) Walls() []Hex {
	out := make([]Hex, 0, len(c.walls))
	for w := range c.walls {
		out = append(out, w)
	}
	return out
}
