package scenario

import (
	"fmt"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/GregSQT/w40k-engine/internal/board"
	"github.com/GregSQT/w40k-engine/internal/models"
)

// GenerateOptions tunes the random scenario generator.
type GenerateOptions struct {
	Cols         int
	Rows         int
	Seed         int64
	WallScale    float64 // noise frequency; higher = smaller wall clusters
	WallCutoff   float64 // noise threshold above which a hex becomes a wall
	UnitsPerSide int
}

// DefaultGenerateOptions mirrors the board size used by the training
// scenarios.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		Cols:         25,
		Rows:         21,
		Seed:         1,
		WallScale:    0.18,
		WallCutoff:   0.55,
		UnitsPerSide: 3,
	}
}

// Generate builds a valid random scenario: noise-clustered walls in the
// middle of the board, mirrored deployment columns kept clear, and a small
// stock armory. The result always passes Validate.
func Generate(opt GenerateOptions) (*Scenario, error) {
	if opt.Cols <= 4 || opt.Rows <= 2 {
		return nil, cfgErr("generate: board %dx%d too small", opt.Cols, opt.Rows)
	}
	if opt.UnitsPerSide <= 0 || opt.UnitsPerSide > opt.Rows/2 {
		return nil, cfgErr("generate: %d units per side does not fit %d rows", opt.UnitsPerSide, opt.Rows)
	}

	noise := opensimplex.New(opt.Seed)
	var walls []board.Hex
	// Keep two clear columns on each edge as deployment zones.
	for col := 2; col < opt.Cols-2; col++ {
		for row := 0; row < opt.Rows; row++ {
			v := noise.Eval2(float64(col)*opt.WallScale, float64(row)*opt.WallScale)
			if v > opt.WallCutoff {
				walls = append(walls, board.Hex{Col: col, Row: row})
			}
		}
	}

	s := &Scenario{
		Name:     fmt.Sprintf("generated-%dx%d-seed%d", opt.Cols, opt.Rows, opt.Seed),
		Board:    BoardSpec{Cols: opt.Cols, Rows: opt.Rows, Walls: walls},
		Seed:     opt.Seed,
		MaxTurns: DefaultMaxTurns,
		Weapons:  StockWeapons(),
		Profiles: StockProfiles(),
	}

	// Mirrored deployment: player 0 on the left edge, player 1 on the right.
	gap := opt.Rows / opt.UnitsPerSide
	for i := 0; i < opt.UnitsPerSide; i++ {
		row := gap/2 + i*gap
		profile := "intercessors"
		if i == opt.UnitsPerSide-1 {
			profile = "terminators"
		}
		s.Units = append(s.Units,
			Placement{Player: 0, Col: 0, Row: row, Profile: profile},
			Placement{Player: 1, Col: opt.Cols - 1, Row: row, Profile: profile},
		)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// StockWeapons is the small built-in armory used by generated scenarios and
// tests.
func StockWeapons() map[string]models.WeaponProfile {
	return map[string]models.WeaponProfile{
		"bolt_rifle": {
			Range: 12, Attacks: "2", Skill: 3, Strength: 4, AP: -1, Damage: "1",
		},
		"plasma_incinerator": {
			Range: 12, Attacks: "1", Skill: 3, Strength: 7, AP: -2, Damage: "2",
		},
		"storm_bolter": {
			Range: 10, Attacks: "2", Skill: 3, Strength: 4, AP: 0, Damage: "1",
			TwinLinked: true,
		},
		"flamer": {
			Range: 6, Attacks: "D6", Skill: 3, Strength: 4, AP: 0, Damage: "1",
			Torrent: true,
		},
		"close_combat": {
			Range: 0, Attacks: "3", Skill: 3, Strength: 4, AP: 0, Damage: "1",
		},
		"power_fist": {
			Range: 0, Attacks: "2", Skill: 3, Strength: 8, AP: -2, Damage: "2",
		},
	}
}

// StockProfiles matches StockWeapons.
func StockProfiles() map[string]ProfileSpec {
	return map[string]ProfileSpec{
		"intercessors": {
			T: 4, W: 2, Sv: 3, Models: 5, Move: 6, Charge: 7,
			Ranged: "bolt_rifle", Melee: "close_combat",
		},
		"terminators": {
			T: 5, W: 3, Sv: 2, InvSv: 4, Models: 5, Move: 5, Charge: 6,
			Ranged: "storm_bolter", Melee: "power_fist",
		},
	}
}
