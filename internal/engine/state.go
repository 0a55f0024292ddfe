// Package engine is the deterministic tactical rules engine: game state,
// shooting and fight resolution, and the Move/Shoot/Charge/Fight turn-phase
// state machine behind the reset/step/observe API. All legality questions
// are delegated to internal/board so the live step path and the offline
// replay verifier share one implementation.
package engine

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sort"
	"strings"

	"github.com/GregSQT/w40k-engine/internal/board"
	"github.com/GregSQT/w40k-engine/internal/models"
)

// Phase is one of the four action phases of a player turn.
type Phase int

const (
	PhaseMove Phase = iota
	PhaseShoot
	PhaseCharge
	PhaseFight
)

func (p Phase) String() string {
	switch p {
	case PhaseMove:
		return "move"
	case PhaseShoot:
		return "shoot"
	case PhaseCharge:
		return "charge"
	case PhaseFight:
		return "fight"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Unit is one multi-model squad sharing a tactical identity. A unit whose
// HP hits zero is dead: it leaves occupancy and targeting immediately and is
// never revived.
type Unit struct {
	ID      int                `json:"id"`
	Player  int                `json:"player"` // 0 or 1
	Pos     board.Hex          `json:"pos"`
	HP      int                `json:"hp"`
	MaxHP   int                `json:"max_hp"`
	Profile models.UnitProfile `json:"profile"`
}

// Alive reports whether the unit is still in play.
func (u *Unit) Alive() bool { return u.HP > 0 }

// ModelsLeft estimates surviving models from the remaining HP pool; the
// cohesion rule keeps them one tactical identity regardless.
func (u *Unit) ModelsLeft() int {
	if u.HP <= 0 || u.Profile.W <= 0 {
		return 0
	}
	return (u.HP + u.Profile.W - 1) / u.Profile.W
}

// GameState is the mutable world of one episode: positions, wounds, phase
// and turn counters. It is owned exclusively by the Env that created it;
// parallel episodes each build their own.
type GameState struct {
	Board        *board.Config
	Units        []*Unit
	Turn         int
	Phase        Phase
	ActingPlayer int

	acted map[int]bool // unit IDs that acted in the current phase
	rng   *rand.Rand
	seed  int64
	steps int
}

// NewGameState wires up an episode state from validated placements. Callers
// go through engine.Reset; this is split out for tests.
func NewGameState(b *board.Config, units []*Unit, seed int64) *GameState {
	return &GameState{
		Board:        b,
		Units:        units,
		Turn:         1,
		Phase:        PhaseMove,
		ActingPlayer: 0,
		acted:        make(map[int]bool),
		rng:          rand.New(rand.NewSource(seed)),
		seed:         seed,
	}
}

// Seed returns the episode RNG seed, recorded so replays can reproduce
// every dice roll.
func (gs *GameState) Seed() int64 { return gs.seed }

// Acted reports whether the unit has already acted in the current phase.
func (gs *GameState) Acted(id int) bool { return gs.acted[id] }

// Steps returns the number of accepted or rejected actions processed.
func (gs *GameState) Steps() int { return gs.steps }

// UnitByID returns the unit or an error; there is deliberately no default.
func (gs *GameState) UnitByID(id int) (*Unit, error) {
	for _, u := range gs.Units {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, fmt.Errorf("unit %d not found", id)
}

// LiveUnits returns the living units of one player.
func (gs *GameState) LiveUnits(player int) []*Unit {
	var out []*Unit
	for _, u := range gs.Units {
		if u.Player == player && u.Alive() {
			out = append(out, u)
		}
	}
	return out
}

// Occupied returns the positions of all living units except excludeID.
// The mover's own hex never blocks its own path.
func (gs *GameState) Occupied(excludeID int) map[board.Hex]bool {
	out := make(map[board.Hex]bool)
	for _, u := range gs.Units {
		if u.Alive() && u.ID != excludeID {
			out[u.Pos] = true
		}
	}
	return out
}

// EnemyAdjacency returns the hexes adjacent to any living enemy of player.
func (gs *GameState) EnemyAdjacency(player int) map[board.Hex]bool {
	var positions []board.Hex
	for _, u := range gs.Units {
		if u.Alive() && u.Player != player {
			positions = append(positions, u.Pos)
		}
	}
	return board.AdjacencySet(gs.Board, positions)
}

// LoSBlockers returns positions of living units whose silhouette interrupts
// sight lines, excluding the shooter and the target themselves.
func (gs *GameState) LoSBlockers(shooterID, targetID int) map[board.Hex]bool {
	out := make(map[board.Hex]bool)
	for _, u := range gs.Units {
		if u.Alive() && u.Profile.BlocksLoS && u.ID != shooterID && u.ID != targetID {
			out[u.Pos] = true
		}
	}
	return out
}

// CheckInvariants verifies the structural game-state rules: unique live
// occupancy, in-bounds non-wall positions, non-negative HP. A violation is
// an engine bug, never a player mistake.
func (gs *GameState) CheckInvariants() error {
	seen := make(map[board.Hex]int)
	for _, u := range gs.Units {
		if u.HP < 0 {
			return &InvariantError{
				Msg:  fmt.Sprintf("unit %d has negative HP %d", u.ID, u.HP),
				Dump: gs.Dump(),
			}
		}
		if !u.Alive() {
			continue
		}
		if !gs.Board.InBounds(u.Pos) {
			return &InvariantError{
				Msg:  fmt.Sprintf("unit %d at %s is off the board", u.ID, u.Pos),
				Dump: gs.Dump(),
			}
		}
		if gs.Board.IsWall(u.Pos) {
			return &InvariantError{
				Msg:  fmt.Sprintf("unit %d at %s is inside a wall", u.ID, u.Pos),
				Dump: gs.Dump(),
			}
		}
		if other, dup := seen[u.Pos]; dup {
			return &InvariantError{
				Msg:  fmt.Sprintf("units %d and %d both occupy %s", other, u.ID, u.Pos),
				Dump: gs.Dump(),
			}
		}
		seen[u.Pos] = u.ID
	}
	return nil
}

// Dump renders the full state for invariant diagnostics.
func (gs *GameState) Dump() string {
	var b strings.Builder
	fmt.Fprintf(&b, "turn=%d phase=%s acting=%d steps=%d seed=%d\n",
		gs.Turn, gs.Phase, gs.ActingPlayer, gs.steps, gs.seed)
	for _, u := range gs.Units {
		fmt.Fprintf(&b, "  unit %d p%d %s hp=%d/%d acted=%v %s\n",
			u.ID, u.Player, u.Pos, u.HP, u.MaxHP, gs.acted[u.ID], u.Profile.Name)
	}
	return b.String()
}

// Hash folds the tactically relevant state into a 64-bit fingerprint.
// Recorded per step and re-derived during replay to pin down divergence.
func (gs *GameState) Hash() uint64 {
	h := fnv.New64a()
	binary.Write(h, binary.LittleEndian, int64(gs.Turn))
	binary.Write(h, binary.LittleEndian, int64(gs.Phase))
	binary.Write(h, binary.LittleEndian, int64(gs.ActingPlayer))
	ids := make([]int, 0, len(gs.Units))
	for _, u := range gs.Units {
		ids = append(ids, u.ID)
	}
	sort.Ints(ids)
	for _, id := range ids {
		u, _ := gs.UnitByID(id)
		binary.Write(h, binary.LittleEndian, int64(u.ID))
		binary.Write(h, binary.LittleEndian, int64(u.Player))
		binary.Write(h, binary.LittleEndian, int64(u.Pos.Col))
		binary.Write(h, binary.LittleEndian, int64(u.Pos.Row))
		binary.Write(h, binary.LittleEndian, int64(u.HP))
	}
	return h.Sum64()
}

// Observe flattens the state into a fixed-width numeric vector for the
// learning-agent adapter: a 3-value header (turn, phase, acting player)
// followed by 6 values per unit in ID order (player, col, row, hp, max hp,
// alive flag). The vector is built atomically between steps, so no partial
// mutation is ever visible.
func (gs *GameState) Observe() []float64 {
	ids := make([]int, 0, len(gs.Units))
	for _, u := range gs.Units {
		ids = append(ids, u.ID)
	}
	sort.Ints(ids)

	out := make([]float64, 0, 3+6*len(ids))
	out = append(out, float64(gs.Turn), float64(gs.Phase), float64(gs.ActingPlayer))
	for _, id := range ids {
		u, _ := gs.UnitByID(id)
		alive := 0.0
		if u.Alive() {
			alive = 1.0
		}
		out = append(out,
			float64(u.Player),
			float64(u.Pos.Col),
			float64(u.Pos.Row),
			float64(u.HP),
			float64(u.MaxHP),
			alive,
		)
	}
	return out
}
