package engine

import (
	"fmt"

	"github.com/GregSQT/w40k-engine/internal/board"
)

// ActionKind discriminates ActionRequest.
type ActionKind string

const (
	ActionMove   ActionKind = "move"
	ActionShoot  ActionKind = "shoot"
	ActionCharge ActionKind = "charge"
	ActionFight  ActionKind = "fight"
	ActionPass   ActionKind = "pass"
)

// phaseFor maps an action kind to the only phase it is legal in. Pass is
// legal everywhere.
func phaseFor(k ActionKind) (Phase, bool) {
	switch k {
	case ActionMove:
		return PhaseMove, true
	case ActionShoot:
		return PhaseShoot, true
	case ActionCharge:
		return PhaseCharge, true
	case ActionFight:
		return PhaseFight, true
	default:
		return 0, false
	}
}

// ActionRequest is one externally supplied order: which unit does what, and
// where or to whom. Target is used by move and charge, TargetUnit by shoot,
// charge and fight.
type ActionRequest struct {
	UnitID     int        `json:"unit_id"`
	Kind       ActionKind `json:"kind"`
	Target     board.Hex  `json:"target,omitempty"`
	TargetUnit int        `json:"target_unit,omitempty"`
}

func (r ActionRequest) String() string {
	switch r.Kind {
	case ActionMove:
		return fmt.Sprintf("unit %d move to %s", r.UnitID, r.Target)
	case ActionShoot:
		return fmt.Sprintf("unit %d shoot unit %d", r.UnitID, r.TargetUnit)
	case ActionCharge:
		return fmt.Sprintf("unit %d charge unit %d via %s", r.UnitID, r.TargetUnit, r.Target)
	case ActionFight:
		return fmt.Sprintf("unit %d fight unit %d", r.UnitID, r.TargetUnit)
	default:
		return fmt.Sprintf("unit %d %s", r.UnitID, r.Kind)
	}
}

// ActionResult is the structured transition emitted for every processed
// request, accepted or rejected. It carries enough to rebuild the full
// trajectory offline: verdict, deltas, reward, terminal flag and the
// post-step state hash.
type ActionResult struct {
	Step   int    `json:"step"`
	Turn   int    `json:"turn"`
	Phase  string `json:"phase"`
	Player int    `json:"player"`

	Request ActionRequest `json:"request"`
	Legal   bool          `json:"legal"`
	Reason  Reason        `json:"reason,omitempty"`

	From *board.Hex   `json:"from,omitempty"` // set for accepted move/charge
	To   *board.Hex   `json:"to,omitempty"`
	Shot *ShotOutcome `json:"shot,omitempty"` // set for accepted shoot/fight

	Reward    float64 `json:"reward"`
	Terminal  bool    `json:"terminal"`
	Winner    int     `json:"winner"` // 0/1, -1 when undecided or drawn
	StateHash uint64  `json:"state_hash"`
}
