package engine

import "fmt"

// Reason is the machine-readable code attached to a rejected action. The
// replay verifier compares these codes byte for byte, so they are part of
// the engine's public contract.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonEpisodeOver       Reason = "episode_over"
	ReasonUnknownUnit       Reason = "unknown_unit"
	ReasonDeadUnit          Reason = "dead_unit"
	ReasonNotYourTurn       Reason = "not_your_turn"
	ReasonWrongPhase        Reason = "wrong_phase"
	ReasonAlreadyActed      Reason = "already_acted"
	ReasonOutOfBounds       Reason = "out_of_bounds"
	ReasonWallHex           Reason = "wall_hex"
	ReasonOccupied          Reason = "destination_occupied"
	ReasonUnreachable       Reason = "unreachable"
	ReasonEndsAdjacent      Reason = "ends_adjacent_to_enemy"
	ReasonNotAdjacent       Reason = "not_adjacent"
	ReasonNoTarget          Reason = "no_target"
	ReasonFriendlyTarget    Reason = "friendly_target"
	ReasonOutOfRange        Reason = "out_of_range"
	ReasonNoLineOfSight     Reason = "no_line_of_sight"
	ReasonChargeNotAdjacent Reason = "charge_not_adjacent_to_target"
	ReasonNoWeapon          Reason = "no_weapon"
)

// IllegalActionError is the recoverable rejection: the episode continues and
// the state is untouched.
type IllegalActionError struct {
	Reason Reason
	Detail string
}

func (e *IllegalActionError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("illegal action: %s", e.Reason)
	}
	return fmt.Sprintf("illegal action: %s (%s)", e.Reason, e.Detail)
}

func illegal(r Reason, format string, args ...any) *IllegalActionError {
	return &IllegalActionError{Reason: r, Detail: fmt.Sprintf(format, args...)}
}

// InvariantError is fatal: the engine found an impossible state (duplicate
// occupancy, negative HP, off-board unit). Historically this class of bug
// showed up as silent engine/validator divergence, so it halts the episode
// with a full state dump instead of being absorbed.
type InvariantError struct {
	Msg  string
	Dump string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violation: %s\n%s", e.Msg, e.Dump)
}
