package engine

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/GregSQT/w40k-engine/internal/board"
	"github.com/GregSQT/w40k-engine/internal/scenario"
)

// RewardConfig shapes the scalar emitted with every transition. Rewards are
// always from the acting player's perspective.
type RewardConfig struct {
	PerDamage float64 `json:"per_damage"`
	Kill      float64 `json:"kill"`
	Win       float64 `json:"win"`
	Lose      float64 `json:"lose"`
	Illegal   float64 `json:"illegal"`
}

// DefaultRewards is the shaping used by the training harness.
func DefaultRewards() RewardConfig {
	return RewardConfig{
		PerDamage: 0.05,
		Kill:      0.5,
		Win:       1.0,
		Lose:      -1.0,
		Illegal:   -0.1,
	}
}

// NoWinner marks an undecided or drawn episode.
const NoWinner = -1

// Env is one episode: a GameState plus the turn-phase state machine driving
// it. Exactly one ActionRequest is processed to completion at a time; a step
// either fully applies or is fully rejected. Parallel training workers each
// hold their own Env.
type Env struct {
	state    *GameState
	rewards  RewardConfig
	maxTurns int
	done     bool
	winner   int
	halted   bool
	log      zerolog.Logger
}

// Reset builds a fresh episode from a validated scenario. A zero scenario
// seed gets replaced by the clock; the effective seed is recorded on the
// state so replays stay exact either way.
func Reset(sc *scenario.Scenario, log zerolog.Logger) (*Env, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	b, err := sc.BuildBoard()
	if err != nil {
		return nil, err
	}

	units := make([]*Unit, 0, len(sc.Units))
	for i, pl := range sc.Units {
		profile, err := sc.ResolveProfile(pl.Profile)
		if err != nil {
			return nil, err
		}
		units = append(units, &Unit{
			ID:      i,
			Player:  pl.Player,
			Pos:     board.Hex{Col: pl.Col, Row: pl.Row},
			HP:      profile.TotalWounds(),
			MaxHP:   profile.TotalWounds(),
			Profile: profile,
		})
	}

	seed := sc.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	maxTurns := sc.MaxTurns
	if maxTurns <= 0 {
		maxTurns = scenario.DefaultMaxTurns
	}

	env := &Env{
		state:    NewGameState(b, units, seed),
		rewards:  DefaultRewards(),
		maxTurns: maxTurns,
		winner:   NoWinner,
		log:      log,
	}
	if err := env.state.CheckInvariants(); err != nil {
		return nil, err
	}
	env.log.Info().
		Str("scenario", sc.Name).
		Int64("seed", seed).
		Int("units", len(units)).
		Msg("episode reset")
	return env, nil
}

// State exposes the game state for read-only inspection (snapshots, hashes,
// server views). Mutation stays inside Step.
func (e *Env) State() *GameState { return e.state }

// Observe returns the flattened numeric snapshot.
func (e *Env) Observe() []float64 { return e.state.Observe() }

// Done reports whether the episode is over.
func (e *Env) Done() bool { return e.done }

// Winner returns 0 or 1 once decided, NoWinner otherwise.
func (e *Env) Winner() int { return e.winner }

// SetRewards overrides the reward shaping before training starts.
func (e *Env) SetRewards(rc RewardConfig) { e.rewards = rc }

// Step processes one ActionRequest to completion. Illegal actions are
// reported in the result and leave the state untouched; only an
// InvariantError (an engine bug, not a player mistake) comes back as a Go
// error and halts the episode.
func (e *Env) Step(req ActionRequest) (ActionResult, error) {
	if e.halted {
		return ActionResult{}, fmt.Errorf("episode halted by invariant violation")
	}
	if err := e.state.CheckInvariants(); err != nil {
		e.halted = true
		return ActionResult{}, err
	}

	gs := e.state
	gs.steps++
	res := ActionResult{
		Step:    gs.steps,
		Turn:    gs.Turn,
		Phase:   gs.Phase.String(),
		Player:  gs.ActingPlayer,
		Request: req,
		Winner:  e.winner,
	}

	if e.done {
		return e.reject(res, illegal(ReasonEpisodeOver, "episode already terminal")), nil
	}

	unit, ierr := e.validate(req)
	if ierr == nil {
		ierr = e.apply(unit, req, &res)
	}
	if ierr != nil {
		return e.reject(res, ierr), nil
	}

	gs.acted[unit.ID] = true
	e.advance()
	e.settle(&res)

	if err := gs.CheckInvariants(); err != nil {
		e.halted = true
		return ActionResult{}, err
	}

	res.Legal = true
	res.Terminal = e.done
	res.Winner = e.winner
	res.StateHash = gs.Hash()
	e.log.Debug().
		Int("step", res.Step).
		Str("action", req.String()).
		Str("phase", res.Phase).
		Float64("reward", res.Reward).
		Bool("terminal", res.Terminal).
		Msg("step accepted")
	return res, nil
}

// reject finalizes a rejected action: reason code, illegal-action reward,
// no state change beyond the step counter.
func (e *Env) reject(res ActionResult, ierr *IllegalActionError) ActionResult {
	res.Legal = false
	res.Reason = ierr.Reason
	res.Reward = e.rewards.Illegal
	res.Terminal = e.done
	res.StateHash = e.state.Hash()
	e.log.Debug().
		Int("step", res.Step).
		Str("action", res.Request.String()).
		Str("reason", string(ierr.Reason)).
		Str("detail", ierr.Detail).
		Msg("step rejected")
	return res
}

// validate applies the phase-machine gates common to every action kind.
func (e *Env) validate(req ActionRequest) (*Unit, *IllegalActionError) {
	gs := e.state
	unit, err := gs.UnitByID(req.UnitID)
	if err != nil {
		return nil, illegal(ReasonUnknownUnit, "unit %d", req.UnitID)
	}
	if !unit.Alive() {
		return nil, illegal(ReasonDeadUnit, "unit %d is destroyed", unit.ID)
	}
	if unit.Player != gs.ActingPlayer {
		return nil, illegal(ReasonNotYourTurn, "unit %d belongs to player %d, acting player is %d",
			unit.ID, unit.Player, gs.ActingPlayer)
	}
	if gs.acted[unit.ID] {
		return nil, illegal(ReasonAlreadyActed, "unit %d already acted in the %s phase", unit.ID, gs.Phase)
	}
	if req.Kind != ActionPass {
		phase, ok := phaseFor(req.Kind)
		if !ok {
			return nil, illegal(ReasonWrongPhase, "unknown action kind %q", req.Kind)
		}
		if phase != gs.Phase {
			return nil, illegal(ReasonWrongPhase, "%s action during %s phase", req.Kind, gs.Phase)
		}
	}
	return unit, nil
}

// apply runs the kind-specific legality checks and mutation.
func (e *Env) apply(unit *Unit, req ActionRequest, res *ActionResult) *IllegalActionError {
	switch req.Kind {
	case ActionPass:
		return nil
	case ActionMove:
		return e.applyMove(unit, req.Target, res)
	case ActionShoot:
		return e.applyShoot(unit, req.TargetUnit, res)
	case ActionCharge:
		return e.applyCharge(unit, req.TargetUnit, req.Target, res)
	case ActionFight:
		return e.applyFight(unit, req.TargetUnit, res)
	default:
		return illegal(ReasonWrongPhase, "unknown action kind %q", req.Kind)
	}
}

// applyMove validates a normal move. Reachability comes from the shared BFS;
// the "cannot end adjacent to an enemy" rule is checked here, after a path
// is found, per the terminal-gate interpretation.
func (e *Env) applyMove(unit *Unit, target board.Hex, res *ActionResult) *IllegalActionError {
	gs := e.state
	if !gs.Board.InBounds(target) {
		return illegal(ReasonOutOfBounds, "%s", target)
	}
	if gs.Board.IsWall(target) {
		return illegal(ReasonWallHex, "%s", target)
	}
	occupied := gs.Occupied(unit.ID)
	if occupied[target] {
		return illegal(ReasonOccupied, "%s", target)
	}
	enemyAdj := gs.EnemyAdjacency(unit.Player)
	if !board.Reachable(gs.Board, unit.Pos, target, unit.Profile.Move, occupied, enemyAdj) {
		return illegal(ReasonUnreachable, "%s -> %s within %d", unit.Pos, target, unit.Profile.Move)
	}
	if enemyAdj[target] {
		return illegal(ReasonEndsAdjacent, "%s is adjacent to an enemy unit", target)
	}
	from := unit.Pos
	unit.Pos = target
	res.From, res.To = &from, &target
	return nil
}

// applyShoot validates range and line of sight, then resolves the volley.
func (e *Env) applyShoot(unit *Unit, targetID int, res *ActionResult) *IllegalActionError {
	gs := e.state
	target, ierr := e.enemyTarget(unit, targetID)
	if ierr != nil {
		return ierr
	}
	weapon := unit.Profile.Ranged
	if weapon.Attacks == "" || weapon.Range <= 0 {
		return illegal(ReasonNoWeapon, "unit %d has no ranged weapon", unit.ID)
	}
	if dist := board.Distance(unit.Pos, target.Pos); dist > weapon.Range {
		return illegal(ReasonOutOfRange, "distance %d exceeds range %d", dist, weapon.Range)
	}
	blockers := gs.LoSBlockers(unit.ID, target.ID)
	if !board.HasLineOfSight(gs.Board, unit.Pos, target.Pos, blockers) {
		return illegal(ReasonNoLineOfSight, "%s -> %s", unit.Pos, target.Pos)
	}
	shot := resolveAttack(gs.rng, target, weapon)
	res.Shot = &shot
	res.Reward += float64(shot.Damage) * e.rewards.PerDamage
	if shot.Killed {
		res.Reward += e.rewards.Kill
	}
	return nil
}

// applyCharge moves the unit into base contact with a nominated enemy. The
// destination must be adjacent to that enemy; the adjacency waiver of the
// shared BFS is exactly what makes the destination legal here.
func (e *Env) applyCharge(unit *Unit, targetID int, dest board.Hex, res *ActionResult) *IllegalActionError {
	gs := e.state
	target, ierr := e.enemyTarget(unit, targetID)
	if ierr != nil {
		return ierr
	}
	if !gs.Board.InBounds(dest) {
		return illegal(ReasonOutOfBounds, "%s", dest)
	}
	if gs.Board.IsWall(dest) {
		return illegal(ReasonWallHex, "%s", dest)
	}
	occupied := gs.Occupied(unit.ID)
	if occupied[dest] {
		return illegal(ReasonOccupied, "%s", dest)
	}
	if !board.Adjacent(dest, target.Pos) {
		return illegal(ReasonChargeNotAdjacent, "%s is not adjacent to unit %d at %s", dest, target.ID, target.Pos)
	}
	enemyAdj := gs.EnemyAdjacency(unit.Player)
	if !board.Reachable(gs.Board, unit.Pos, dest, unit.Profile.Charge, occupied, enemyAdj) {
		return illegal(ReasonUnreachable, "%s -> %s within %d", unit.Pos, dest, unit.Profile.Charge)
	}
	from := unit.Pos
	unit.Pos = dest
	res.From, res.To = &from, &dest
	return nil
}

// applyFight resolves melee against an adjacent enemy.
func (e *Env) applyFight(unit *Unit, targetID int, res *ActionResult) *IllegalActionError {
	gs := e.state
	target, ierr := e.enemyTarget(unit, targetID)
	if ierr != nil {
		return ierr
	}
	weapon := unit.Profile.Melee
	if weapon.Attacks == "" {
		return illegal(ReasonNoWeapon, "unit %d has no melee weapon", unit.ID)
	}
	if !board.Adjacent(unit.Pos, target.Pos) {
		return illegal(ReasonNotAdjacent, "unit %d at %s, target at %s", unit.ID, unit.Pos, target.Pos)
	}
	shot := resolveAttack(gs.rng, target, weapon)
	res.Shot = &shot
	res.Reward += float64(shot.Damage) * e.rewards.PerDamage
	if shot.Killed {
		res.Reward += e.rewards.Kill
	}
	return nil
}

// enemyTarget resolves a live enemy unit or the matching rejection.
func (e *Env) enemyTarget(unit *Unit, targetID int) (*Unit, *IllegalActionError) {
	target, err := e.state.UnitByID(targetID)
	if err != nil {
		return nil, illegal(ReasonNoTarget, "unit %d", targetID)
	}
	if !target.Alive() {
		return nil, illegal(ReasonNoTarget, "unit %d is already destroyed", targetID)
	}
	if target.Player == unit.Player {
		return nil, illegal(ReasonFriendlyTarget, "unit %d", targetID)
	}
	return target, nil
}

// advance walks the phase machine: once every live unit of the acting
// player has acted or passed, the phase moves on; after Fight the turn hands
// over, and a full second-player turn ends the game turn.
func (e *Env) advance() {
	gs := e.state
	for {
		pending := false
		for _, u := range gs.LiveUnits(gs.ActingPlayer) {
			if !gs.acted[u.ID] {
				pending = true
				break
			}
		}
		if pending {
			return
		}
		gs.acted = make(map[int]bool)
		if gs.Phase != PhaseFight {
			gs.Phase++
			continue
		}
		gs.Phase = PhaseMove
		if gs.ActingPlayer == 0 {
			gs.ActingPlayer = 1
		} else {
			gs.ActingPlayer = 0
			gs.Turn++
		}
		// Loop again: the next player might have no units left to act.
		if len(gs.LiveUnits(gs.ActingPlayer)) > 0 {
			return
		}
		if len(gs.LiveUnits(0)) == 0 && len(gs.LiveUnits(1)) == 0 {
			return
		}
	}
}

// settle decides terminal state and the terminal reward share.
func (e *Env) settle(res *ActionResult) {
	gs := e.state
	alive0 := len(gs.LiveUnits(0))
	alive1 := len(gs.LiveUnits(1))
	switch {
	case alive0 == 0 && alive1 == 0:
		e.done = true
	case alive1 == 0:
		e.done = true
		e.winner = 0
	case alive0 == 0:
		e.done = true
		e.winner = 1
	case gs.Turn > e.maxTurns:
		e.done = true
	}
	if !e.done || e.winner == NoWinner {
		return
	}
	if e.winner == res.Player {
		res.Reward += e.rewards.Win
	} else {
		res.Reward += e.rewards.Lose
	}
}
