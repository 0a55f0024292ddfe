// Package replay turns engine transitions into durable records and replays
// them through the engine to verify rule compliance. One record per
// processed action, accepted or rejected, is enough to reconstruct and
// re-derive the full trajectory: the verifier calls the exact same engine
// the live step path used, so there is no second rules implementation to
// drift.
package replay

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/GregSQT/w40k-engine/internal/board"
	"github.com/GregSQT/w40k-engine/internal/engine"
)

// EpisodeRecord is the header of one recorded episode. Scenario holds the
// full YAML so the verifier can rebuild the initial state; Seed is the
// effective RNG seed the engine ran with.
type EpisodeRecord struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Scenario  string    `json:"scenario" db:"scenario"`
	Seed      int64     `json:"seed" db:"seed"`
	Winner    int       `json:"winner" db:"winner"`
	Steps     int       `json:"steps" db:"steps"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// StepRecord is one action transition, flattened for storage.
type StepRecord struct {
	EpisodeID  string  `json:"episode_id" db:"episode_id"`
	Step       int     `json:"step" db:"step"`
	Turn       int     `json:"turn" db:"turn"`
	Phase      string  `json:"phase" db:"phase"`
	Player     int     `json:"player" db:"player"`
	UnitID     int     `json:"unit_id" db:"unit_id"`
	Kind       string  `json:"kind" db:"kind"`
	TargetCol  int     `json:"target_col" db:"target_col"`
	TargetRow  int     `json:"target_row" db:"target_row"`
	TargetUnit int     `json:"target_unit" db:"target_unit"`
	Legal      bool    `json:"legal" db:"legal"`
	Reason     string  `json:"reason,omitempty" db:"reason"`
	Damage     int     `json:"damage" db:"damage"`
	Killed     bool    `json:"killed" db:"killed"`
	Reward     float64 `json:"reward" db:"reward"`
	Terminal   bool    `json:"terminal" db:"terminal"`
	Winner     int     `json:"winner" db:"winner"`
	StateHash  int64   `json:"state_hash" db:"state_hash"` // engine hash, reinterpreted as signed for storage
}

// FromResult flattens an engine transition into a record.
func FromResult(episodeID string, res engine.ActionResult) StepRecord {
	rec := StepRecord{
		EpisodeID:  episodeID,
		Step:       res.Step,
		Turn:       res.Turn,
		Phase:      res.Phase,
		Player:     res.Player,
		UnitID:     res.Request.UnitID,
		Kind:       string(res.Request.Kind),
		TargetCol:  res.Request.Target.Col,
		TargetRow:  res.Request.Target.Row,
		TargetUnit: res.Request.TargetUnit,
		Legal:      res.Legal,
		Reason:     string(res.Reason),
		Reward:     res.Reward,
		Terminal:   res.Terminal,
		Winner:     res.Winner,
		StateHash:  int64(res.StateHash),
	}
	if res.Shot != nil {
		rec.Damage = res.Shot.Damage
		rec.Killed = res.Shot.Killed
	}
	return rec
}

// Request reconstructs the ActionRequest the record was made from.
func (r StepRecord) Request() engine.ActionRequest {
	return engine.ActionRequest{
		UnitID:     r.UnitID,
		Kind:       engine.ActionKind(r.Kind),
		Target:     board.Hex{Col: r.TargetCol, Row: r.TargetRow},
		TargetUnit: r.TargetUnit,
	}
}

// ========================= JSONL log =========================
// Line 1 is the EpisodeRecord header, every following line one StepRecord.

// Writer streams an episode log.
type Writer struct {
	enc *json.Encoder
}

// NewWriter writes the header line and returns a step writer.
func NewWriter(w io.Writer, ep EpisodeRecord) (*Writer, error) {
	enc := json.NewEncoder(w)
	if err := enc.Encode(ep); err != nil {
		return nil, fmt.Errorf("write episode header: %w", err)
	}
	return &Writer{enc: enc}, nil
}

// Write appends one step line.
func (w *Writer) Write(rec StepRecord) error {
	return w.enc.Encode(rec)
}

// Read parses a JSONL episode log back into header and steps.
func Read(r io.Reader) (EpisodeRecord, []StepRecord, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var ep EpisodeRecord
	if !sc.Scan() {
		return ep, nil, fmt.Errorf("empty episode log")
	}
	if err := json.Unmarshal(sc.Bytes(), &ep); err != nil {
		return ep, nil, fmt.Errorf("parse episode header: %w", err)
	}

	var steps []StepRecord
	line := 1
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var rec StepRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return ep, nil, fmt.Errorf("parse step line %d: %w", line, err)
		}
		steps = append(steps, rec)
	}
	if err := sc.Err(); err != nil {
		return ep, nil, err
	}
	return ep, steps, nil
}
