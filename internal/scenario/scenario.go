// Package scenario loads and validates the static episode configuration:
// board layout, armory, unit profiles and placements. Every problem found
// here is fatal before the episode starts; the engine never sees a scenario
// that failed validation.
package scenario

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/GregSQT/w40k-engine/internal/board"
	"github.com/GregSQT/w40k-engine/internal/models"
)

// ConfigError marks a malformed scenario. It is terminal: no episode is
// created from a scenario that produced one.
type ConfigError struct {
	Detail string
}

func (e *ConfigError) Error() string {
	return "scenario config: " + e.Detail
}

func cfgErr(format string, args ...any) *ConfigError {
	return &ConfigError{Detail: fmt.Sprintf(format, args...)}
}

// BoardSpec is the grid section of a scenario file.
type BoardSpec struct {
	Cols  int         `yaml:"cols" json:"cols"`
	Rows  int         `yaml:"rows" json:"rows"`
	Walls []board.Hex `yaml:"walls,omitempty" json:"walls,omitempty"`
}

// ProfileSpec is a unit datasheet with weapons referenced by armory name.
// References are resolved strictly: a missing weapon is a ConfigError, never
// a silent default.
type ProfileSpec struct {
	T         int    `yaml:"t" json:"t"`
	W         int    `yaml:"w" json:"w"`
	Sv        int    `yaml:"sv" json:"sv"`
	InvSv     int    `yaml:"inv_sv,omitempty" json:"inv_sv,omitempty"`
	FNP       int    `yaml:"fnp,omitempty" json:"fnp,omitempty"`
	Models    int    `yaml:"models" json:"models"`
	Move      int    `yaml:"move" json:"move"`
	Charge    int    `yaml:"charge" json:"charge"`
	BlocksLoS bool   `yaml:"blocks_los,omitempty" json:"blocks_los,omitempty"`
	Ranged    string `yaml:"ranged,omitempty" json:"ranged,omitempty"`
	Melee     string `yaml:"melee,omitempty" json:"melee,omitempty"`
}

// Placement puts one unit of a named profile on the board.
type Placement struct {
	Player  int    `yaml:"player" json:"player"`
	Col     int    `yaml:"col" json:"col"`
	Row     int    `yaml:"row" json:"row"`
	Profile string `yaml:"profile" json:"profile"`
}

// Scenario is one episode's static configuration.
type Scenario struct {
	Name     string                          `yaml:"name" json:"name"`
	Board    BoardSpec                       `yaml:"board" json:"board"`
	Seed     int64                           `yaml:"seed,omitempty" json:"seed,omitempty"`
	MaxTurns int                             `yaml:"max_turns,omitempty" json:"max_turns,omitempty"`
	Weapons  map[string]models.WeaponProfile `yaml:"weapons" json:"weapons"`
	Profiles map[string]ProfileSpec          `yaml:"profiles" json:"profiles"`
	Units    []Placement                     `yaml:"units" json:"units"`
}

// DefaultMaxTurns bounds an episode when the scenario doesn't.
const DefaultMaxTurns = 20

// Parse decodes and validates scenario YAML.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, cfgErr("parse yaml: %v", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return Parse(data)
}

// Marshal renders the scenario back to YAML (used by the generator CLI).
func (s *Scenario) Marshal() ([]byte, error) {
	return yaml.Marshal(s)
}

// Validate checks the whole scenario: board geometry, armory references,
// statline sanity, placement legality.
func (s *Scenario) Validate() error {
	b, err := s.BuildBoard()
	if err != nil {
		return err
	}

	for name, w := range s.Weapons {
		if w.Skill < 2 || w.Skill > 6 {
			return cfgErr("weapon %q: skill %d outside 2-6", name, w.Skill)
		}
		if w.Strength <= 0 {
			return cfgErr("weapon %q: strength must be positive", name)
		}
		if w.Attacks == "" {
			return cfgErr("weapon %q: missing attacks expression", name)
		}
		if w.Damage == "" {
			return cfgErr("weapon %q: missing damage expression", name)
		}
	}

	for name, p := range s.Profiles {
		if p.T <= 0 || p.W <= 0 || p.Models <= 0 {
			return cfgErr("profile %q: T, W and models must be positive", name)
		}
		if p.Sv < 2 || p.Sv > 7 {
			return cfgErr("profile %q: Sv %d outside 2-7", name, p.Sv)
		}
		if p.Move < 0 || p.Charge < 0 {
			return cfgErr("profile %q: negative movement", name)
		}
		if _, err := s.weapon(p.Ranged, false); err != nil {
			return cfgErr("profile %q ranged: %v", name, err)
		}
		if _, err := s.weapon(p.Melee, true); err != nil {
			return cfgErr("profile %q melee: %v", name, err)
		}
	}

	if len(s.Units) == 0 {
		return cfgErr("no unit placements")
	}
	seen := make(map[board.Hex]int)
	players := make(map[int]bool)
	for i, pl := range s.Units {
		if pl.Player != 0 && pl.Player != 1 {
			return cfgErr("unit %d: player must be 0 or 1, got %d", i, pl.Player)
		}
		players[pl.Player] = true
		h := board.Hex{Col: pl.Col, Row: pl.Row}
		if !b.InBounds(h) {
			return cfgErr("unit %d at %s: outside %dx%d board", i, h, s.Board.Cols, s.Board.Rows)
		}
		if b.IsWall(h) {
			return cfgErr("unit %d at %s: placed on a wall", i, h)
		}
		if prev, dup := seen[h]; dup {
			return cfgErr("units %d and %d both placed at %s", prev, i, h)
		}
		seen[h] = i
		if _, ok := s.Profiles[pl.Profile]; !ok {
			return cfgErr("unit %d: profile %q not found", i, pl.Profile)
		}
	}
	if !players[0] || !players[1] {
		return cfgErr("both players need at least one unit")
	}
	return nil
}

// BuildBoard constructs the immutable board config.
func (s *Scenario) BuildBoard() (*board.Config, error) {
	b, err := board.NewConfig(s.Board.Cols, s.Board.Rows, s.Board.Walls)
	if err != nil {
		return nil, cfgErr("%v", err)
	}
	return b, nil
}

// weapon resolves an armory reference. An empty name is a legal "unarmed"
// slot; a dangling name is a ConfigError. Melee slots must have range 0,
// ranged slots a positive range.
func (s *Scenario) weapon(name string, melee bool) (models.WeaponProfile, error) {
	if name == "" {
		return models.WeaponProfile{}, nil
	}
	w, ok := s.Weapons[name]
	if !ok {
		return models.WeaponProfile{}, fmt.Errorf("weapon %q not found in armory", name)
	}
	if melee && w.Range != 0 {
		return models.WeaponProfile{}, fmt.Errorf("weapon %q has range %d, melee slot needs 0", name, w.Range)
	}
	if !melee && w.Range <= 0 {
		return models.WeaponProfile{}, fmt.Errorf("weapon %q has range %d, ranged slot needs > 0", name, w.Range)
	}
	if w.Name == "" {
		w.Name = name
	}
	return w, nil
}

// ResolveProfile materializes a named profile with its weapon references
// resolved. Strict lookup throughout.
func (s *Scenario) ResolveProfile(name string) (models.UnitProfile, error) {
	spec, ok := s.Profiles[name]
	if !ok {
		return models.UnitProfile{}, cfgErr("profile %q not found", name)
	}
	ranged, err := s.weapon(spec.Ranged, false)
	if err != nil {
		return models.UnitProfile{}, cfgErr("profile %q: %v", name, err)
	}
	melee, err := s.weapon(spec.Melee, true)
	if err != nil {
		return models.UnitProfile{}, cfgErr("profile %q: %v", name, err)
	}
	return models.UnitProfile{
		Name:      name,
		T:         spec.T,
		W:         spec.W,
		Sv:        spec.Sv,
		InvSv:     spec.InvSv,
		FNP:       spec.FNP,
		Models:    spec.Models,
		Move:      spec.Move,
		Charge:    spec.Charge,
		BlocksLoS: spec.BlocksLoS,
		Ranged:    ranged,
		Melee:     melee,
	}, nil
}
