package models

// ========================= Domain Models =========================
// Profile shapes consumed by the engine. Scenario files are decoded into
// these; the engine treats them as read-only after load.

// WeaponProfile describes one weapon statline. Attacks and Damage are dice
// expressions (e.g. "2", "D6", "2D6+1") rolled through the engine's seeded
// RNG each resolution.
type WeaponProfile struct {
	Name     string `json:"name" yaml:"name"`
	Range    int    `json:"range" yaml:"range"` // hexes; 0 means melee only
	Attacks  string `json:"attacks" yaml:"attacks"`
	Skill    int    `json:"skill" yaml:"skill"` // hit threshold, 2-6
	Strength int    `json:"s" yaml:"s"`
	AP       int    `json:"ap" yaml:"ap"` // negative worsens the save
	Damage   string `json:"d" yaml:"d"`
	// Ability flags, pre-parsed from the armory data.
	Torrent           bool `json:"torrent,omitempty" yaml:"torrent,omitempty"`
	LethalHits        bool `json:"lethal_hits,omitempty" yaml:"lethal_hits,omitempty"`
	TwinLinked        bool `json:"twin_linked,omitempty" yaml:"twin_linked,omitempty"`
	DevastatingWounds bool `json:"devastating_wounds,omitempty" yaml:"devastating_wounds,omitempty"`
	SustainedHits     int  `json:"sustained_hits,omitempty" yaml:"sustained_hits,omitempty"`
}

// IsMelee reports whether the profile can only be used in the Fight phase.
func (w WeaponProfile) IsMelee() bool { return w.Range == 0 }

// UnitProfile is the datasheet side of a unit: defensive statline, movement
// allowances and weapon loadout. Position and current wounds live on the
// engine's Unit, not here.
type UnitProfile struct {
	Name   string `json:"name" yaml:"name"`
	T      int    `json:"t" yaml:"t"`   // toughness
	W      int    `json:"w" yaml:"w"`   // wounds per model
	Sv     int    `json:"sv" yaml:"sv"` // armor save, 2-6; 7 means none
	InvSv  int    `json:"inv_sv,omitempty" yaml:"inv_sv,omitempty"`
	FNP    int    `json:"fnp,omitempty" yaml:"fnp,omitempty"` // feel no pain threshold, 0 if none
	Models int    `json:"models" yaml:"models"`               // cohesion-linked model count
	Move   int    `json:"move" yaml:"move"`                   // move range in hexes
	Charge int    `json:"charge" yaml:"charge"`               // charge range in hexes
	// BlocksLoS marks big silhouettes (vehicles, monsters) that interrupt
	// sight lines drawn over them.
	BlocksLoS bool `json:"blocks_los,omitempty" yaml:"blocks_los,omitempty"`

	Ranged WeaponProfile `json:"ranged" yaml:"ranged"`
	Melee  WeaponProfile `json:"melee" yaml:"melee"`
}

// TotalWounds is the HP pool of a full-strength unit.
func (p UnitProfile) TotalWounds() int { return p.W * p.Models }
