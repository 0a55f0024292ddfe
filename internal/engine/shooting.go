package engine

import (
	"math/rand"

	"github.com/GregSQT/w40k-engine/internal/models"
)

// woundTarget returns the roll (2-6) needed to wound toughness T with
// strength S.
func woundTarget(s, t int) int {
	switch {
	case s >= 2*t:
		return 2
	case s > t:
		return 3
	case s == t:
		return 4
	case s*2 <= t:
		return 6
	default:
		return 5
	}
}

// bestSaveThreshold picks the better of the AP-modified armor save and the
// invulnerable save. sv is 2-6 (7 means none), inv 0 if none; AP is
// negative in the data so subtracting worsens the save.
func bestSaveThreshold(sv, inv, ap int) int {
	eff := sv - ap
	if eff < 2 {
		eff = 2
	}
	if eff > 6 {
		eff = 7 // no save
	}
	if inv > 0 && inv < eff {
		eff = inv
	}
	return eff
}

// ShotOutcome is the structured result of one weapon resolution.
type ShotOutcome struct {
	Weapon  string `json:"weapon"`
	Attacks int    `json:"attacks"`
	Hits    int    `json:"hits"`
	Wounds  int    `json:"wounds"`
	Saved   int    `json:"saved"`
	Unsaved int    `json:"unsaved"`
	Damage  int    `json:"damage"`
	Killed  bool   `json:"killed"`
}

// resolveAttack runs the full volley sequence from attacker to defender with
// the given weapon profile: attacks, hit rolls, wound rolls, saves, damage.
// It mutates the defender's HP (clamped at zero); the caller owns occupancy
// cleanup for kills. Preconditions (range, LoS, adjacency) are the phase
// machine's job, never checked here.
//
// The same function serves shooting and fighting; only the profile differs.
func resolveAttack(r *rand.Rand, def *Unit, w models.WeaponProfile) ShotOutcome {
	out := ShotOutcome{Weapon: w.Name}

	// Attacks
	attacks := rollExpr(r, w.Attacks)
	out.Attacks = attacks

	// Hits. Torrent auto-hits; natural 6s feed sustained hits and lethal
	// hits; natural 1s always miss.
	hits := 0
	critAutoWounds := 0
	for i := 0; i < attacks; i++ {
		if w.Torrent {
			hits++
			continue
		}
		roll := d6(r)
		if roll >= w.Skill && roll != 1 {
			hits++
			if roll == 6 {
				if w.LethalHits {
					critAutoWounds++
				}
				if w.SustainedHits > 0 {
					hits += w.SustainedHits
				}
			}
		}
	}
	out.Hits = hits

	// Wounds. Lethal-hit crits convert without rolling; twin-linked
	// re-rolls each failed wound once.
	tn := woundTarget(w.Strength, def.Profile.T)
	wounds := critAutoWounds
	critWounds := 0
	attempts := hits - critAutoWounds
	for i := 0; i < attempts; i++ {
		roll := d6(r)
		if !(roll >= tn && roll != 1) && w.TwinLinked {
			roll = d6(r)
		}
		if roll >= tn && roll != 1 {
			wounds++
			if roll == 6 {
				critWounds++
			}
		}
	}
	out.Wounds = wounds

	// Saves
	saveTN := bestSaveThreshold(def.Profile.Sv, def.Profile.InvSv, w.AP)
	saved, unsaved := 0, 0
	for i := 0; i < wounds; i++ {
		roll := d6(r)
		if roll >= saveTN && roll != 1 {
			saved++
		} else {
			unsaved++
		}
	}
	out.Saved = saved
	out.Unsaved = unsaved

	// Damage. Devastating wounds turn critical wounds into max damage;
	// crits are consumed first so the mapping is order-independent.
	total := 0
	for i := 0; i < unsaved; i++ {
		if w.DevastatingWounds && critWounds > 0 {
			critWounds--
			total += maxExpr(w.Damage)
			continue
		}
		total += rollExpr(r, w.Damage)
	}

	// Feel No Pain: one roll per point of damage to shrug it off.
	if fnp := def.Profile.FNP; fnp > 0 && total > 0 {
		ignored := 0
		for i := 0; i < total; i++ {
			roll := d6(r)
			if roll >= fnp && roll != 1 {
				ignored++
			}
		}
		total -= ignored
	}

	if total > def.HP {
		total = def.HP
	}
	def.HP -= total
	out.Damage = total
	out.Killed = !def.Alive()
	return out
}
