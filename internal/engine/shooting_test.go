package engine

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/GregSQT/w40k-engine/internal/board"
	"github.com/GregSQT/w40k-engine/internal/models"
)

func TestWoundTarget(t *testing.T) {
	cases := []struct {
		s, t, want int
	}{
		{8, 4, 2}, // double or more
		{5, 4, 3}, // greater
		{4, 4, 4}, // equal
		{3, 4, 5}, // lower
		{2, 4, 6}, // half or less
		{2, 5, 6},
		{10, 5, 2},
		{6, 5, 3},
	}
	for _, c := range cases {
		require.Equal(t, c.want, woundTarget(c.s, c.t), "S%d vs T%d", c.s, c.t)
	}
}

func TestBestSaveThreshold(t *testing.T) {
	cases := []struct {
		sv, inv, ap, want int
	}{
		{3, 0, 0, 3},
		{3, 0, -1, 4}, // AP-1 worsens armor
		{3, 0, -4, 7}, // save pushed past 6 means no save
		{3, 4, -4, 4}, // invulnerable takes over
		{2, 0, 0, 2},
		{3, 0, 2, 2}, // positive modifier capped at 2
		{7, 0, 0, 7}, // no armor
		{7, 5, -2, 5},
		{2, 4, 0, 2}, // armor better than invuln
	}
	for _, c := range cases {
		require.Equal(t, c.want, bestSaveThreshold(c.sv, c.inv, c.ap),
			"sv%d inv%d ap%d", c.sv, c.inv, c.ap)
	}
}

func TestRollExpr(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	require.Equal(t, 3, rollExpr(r, "3"))
	require.Equal(t, 0, rollExpr(r, ""))
	require.Equal(t, 0, rollExpr(r, "garbage"))

	for i := 0; i < 200; i++ {
		v := rollExpr(r, "d6")
		require.GreaterOrEqual(t, v, 1)
		require.LessOrEqual(t, v, 6)
	}
	for i := 0; i < 200; i++ {
		v := rollExpr(r, "2d3+1")
		require.GreaterOrEqual(t, v, 3)
		require.LessOrEqual(t, v, 7)
	}
	for i := 0; i < 200; i++ {
		v := rollExpr(r, "d3x2")
		require.Contains(t, []int{2, 4, 6}, v)
	}
}

func TestRollExprDeterministic(t *testing.T) {
	a := rand.New(rand.NewSource(77))
	b := rand.New(rand.NewSource(77))
	for i := 0; i < 100; i++ {
		require.Equal(t, rollExpr(a, "2d6+1"), rollExpr(b, "2d6+1"))
	}
}

func TestMaxExpr(t *testing.T) {
	require.Equal(t, 3, maxExpr("3"))
	require.Equal(t, 6, maxExpr("d6"))
	require.Equal(t, 7, maxExpr("2d3+1"))
	require.Equal(t, 5, maxExpr("2d3-1"))
	require.Equal(t, 12, maxExpr("2d3x2"))
	require.Equal(t, 0, maxExpr("garbage"))
}

func testDefender(t *testing.T, prof models.UnitProfile) *Unit {
	t.Helper()
	hp := prof.TotalWounds()
	return &Unit{
		ID:      1,
		Player:  1,
		Pos:     board.Hex{Col: 5, Row: 5},
		HP:      hp,
		MaxHP:   hp,
		Profile: prof,
	}
}

func TestResolveAttackDeterministic(t *testing.T) {
	prof := models.UnitProfile{Name: "target", T: 4, W: 2, Sv: 3, Models: 5}
	w := models.WeaponProfile{
		Name: "rifle", Range: 24, Attacks: "4", Skill: 3,
		Strength: 4, AP: -1, Damage: "1",
	}
	a := testDefender(t, prof)
	b := testDefender(t, prof)
	outA := resolveAttack(rand.New(rand.NewSource(5)), a, w)
	outB := resolveAttack(rand.New(rand.NewSource(5)), b, w)
	require.Equal(t, outA, outB)
	require.Equal(t, a.HP, b.HP)
}

func TestResolveAttackHPClamp(t *testing.T) {
	prof := models.UnitProfile{Name: "grot", T: 1, W: 1, Sv: 7, Models: 1}
	w := models.WeaponProfile{
		Name: "cannon", Range: 36, Attacks: "10", Skill: 2,
		Strength: 12, AP: -4, Damage: "6",
	}
	def := testDefender(t, prof)
	out := resolveAttack(rand.New(rand.NewSource(1)), def, w)
	require.Equal(t, 0, def.HP, "HP must clamp at zero")
	require.LessOrEqual(t, out.Damage, 1, "reported damage never exceeds remaining HP")
	if out.Damage > 0 {
		require.True(t, out.Killed)
	}
}

func TestResolveAttackTorrentAlwaysHits(t *testing.T) {
	prof := models.UnitProfile{Name: "target", T: 4, W: 2, Sv: 3, Models: 10}
	w := models.WeaponProfile{
		Name: "flamer", Range: 12, Attacks: "6", Skill: 0,
		Strength: 4, AP: 0, Damage: "1", Torrent: true,
	}
	for seed := int64(0); seed < 20; seed++ {
		def := testDefender(t, prof)
		out := resolveAttack(rand.New(rand.NewSource(seed)), def, w)
		require.Equal(t, out.Attacks, out.Hits, "torrent weapon missed (seed %d)", seed)
	}
}

func TestResolveAttackAccounting(t *testing.T) {
	prof := models.UnitProfile{Name: "target", T: 4, W: 2, Sv: 3, InvSv: 5, FNP: 6, Models: 5}
	w := models.WeaponProfile{
		Name: "gun", Range: 24, Attacks: "2d6", Skill: 3,
		Strength: 5, AP: -2, Damage: "d3",
		LethalHits: true, SustainedHits: 1, DevastatingWounds: true,
	}
	for seed := int64(0); seed < 50; seed++ {
		def := testDefender(t, prof)
		before := def.HP
		out := resolveAttack(rand.New(rand.NewSource(seed)), def, w)
		require.Equal(t, out.Wounds, out.Saved+out.Unsaved, "seed %d", seed)
		require.GreaterOrEqual(t, out.Hits, 0)
		require.Equal(t, before-out.Damage, def.HP, "seed %d", seed)
		require.GreaterOrEqual(t, def.HP, 0)
		require.Equal(t, !def.Alive(), out.Killed)
	}
}
