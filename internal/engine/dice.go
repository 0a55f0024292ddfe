package engine

import (
	"math/rand"
	"regexp"
	"strconv"
	"strings"
)

var diceRe = regexp.MustCompile(`(?i)^\s*(\d+)?\s*d\s*(\d+)(\s*([+\-x*])\s*(\d+))?\s*$`)

// rollExpr supports: N, NdM, NdM+K, NdM-K, NdM xK (multiply) / * K.
// All rolls draw from the episode RNG so a replay with the same seed
// reproduces them exactly.
func rollExpr(r *rand.Rand, expr string) int {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return 0
	}
	// raw int
	if n, err := strconv.Atoi(expr); err == nil {
		return n
	}
	m := diceRe.FindStringSubmatch(expr)
	if m == nil {
		return 0
	}
	count := 1
	if m[1] != "" {
		count, _ = strconv.Atoi(m[1])
	}
	sides, _ := strconv.Atoi(m[2])
	total := 0
	for i := 0; i < count; i++ {
		total += 1 + r.Intn(sides)
	}
	if m[3] != "" {
		op := m[4]
		k, _ := strconv.Atoi(m[5])
		switch op {
		case "+":
			total += k
		case "-":
			total -= k
		case "x", "*":
			total *= k
		}
	}
	if total < 0 {
		total = 0
	}
	return total
}

// maxExpr returns the maximum value the expression can roll (used by
// devastating wounds). Unknown expressions fall back to 0.
func maxExpr(expr string) int {
	expr = strings.TrimSpace(expr)
	if n, err := strconv.Atoi(expr); err == nil {
		return n
	}
	m := diceRe.FindStringSubmatch(expr)
	if m == nil {
		return 0
	}
	count := 1
	if m[1] != "" {
		count, _ = strconv.Atoi(m[1])
	}
	sides, _ := strconv.Atoi(m[2])
	total := count * sides
	if m[3] != "" {
		op := m[4]
		k, _ := strconv.Atoi(m[5])
		switch op {
		case "+":
			total += k
		case "-":
			total -= k
		case "x", "*":
			total *= k
		}
	}
	if total < 0 {
		total = 0
	}
	return total
}

func d6(r *rand.Rand) int { return 1 + r.Intn(6) }
