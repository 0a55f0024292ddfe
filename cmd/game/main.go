// Headless self-play driver: runs one episode with a random policy on both
// sides, optionally writing the step log for the replay verifier. Useful
// for smoke-testing scenarios and producing verification fixtures.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/GregSQT/w40k-engine/internal/board"
	"github.com/GregSQT/w40k-engine/internal/engine"
	"github.com/GregSQT/w40k-engine/internal/replay"
	"github.com/GregSQT/w40k-engine/internal/scenario"
)

func main() {
	var (
		scenarioPath = flag.String("scenario", "", "scenario YAML; empty generates a default one")
		logPath      = flag.String("log", "", "write the episode JSONL log here")
		seed         = flag.Int64("seed", 0, "override the scenario seed (0 keeps it)")
		maxSteps     = flag.Int("max-steps", 5000, "hard step budget")
		verbose      = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).With().Timestamp().Logger()

	sc, err := loadScenario(*scenarioPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load scenario")
	}
	if *seed != 0 {
		sc.Seed = *seed
	}

	env, err := engine.Reset(sc, log)
	if err != nil {
		log.Fatal().Err(err).Msg("reset")
	}

	episodeID := uuid.NewString()
	var writer *replay.Writer
	if *logPath != "" {
		f, err := os.Create(*logPath)
		if err != nil {
			log.Fatal().Err(err).Msg("create log file")
		}
		defer f.Close()
		yml, _ := sc.Marshal()
		writer, err = replay.NewWriter(f, replay.EpisodeRecord{
			ID:        episodeID,
			Name:      sc.Name,
			Scenario:  string(yml),
			Seed:      env.State().Seed(),
			Winner:    engine.NoWinner,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			log.Fatal().Err(err).Msg("write log header")
		}
	}

	// The policy RNG is separate from the engine RNG: replays re-derive the
	// engine's rolls from the recorded requests, not the policy's whims.
	policy := rand.New(rand.NewSource(env.State().Seed() + 1))

	started := time.Now()
	steps := 0
	for !env.Done() && steps < *maxSteps {
		req, ok := nextAction(env, policy)
		if !ok {
			break
		}
		res, err := env.Step(req)
		if err != nil {
			log.Fatal().Err(err).Msg("engine halted")
		}
		if !res.Legal {
			if writer != nil {
				if err := writer.Write(replay.FromResult(episodeID, res)); err != nil {
					log.Fatal().Err(err).Msg("write step")
				}
			}
			// Random policies misjudge LoS sometimes; burn the activation.
			res, err = env.Step(engine.ActionRequest{UnitID: req.UnitID, Kind: engine.ActionPass})
			if err != nil {
				log.Fatal().Err(err).Msg("engine halted")
			}
		}
		steps = res.Step
		if writer != nil {
			if err := writer.Write(replay.FromResult(episodeID, res)); err != nil {
				log.Fatal().Err(err).Msg("write step")
			}
		}
	}

	winner := "draw"
	if w := env.Winner(); w != engine.NoWinner {
		winner = fmt.Sprintf("player %d", w)
	}
	log.Info().
		Str("episode", episodeID).
		Str("winner", winner).
		Int("turns", env.State().Turn).
		Str("steps", humanize.Comma(int64(env.State().Steps()))).
		Str("elapsed", time.Since(started).Round(time.Millisecond).String()).
		Msg("episode finished")
}

func loadScenario(path string) (*scenario.Scenario, error) {
	if path != "" {
		return scenario.Load(path)
	}
	return scenario.Generate(scenario.DefaultGenerateOptions())
}

// nextAction picks a plausible order for the first unit of the acting player
// that has not acted this phase. It uses the same shared reachability the
// engine validates with, so most picks are legal; the remainder are passed.
func nextAction(env *engine.Env, rng *rand.Rand) (engine.ActionRequest, bool) {
	gs := env.State()
	var unit *engine.Unit
	for _, u := range gs.LiveUnits(gs.ActingPlayer) {
		if !gs.Acted(u.ID) {
			unit = u
			break
		}
	}
	if unit == nil {
		return engine.ActionRequest{}, false
	}
	pass := engine.ActionRequest{UnitID: unit.ID, Kind: engine.ActionPass}

	var enemies []*engine.Unit
	for _, u := range gs.Units {
		if u.Alive() && u.Player != unit.Player {
			enemies = append(enemies, u)
		}
	}
	if len(enemies) == 0 {
		return pass, true
	}

	switch gs.Phase {
	case engine.PhaseMove:
		occupied := gs.Occupied(unit.ID)
		enemyAdj := gs.EnemyAdjacency(unit.Player)
		reach := board.ReachableSet(gs.Board, unit.Pos, unit.Profile.Move, occupied, enemyAdj)
		var dests []board.Hex
		for h := range reach {
			if h != unit.Pos && !occupied[h] && !enemyAdj[h] {
				dests = append(dests, h)
			}
		}
		if len(dests) == 0 {
			return pass, true
		}
		return engine.ActionRequest{
			UnitID: unit.ID,
			Kind:   engine.ActionMove,
			Target: dests[rng.Intn(len(dests))],
		}, true

	case engine.PhaseShoot:
		w := unit.Profile.Ranged
		if w.Range <= 0 {
			return pass, true
		}
		for _, e := range enemies {
			if board.Distance(unit.Pos, e.Pos) <= w.Range {
				return engine.ActionRequest{UnitID: unit.ID, Kind: engine.ActionShoot, TargetUnit: e.ID}, true
			}
		}
		return pass, true

	case engine.PhaseCharge:
		occupied := gs.Occupied(unit.ID)
		enemyAdj := gs.EnemyAdjacency(unit.Player)
		reach := board.ReachableSet(gs.Board, unit.Pos, unit.Profile.Charge, occupied, enemyAdj)
		for _, e := range enemies {
			for _, nb := range board.Neighbors(e.Pos) {
				if _, ok := reach[nb]; !ok {
					continue
				}
				if !gs.Board.InBounds(nb) || occupied[nb] {
					continue
				}
				return engine.ActionRequest{
					UnitID: unit.ID, Kind: engine.ActionCharge,
					TargetUnit: e.ID, Target: nb,
				}, true
			}
		}
		return pass, true

	case engine.PhaseFight:
		for _, e := range enemies {
			if board.Adjacent(unit.Pos, e.Pos) {
				return engine.ActionRequest{UnitID: unit.ID, Kind: engine.ActionFight, TargetUnit: e.ID}, true
			}
		}
		return pass, true
	}
	return pass, true
}
