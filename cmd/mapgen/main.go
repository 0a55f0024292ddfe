// Scenario generator: noise-clustered walls, mirrored deployment, stock
// armory. Emits scenario YAML consumable by the engine and the api server.
package main

import (
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/GregSQT/w40k-engine/internal/scenario"
)

func main() {
	opt := scenario.DefaultGenerateOptions()
	flag.IntVar(&opt.Cols, "cols", opt.Cols, "board columns")
	flag.IntVar(&opt.Rows, "rows", opt.Rows, "board rows")
	flag.Int64Var(&opt.Seed, "seed", opt.Seed, "generation and episode seed")
	flag.Float64Var(&opt.WallCutoff, "walls", opt.WallCutoff, "wall noise cutoff; higher means fewer walls")
	flag.IntVar(&opt.UnitsPerSide, "units", opt.UnitsPerSide, "units per side")
	out := flag.String("out", "", "output file (default stdout)")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	sc, err := scenario.Generate(opt)
	if err != nil {
		log.Fatal().Err(err).Msg("generate scenario")
	}
	data, err := sc.Marshal()
	if err != nil {
		log.Fatal().Err(err).Msg("marshal scenario")
	}

	if *out == "" {
		os.Stdout.Write(data)
		return
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		log.Fatal().Err(err).Msg("write scenario")
	}
	log.Info().
		Str("path", *out).
		Int("walls", len(sc.Board.Walls)).
		Int("units", len(sc.Units)).
		Msg("scenario written")
}
