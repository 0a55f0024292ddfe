// Forensic replay verifier: re-derives every recorded action through the
// engine and reports the first divergence, if any.
package main

import (
	"flag"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/GregSQT/w40k-engine/internal/replay"
)

func main() {
	var (
		dbPath    = flag.String("db", "", "replay SQLite database")
		episodeID = flag.String("episode", "", "episode id to verify (with -db)")
		list      = flag.Bool("list", false, "list recorded episodes (with -db)")
		filePath  = flag.String("file", "", "episode JSONL log to verify")
	)
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	switch {
	case *filePath != "":
		f, err := os.Open(*filePath)
		if err != nil {
			log.Fatal().Err(err).Msg("open log file")
		}
		defer f.Close()
		ep, steps, err := replay.Read(f)
		if err != nil {
			log.Fatal().Err(err).Msg("read log file")
		}
		verify(log, ep, steps)

	case *dbPath != "" && *list:
		store := openStore(log, *dbPath)
		defer store.Close()
		eps, err := store.ListEpisodes(50)
		if err != nil {
			log.Fatal().Err(err).Msg("list episodes")
		}
		for _, ep := range eps {
			log.Info().
				Str("id", ep.ID).
				Str("name", ep.Name).
				Int("winner", ep.Winner).
				Str("steps", humanize.Comma(int64(ep.Steps))).
				Str("age", humanize.Time(ep.CreatedAt)).
				Msg("episode")
		}

	case *dbPath != "" && *episodeID != "":
		store := openStore(log, *dbPath)
		defer store.Close()
		ep, steps, err := store.LoadEpisode(*episodeID)
		if err != nil {
			log.Fatal().Err(err).Msg("load episode")
		}
		verify(log, ep, steps)

	default:
		flag.Usage()
		os.Exit(2)
	}
}

func openStore(log zerolog.Logger, path string) *replay.Store {
	store, err := replay.OpenStore(path)
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("open store")
	}
	return store
}

func verify(log zerolog.Logger, ep replay.EpisodeRecord, steps []replay.StepRecord) {
	started := time.Now()
	report, err := replay.Verify(ep, steps, zerolog.Nop())
	if err != nil {
		log.Fatal().Err(err).Str("episode", ep.ID).Msg("replay failed to run")
	}
	if !report.OK() {
		log.Error().
			Str("episode", ep.ID).
			Int("step", report.Divergence.Step).
			Str("field", report.Divergence.Field).
			Str("recorded", report.Divergence.Recorded).
			Str("derived", report.Divergence.Derived).
			Msg("DIVERGENCE")
		os.Exit(1)
	}
	log.Info().
		Str("episode", ep.ID).
		Str("steps", humanize.Comma(int64(report.Steps))).
		Str("elapsed", time.Since(started).Round(time.Millisecond).String()).
		Msg("replay verified clean")
}
