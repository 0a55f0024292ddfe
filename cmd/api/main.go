package main

import (
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/GregSQT/w40k-engine/internal/api"
	"github.com/GregSQT/w40k-engine/internal/replay"
)

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	addr := ":" + getenv("PORT", "8080")

	var store *replay.Store
	if path := os.Getenv("REPLAY_DB"); path != "" {
		var err error
		store, err = replay.OpenStore(path)
		if err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("open replay store")
		}
		defer store.Close()
		log.Info().Str("path", path).Msg("recording episodes")
	}

	srv := api.NewServer(log, store)
	log.Info().Str("addr", addr).Msg("engine api listening")
	if err := http.ListenAndServe(addr, srv.Router()); err != nil {
		log.Fatal().Err(err).Msg("serve")
	}
}
