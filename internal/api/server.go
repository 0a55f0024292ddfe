// Package api exposes the engine's reset/step/observe surface over HTTP,
// with a websocket stream for spectating live episodes. The engine itself
// is single-threaded per episode; the server enforces one writer per
// episode with a session lock.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/GregSQT/w40k-engine/internal/board"
	"github.com/GregSQT/w40k-engine/internal/engine"
	"github.com/GregSQT/w40k-engine/internal/models"
	"github.com/GregSQT/w40k-engine/internal/replay"
	"github.com/GregSQT/w40k-engine/internal/scenario"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server hosts episodes and their recorders.
type Server struct {
	router *mux.Router
	log    zerolog.Logger
	store  *replay.Store // nil disables persistence

	mu       sync.Mutex
	episodes map[string]*session
}

type session struct {
	mu       sync.Mutex
	id       string
	env      *engine.Env
	scenario string // original YAML, kept for the episode record
	halted   bool
	watchers map[*websocket.Conn]bool
}

// NewServer builds the router. Pass a nil store to skip persistence.
func NewServer(log zerolog.Logger, store *replay.Store) *Server {
	s := &Server{
		log:      log,
		store:    store,
		episodes: make(map[string]*session),
	}
	r := mux.NewRouter()
	r.HandleFunc("/api/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/api/episodes", s.handleCreate).Methods(http.MethodPost)
	r.HandleFunc("/api/episodes/{id}/step", s.handleStep).Methods(http.MethodPost)
	r.HandleFunc("/api/episodes/{id}/observe", s.handleObserve).Methods(http.MethodGet)
	r.HandleFunc("/api/episodes/{id}/state", s.handleState).Methods(http.MethodGet)
	r.HandleFunc("/api/episodes/{id}/watch", s.handleWatch).Methods(http.MethodGet)
	s.router = r
	return s
}

// Router returns the http handler.
func (s *Server) Router() http.Handler { return s.router }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCreate resets a new episode from the scenario YAML in the request
// body and returns its id plus the initial observation.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}
	sc, err := scenario.Parse(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := uuid.NewString()
	env, err := engine.Reset(sc, s.log.With().Str("episode", id).Logger())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess := &session{
		id:       id,
		env:      env,
		scenario: string(body),
		watchers: make(map[*websocket.Conn]bool),
	}
	s.mu.Lock()
	s.episodes[id] = sess
	s.mu.Unlock()

	if s.store != nil {
		err := s.store.SaveEpisode(replay.EpisodeRecord{
			ID:        id,
			Name:      sc.Name,
			Scenario:  string(body),
			Seed:      env.State().Seed(),
			Winner:    engine.NoWinner,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			s.log.Error().Err(err).Str("episode", id).Msg("persist episode header")
		}
	}

	s.log.Info().Str("episode", id).Str("scenario", sc.Name).Msg("episode created")
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":          id,
		"seed":        env.State().Seed(),
		"observation": env.Observe(),
	})
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) *session {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	sess := s.episodes[id]
	s.mu.Unlock()
	if sess == nil {
		writeError(w, http.StatusNotFound, "episode "+id+" not found")
		return nil
	}
	return sess
}

// handleStep applies one ActionRequest. Invariant violations surface as 500
// with the diagnostic; the episode is halted afterwards.
func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	var req engine.ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "decode action: "+err.Error())
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.halted {
		writeError(w, http.StatusConflict, "episode halted by invariant violation")
		return
	}

	res, err := sess.env.Step(req)
	if err != nil {
		var inv *engine.InvariantError
		if errors.As(err, &inv) {
			sess.halted = true
			s.log.Error().Str("episode", sess.id).Msg(inv.Error())
			writeError(w, http.StatusInternalServerError, inv.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	rec := replay.FromResult(sess.id, res)
	if s.store != nil {
		if err := s.store.AppendStep(rec); err != nil {
			s.log.Error().Err(err).Str("episode", sess.id).Msg("persist step")
		}
		if res.Terminal {
			if err := s.store.FinishEpisode(sess.id, res.Winner, res.Step); err != nil {
				s.log.Error().Err(err).Str("episode", sess.id).Msg("finish episode")
			}
		}
	}
	sess.broadcast(rec, s.log)

	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleObserve(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	sess.mu.Lock()
	obs := sess.env.Observe()
	sess.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"observation": obs})
}

// unitView is a value snapshot of one unit for the state endpoint. The
// encoder runs outside the session lock, so it must never see live engine
// pointers.
type unitView struct {
	ID         int                `json:"id"`
	Player     int                `json:"player"`
	Pos        board.Hex          `json:"pos"`
	HP         int                `json:"hp"`
	MaxHP      int                `json:"max_hp"`
	ModelsLeft int                `json:"models_left"`
	Profile    models.UnitProfile `json:"profile"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	sess.mu.Lock()
	gs := sess.env.State()
	units := make([]unitView, 0, len(gs.Units))
	for _, u := range gs.Units {
		units = append(units, unitView{
			ID:         u.ID,
			Player:     u.Player,
			Pos:        u.Pos,
			HP:         u.HP,
			MaxHP:      u.MaxHP,
			ModelsLeft: u.ModelsLeft(),
			Profile:    u.Profile,
		})
	}
	view := map[string]any{
		"turn":          gs.Turn,
		"phase":         gs.Phase.String(),
		"acting_player": gs.ActingPlayer,
		"board":         map[string]int{"cols": gs.Board.Cols(), "rows": gs.Board.Rows()},
		"units":         units,
		"done":          sess.env.Done(),
		"winner":        sess.env.Winner(),
	}
	sess.mu.Unlock()
	writeJSON(w, http.StatusOK, view)
}

// handleWatch upgrades to a websocket and streams every subsequent step
// record of the episode.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade")
		return
	}
	sess.mu.Lock()
	sess.watchers[conn] = true
	sess.mu.Unlock()
	s.log.Info().Str("episode", sess.id).Msg("watcher connected")

	// Reader loop only to detect disconnect.
	go func() {
		defer func() {
			sess.mu.Lock()
			delete(sess.watchers, conn)
			sess.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// broadcast pushes one record to every watcher; callers hold the session
// lock.
func (sess *session) broadcast(rec replay.StepRecord, log zerolog.Logger) {
	for conn := range sess.watchers {
		if err := conn.WriteJSON(rec); err != nil {
			log.Debug().Err(err).Str("episode", sess.id).Msg("drop watcher")
			delete(sess.watchers, conn)
			conn.Close()
		}
	}
}
