package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/GregSQT/w40k-engine/internal/board"
	"github.com/GregSQT/w40k-engine/internal/engine"
	"github.com/GregSQT/w40k-engine/internal/replay"
	"github.com/GregSQT/w40k-engine/internal/scenario"
)

const testScenarioYAML = `
name: api-duel
board:
  cols: 25
  rows: 21
seed: 99
max_turns: 10
weapons:
  rifle:
    range: 24
    attacks: "2"
    skill: 3
    s: 4
    ap: -1
    d: "1"
  blade:
    range: 0
    attacks: "3"
    skill: 3
    s: 4
    ap: 0
    d: "1"
profiles:
  marine:
    t: 4
    w: 2
    sv: 3
    models: 5
    move: 6
    charge: 6
    ranged: rifle
    melee: blade
units:
  - {player: 0, col: 9, row: 12, profile: marine}
  - {player: 1, col: 3, row: 9, profile: marine}
`

func testServer(t *testing.T, store *replay.Store) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewServer(zerolog.Nop(), store).Router())
	t.Cleanup(srv.Close)
	return srv
}

func createEpisode(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/episodes", "application/yaml", strings.NewReader(testScenarioYAML))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body struct {
		ID          string    `json:"id"`
		Seed        int64     `json:"seed"`
		Observation []float64 `json:"observation"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body.ID)
	require.Equal(t, int64(99), body.Seed)
	require.Len(t, body.Observation, 3+6*2)
	return body.ID
}

func postStep(t *testing.T, srv *httptest.Server, id string, req engine.ActionRequest) (*http.Response, engine.ActionResult) {
	t.Helper()
	payload, err := json.Marshal(req)
	require.NoError(t, err)
	resp, err := http.Post(srv.URL+"/api/episodes/"+id+"/step", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	var res engine.ActionResult
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	}
	return resp, res
}

func TestHealthz(t *testing.T) {
	srv := testServer(t, nil)
	resp, err := http.Get(srv.URL + "/api/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateRejectsBadScenario(t *testing.T) {
	srv := testServer(t, nil)
	resp, err := http.Post(srv.URL+"/api/episodes", "application/yaml", strings.NewReader("::: nope"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStepAndObserve(t *testing.T) {
	srv := testServer(t, nil)
	id := createEpisode(t, srv)

	resp, res := postStep(t, srv, id, engine.ActionRequest{
		UnitID: 0, Kind: engine.ActionMove, Target: board.Hex{Col: 9, Row: 6},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, res.Legal)
	require.Equal(t, 1, res.Step)
	require.NotZero(t, res.StateHash)

	// Illegal orders come back 200 with the verdict in the body.
	resp, res = postStep(t, srv, id, engine.ActionRequest{
		UnitID: 1, Kind: engine.ActionMove, Target: board.Hex{Col: 3, Row: 5},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.False(t, res.Legal)
	require.Equal(t, engine.ReasonNotYourTurn, res.Reason)

	obsResp, err := http.Get(srv.URL + "/api/episodes/" + id + "/observe")
	require.NoError(t, err)
	defer obsResp.Body.Close()
	require.Equal(t, http.StatusOK, obsResp.StatusCode)
	var obs struct {
		Observation []float64 `json:"observation"`
	}
	require.NoError(t, json.NewDecoder(obsResp.Body).Decode(&obs))
	require.Len(t, obs.Observation, 3+6*2)
	require.Equal(t, 6.0, obs.Observation[5], "moved unit row visible in observation")
}

func TestStateView(t *testing.T) {
	srv := testServer(t, nil)
	id := createEpisode(t, srv)

	resp, err := http.Get(srv.URL + "/api/episodes/" + id + "/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var view struct {
		Turn         int    `json:"turn"`
		Phase        string `json:"phase"`
		ActingPlayer int    `json:"acting_player"`
		Board        struct {
			Cols int `json:"cols"`
			Rows int `json:"rows"`
		} `json:"board"`
		Units []struct {
			ID         int       `json:"id"`
			Player     int       `json:"player"`
			Pos        board.Hex `json:"pos"`
			HP         int       `json:"hp"`
			ModelsLeft int       `json:"models_left"`
		} `json:"units"`
		Done   bool `json:"done"`
		Winner int  `json:"winner"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	require.Equal(t, 1, view.Turn)
	require.Equal(t, "move", view.Phase)
	require.Equal(t, 0, view.ActingPlayer)
	require.Equal(t, 25, view.Board.Cols)
	require.Equal(t, 21, view.Board.Rows)
	require.Len(t, view.Units, 2)
	require.Equal(t, 5, view.Units[0].ModelsLeft, "full-strength squad shows all models")
	require.False(t, view.Done)
	require.Equal(t, engine.NoWinner, view.Winner)
}

// A spectator polling the state endpoint must never observe the encoder
// racing a concurrent step; the handler snapshots unit values under the
// session lock before serializing.
func TestStateWhileStepping(t *testing.T) {
	srv := testServer(t, nil)
	id := createEpisode(t, srv)

	stop := make(chan struct{})
	pollErr := make(chan error, 1)
	go func() {
		for {
			select {
			case <-stop:
				pollErr <- nil
				return
			default:
			}
			resp, err := http.Get(srv.URL + "/api/episodes/" + id + "/state")
			if err != nil {
				pollErr <- err
				return
			}
			var view struct {
				Units []json.RawMessage `json:"units"`
			}
			err = json.NewDecoder(resp.Body).Decode(&view)
			resp.Body.Close()
			if err != nil {
				pollErr <- err
				return
			}
			if len(view.Units) != 2 {
				pollErr <- fmt.Errorf("state view returned %d units", len(view.Units))
				return
			}
		}
	}()

	// Shuttle both units back and forth so positions and HP-bearing fields
	// mutate while the poller encodes.
	targets0 := []board.Hex{{Col: 9, Row: 6}, {Col: 9, Row: 12}}
	targets1 := []board.Hex{{Col: 3, Row: 3}, {Col: 3, Row: 9}}
	for i := 0; i < 8; i++ {
		resp, res := postStep(t, srv, id, engine.ActionRequest{
			UnitID: 0, Kind: engine.ActionMove, Target: targets0[i%2],
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.True(t, res.Legal, "turn %d player 0 move", i)
		for j := 0; j < 3; j++ {
			postStep(t, srv, id, engine.ActionRequest{UnitID: 0, Kind: engine.ActionPass})
		}
		resp, res = postStep(t, srv, id, engine.ActionRequest{
			UnitID: 1, Kind: engine.ActionMove, Target: targets1[i%2],
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.True(t, res.Legal, "turn %d player 1 move", i)
		for j := 0; j < 3; j++ {
			postStep(t, srv, id, engine.ActionRequest{UnitID: 1, Kind: engine.ActionPass})
		}
	}
	close(stop)
	require.NoError(t, <-pollErr)
}

func TestUnknownEpisode(t *testing.T) {
	srv := testServer(t, nil)
	resp, _ := postStep(t, srv, "nope", engine.ActionRequest{UnitID: 0, Kind: engine.ActionPass})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	obsResp, err := http.Get(srv.URL + "/api/episodes/nope/observe")
	require.NoError(t, err)
	defer obsResp.Body.Close()
	require.Equal(t, http.StatusNotFound, obsResp.StatusCode)
}

func TestStepRejectsBadJSON(t *testing.T) {
	srv := testServer(t, nil)
	id := createEpisode(t, srv)
	resp, err := http.Post(srv.URL+"/api/episodes/"+id+"/step", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPersistenceAcrossSteps(t *testing.T) {
	store, err := replay.OpenStore(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	srv := testServer(t, store)
	id := createEpisode(t, srv)

	script := []engine.ActionRequest{
		{UnitID: 0, Kind: engine.ActionMove, Target: board.Hex{Col: 7, Row: 11}},
		{UnitID: 0, Kind: engine.ActionShoot, TargetUnit: 1},
		{UnitID: 0, Kind: engine.ActionPass},
	}
	for _, req := range script {
		resp, res := postStep(t, srv, id, req)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.True(t, res.Legal)
	}

	ep, steps, err := store.LoadEpisode(id)
	require.NoError(t, err)
	require.Equal(t, int64(99), ep.Seed)
	require.Len(t, steps, len(script))

	// The persisted trail replays clean against the same engine.
	report, err := replay.Verify(ep, steps, zerolog.Nop())
	require.NoError(t, err)
	require.True(t, report.OK())

	// The stored scenario parses back to the submitted one.
	sc, err := scenario.Parse([]byte(ep.Scenario))
	require.NoError(t, err)
	require.Equal(t, "api-duel", sc.Name)
}

func TestWatcherReceivesSteps(t *testing.T) {
	srv := testServer(t, nil)
	id := createEpisode(t, srv)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/episodes/" + id + "/watch"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// The handshake completes before the server registers the watcher;
	// give the handler a moment to finish.
	time.Sleep(50 * time.Millisecond)

	httpResp, res := postStep(t, srv, id, engine.ActionRequest{UnitID: 0, Kind: engine.ActionPass})
	require.Equal(t, http.StatusOK, httpResp.StatusCode)
	require.True(t, res.Legal)

	var rec replay.StepRecord
	require.NoError(t, conn.ReadJSON(&rec))
	require.Equal(t, id, rec.EpisodeID)
	require.Equal(t, 1, rec.Step)
	require.Equal(t, "pass", rec.Kind)
	require.True(t, rec.Legal)
}
