package replay

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(filepath.Join(t.TempDir(), "replay.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ep, steps := recordEpisode(t)

	require.NoError(t, s.SaveEpisode(ep))
	for _, rec := range steps {
		require.NoError(t, s.AppendStep(rec))
	}
	require.NoError(t, s.FinishEpisode(ep.ID, ep.Winner, len(steps)))

	gotEp, gotSteps, err := s.LoadEpisode(ep.ID)
	require.NoError(t, err)
	require.Equal(t, ep.ID, gotEp.ID)
	require.Equal(t, ep.Seed, gotEp.Seed)
	require.Equal(t, ep.Scenario, gotEp.Scenario)
	require.Equal(t, ep.Winner, gotEp.Winner)
	require.Equal(t, len(steps), gotEp.Steps)
	require.Equal(t, steps, gotSteps)

	// A stored episode verifies clean.
	report, err := Verify(gotEp, gotSteps, zerolog.Nop())
	require.NoError(t, err)
	require.True(t, report.OK())
}

func TestStoreDuplicateEpisodeRejected(t *testing.T) {
	s := openTestStore(t)
	ep, _ := recordEpisode(t)
	require.NoError(t, s.SaveEpisode(ep))
	require.Error(t, s.SaveEpisode(ep))
}

func TestStoreDuplicateStepRejected(t *testing.T) {
	s := openTestStore(t)
	ep, steps := recordEpisode(t)
	require.NoError(t, s.SaveEpisode(ep))
	require.NoError(t, s.AppendStep(steps[0]))
	require.Error(t, s.AppendStep(steps[0]))
}

func TestStoreLoadMissingEpisode(t *testing.T) {
	s := openTestStore(t)
	_, _, err := s.LoadEpisode("no-such-id")
	require.Error(t, err)
}

func TestStoreListEpisodes(t *testing.T) {
	s := openTestStore(t)
	a, _ := recordEpisode(t)
	b, _ := recordEpisode(t)
	b.ID = "ep-test-2"
	b.CreatedAt = a.CreatedAt.Add(1)

	require.NoError(t, s.SaveEpisode(a))
	require.NoError(t, s.SaveEpisode(b))

	eps, err := s.ListEpisodes(10)
	require.NoError(t, err)
	require.Len(t, eps, 2)
	require.Equal(t, "ep-test-2", eps[0].ID, "most recent first")

	eps, err = s.ListEpisodes(1)
	require.NoError(t, err)
	require.Len(t, eps, 1)
}
