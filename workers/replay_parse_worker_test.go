package workers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"wesnoth-ladder-system/models"
)

const rankedDoc = `
version="1.18.2"
[multiplayer]
	mp_scenario_name="Den of Onis"
	mp_era_name="Default"
[/multiplayer]
[old_side1]
	current_player="alice"
	faction="Rebels"
[/old_side1]
[old_side2]
	current_player="bob"
	faction="Northerners"
[/old_side2]
[scenario]
	name="Den of Onis"
	[scenario_data]
		ranked_mode="yes"
	[/scenario_data]
[/scenario]
`

const unflaggedDoc = `
[old_side1]
	current_player="alice"
[/old_side1]
[old_side2]
	current_player="bob"
[/old_side2]
[scenario]
	name="Casual Map"
[/scenario]
`

func seedRankedAssets(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.Create(&models.GameMap{
		ID: uuid.NewString(), Name: "Den of Onis", IsRanked: true,
	}).Error)
	for _, name := range []string{"Rebels", "Northerners"} {
		require.NoError(t, db.Create(&models.Faction{
			ID: uuid.NewString(), Name: name, EraName: "Default", IsRanked: true,
		}).Error)
	}
}

func queueReplay(t *testing.T, db *gorm.DB, gameID int64, url string) *models.Replay {
	t.Helper()
	replay := &models.Replay{
		ID:              uuid.NewString(),
		InstanceUUID:    "inst-w",
		GameID:          gameID,
		ReplayFilename:  "game.rpy",
		ReplayURL:       url,
		ParseStatus:     models.ReplayStatusNew,
		NeedIntegration: true,
	}
	require.NoError(t, db.Create(replay).Error)
	return replay
}

func replayArchive(t *testing.T, docs map[string]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		doc, ok := docs[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(doc))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestParseWorkerMaterializesRankedMatch(t *testing.T) {
	db := newTestDB(t)
	seedRankedAssets(t, db)
	archive := replayArchive(t, map[string]string{"/game1.rpy": rankedDoc})
	replay := queueReplay(t, db, 1, archive.URL+"/game1.rpy")

	worker := NewReplayParseWorker(db)
	summary, err := worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Picked)
	assert.Equal(t, 1, summary.Matched)

	var updated models.Replay
	require.NoError(t, db.Where("id = ?", replay.ID).First(&updated).Error)
	assert.Equal(t, models.ReplayStatusCompleted, updated.ParseStatus)
	assert.True(t, updated.Parsed)
	assert.Equal(t, 2, updated.DetectionConfidence)
	require.NotNil(t, updated.MatchID)
	assert.NotNil(t, updated.ParsingStartedAt)
	assert.NotNil(t, updated.ParsingCompletedAt)

	var match models.Match
	require.NoError(t, db.Where("id = ?", *updated.MatchID).First(&match).Error)
	assert.Equal(t, models.MatchStatusConfirmed, match.Status)

	var alice models.Player
	require.NoError(t, db.Where("nickname = ?", "alice").First(&alice).Error)
	require.NotNil(t, alice.Rating)
	assert.Equal(t, 1420, *alice.Rating)
}

func TestParseWorkerCompletesRejectedReplayWithoutMatch(t *testing.T) {
	db := newTestDB(t)
	archive := replayArchive(t, map[string]string{"/game2.rpy": unflaggedDoc})
	replay := queueReplay(t, db, 2, archive.URL+"/game2.rpy")

	summary, err := NewReplayParseWorker(db).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Rejected)

	var updated models.Replay
	require.NoError(t, db.Where("id = ?", replay.ID).First(&updated).Error)
	assert.Equal(t, models.ReplayStatusCompleted, updated.ParseStatus)
	assert.True(t, updated.Parsed)
	assert.Nil(t, updated.MatchID)
	assert.Nil(t, updated.ParseError)

	var matches int64
	db.Model(&models.Match{}).Count(&matches)
	assert.EqualValues(t, 0, matches)
}

func TestParseWorkerMarksUnfetchableReplayErrored(t *testing.T) {
	db := newTestDB(t)
	archive := replayArchive(t, map[string]string{})
	replay := queueReplay(t, db, 3, archive.URL+"/missing.rpy")

	summary, err := NewReplayParseWorker(db).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Errored)

	var updated models.Replay
	require.NoError(t, db.Where("id = ?", replay.ID).First(&updated).Error)
	assert.Equal(t, models.ReplayStatusError, updated.ParseStatus)
	require.NotNil(t, updated.ParseError)
	assert.NotEmpty(t, *updated.ParseError)
}

func TestParseWorkerSkipsAlreadyProcessedReplays(t *testing.T) {
	db := newTestDB(t)
	replay := queueReplay(t, db, 4, "https://replays.example/game.rpy")
	require.NoError(t, db.Model(replay).Updates(map[string]interface{}{
		"parse_status": models.ReplayStatusCompleted,
		"parsed":       true,
	}).Error)

	summary, err := NewReplayParseWorker(db).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Picked)
}

func TestParseWorkerIsIdempotentAcrossRuns(t *testing.T) {
	db := newTestDB(t)
	seedRankedAssets(t, db)
	archive := replayArchive(t, map[string]string{"/game5.rpy": rankedDoc})
	replay := queueReplay(t, db, 5, archive.URL+"/game5.rpy")

	worker := NewReplayParseWorker(db)
	_, err := worker.RunOnce(context.Background())
	require.NoError(t, err)

	// requeue the same replay by hand, as an operator retry would
	require.NoError(t, db.Model(replay).Updates(map[string]interface{}{
		"parse_status": models.ReplayStatusNew,
		"parsed":       false,
	}).Error)
	_, err = worker.RunOnce(context.Background())
	require.NoError(t, err)

	var matches int64
	db.Model(&models.Match{}).Count(&matches)
	assert.EqualValues(t, 1, matches)

	var alice models.Player
	require.NoError(t, db.Where("nickname = ?", "alice").First(&alice).Error)
	assert.Equal(t, 1420, *alice.Rating)
	assert.Equal(t, 1, alice.MatchesPlayed)
}
