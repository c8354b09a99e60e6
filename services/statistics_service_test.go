package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"wesnoth-ladder-system/models"
)

func materializeRanked(t *testing.T, db *gorm.DB, instanceUUID string, gameID int64) *models.Match {
	t.Helper()
	replay := seedReplay(t, db, instanceUUID, gameID)
	match, err := NewMatchService(db).MaterializeMatch(replay, rankedOutcome(), &ClassificationResult{Class: ClassRanked, Confidence: ConfidenceAutoConfirm})
	require.NoError(t, err)
	return match
}

func statRow(t *testing.T, db *gorm.DB, playerID string, opponentID, mapName, faction *string) *models.PlayerStatistic {
	t.Helper()
	query := db.Where("player_id = ?", playerID)
	for column, value := range map[string]*string{
		"opponent_id": opponentID,
		"map_name":    mapName,
		"faction":     faction,
	} {
		if value == nil {
			query = query.Where(column + " IS NULL")
		} else {
			query = query.Where(column+" = ?", *value)
		}
	}
	var stat models.PlayerStatistic
	require.NoError(t, query.First(&stat).Error)
	return &stat
}

func TestRecordMatchFansOutEightRows(t *testing.T) {
	db := newTestDB(t)
	materializeRanked(t, db, "inst-c", 1)

	var total int64
	db.Model(&models.PlayerStatistic{}).Count(&total)
	assert.EqualValues(t, 8, total)

	var alice, bob models.Player
	require.NoError(t, db.Where("nickname = ?", "alice").First(&alice).Error)
	require.NoError(t, db.Where("nickname = ?", "bob").First(&bob).Error)

	global := statRow(t, db, alice.ID, nil, nil, nil)
	assert.Equal(t, 1, global.TotalGames)
	assert.Equal(t, 1, global.Wins)
	assert.Equal(t, 100.0, global.Winrate)
	assert.Equal(t, 20.0, global.AvgRatingDelta)
	assert.Nil(t, global.LastOpponentRating)

	mapName := "Den of Onis"
	perMap := statRow(t, db, bob.ID, nil, &mapName, nil)
	assert.Equal(t, 1, perMap.Losses)
	assert.Equal(t, 0.0, perMap.Winrate)

	faction := "Northerners"
	perFaction := statRow(t, db, bob.ID, nil, nil, &faction)
	assert.Equal(t, 1, perFaction.TotalGames)

	// head-to-head rows carry the opponent's post-match rating
	h2h := statRow(t, db, alice.ID, &bob.ID, nil, nil)
	require.NotNil(t, h2h.LastOpponentRating)
	assert.Equal(t, 1380, *h2h.LastOpponentRating)
	require.NotNil(t, h2h.LastMatchAt)
}

func TestRecordMatchIncrementsExistingRows(t *testing.T) {
	db := newTestDB(t)
	materializeRanked(t, db, "inst-c", 1)
	materializeRanked(t, db, "inst-c", 2)

	// same players, same map, same factions: still exactly eight rows
	var total int64
	db.Model(&models.PlayerStatistic{}).Count(&total)
	assert.EqualValues(t, 8, total)

	var alice models.Player
	require.NoError(t, db.Where("nickname = ?", "alice").First(&alice).Error)

	global := statRow(t, db, alice.ID, nil, nil, nil)
	assert.Equal(t, 2, global.TotalGames)
	assert.Equal(t, 2, global.Wins)
	assert.Equal(t, 100.0, global.Winrate)
	// first win +20 from 1400, second +18 from 1420 vs 1380
	assert.Equal(t, 19.0, global.AvgRatingDelta)
}

func TestRecordMatchDimensionRowsStayDistinct(t *testing.T) {
	db := newTestDB(t)
	materializeRanked(t, db, "inst-c", 1)

	var alice models.Player
	require.NoError(t, db.Where("nickname = ?", "alice").First(&alice).Error)

	// a global lookup must never match the per-map or head-to-head rows
	var globals []models.PlayerStatistic
	require.NoError(t, db.
		Where("player_id = ? AND opponent_id IS NULL AND map_name IS NULL AND faction IS NULL", alice.ID).
		Find(&globals).Error)
	assert.Len(t, globals, 1)
}

func TestRecordMatchMixedResultsWinrate(t *testing.T) {
	db := newTestDB(t)
	service := NewMatchService(db)

	// alice wins one, then loses two
	replay := seedReplay(t, db, "inst-b", 1)
	_, err := service.MaterializeMatch(replay, rankedOutcome(), &ClassificationResult{Class: ClassRanked, Confidence: ConfidenceAutoConfirm})
	require.NoError(t, err)

	reversed := rankedOutcome()
	reversed.Victory.WinnerName, reversed.Victory.LoserName = "bob", "alice"
	reversed.Victory.WinnerSide, reversed.Victory.LoserSide = 2, 1
	reversed.Victory.WinnerFaction, reversed.Victory.LoserFaction = "Northerners", "Rebels"
	for gameID := int64(2); gameID <= 3; gameID++ {
		replay := seedReplay(t, db, "inst-b", gameID)
		_, err := service.MaterializeMatch(replay, reversed, &ClassificationResult{Class: ClassRanked, Confidence: ConfidenceAutoConfirm})
		require.NoError(t, err)
	}

	var alice models.Player
	require.NoError(t, db.Where("nickname = ?", "alice").First(&alice).Error)

	global := statRow(t, db, alice.ID, nil, nil, nil)
	assert.Equal(t, 3, global.TotalGames)
	assert.Equal(t, 1, global.Wins)
	assert.Equal(t, 2, global.Losses)
	assert.Equal(t, 33.33, global.Winrate)
}

func TestPlayerStatisticsListing(t *testing.T) {
	db := newTestDB(t)
	materializeRanked(t, db, "inst-c", 1)

	var alice models.Player
	require.NoError(t, db.Where("nickname = ?", "alice").First(&alice).Error)

	stats, err := NewStatisticsService(db).PlayerStatistics(alice.ID)
	require.NoError(t, err)
	require.Len(t, stats, 4)
	// global row first
	assert.Nil(t, stats[0].OpponentID)
	assert.Nil(t, stats[0].MapName)
	assert.Nil(t, stats[0].Faction)
}
