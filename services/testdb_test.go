package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"wesnoth-ladder-system/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.Replay{},
		&models.Match{},
		&models.Player{},
		&models.PlayerStatistic{},
		&models.Tournament{},
		&models.TournamentParticipant{},
		&models.TournamentTeam{},
		&models.TournamentMatch{},
		&models.Faction{},
		&models.GameMap{},
		&models.SystemSetting{},
	))
	return db
}

func seedPlayer(t *testing.T, db *gorm.DB, nickname string, rating *int, matchesPlayed int) *models.Player {
	t.Helper()
	player := &models.Player{
		ID:            uuid.NewString(),
		Nickname:      nickname,
		Rating:        rating,
		MatchesPlayed: matchesPlayed,
		Trend:         "-",
		IsActive:      true,
	}
	require.NoError(t, db.Create(player).Error)
	return player
}

func seedRankedAssets(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.Create(&models.GameMap{
		ID: uuid.NewString(), Name: "Den of Onis", IsRanked: true,
	}).Error)
	require.NoError(t, db.Create(&models.GameMap{
		ID: uuid.NewString(), Name: "Silly Fun Map", IsRanked: false,
	}).Error)
	for _, name := range []string{"Rebels", "Northerners"} {
		require.NoError(t, db.Create(&models.Faction{
			ID: uuid.NewString(), Name: name, EraName: "Default", IsRanked: true,
		}).Error)
	}
	require.NoError(t, db.Create(&models.Faction{
		ID: uuid.NewString(), Name: "April Fools", EraName: "Fun", IsRanked: false,
	}).Error)
}

func seedReplay(t *testing.T, db *gorm.DB, instanceUUID string, gameID int64) *models.Replay {
	t.Helper()
	replay := &models.Replay{
		ID:              uuid.NewString(),
		InstanceUUID:    instanceUUID,
		GameID:          gameID,
		ReplayFilename:  "test.rpy.bz2",
		ReplayURL:       "https://replays.example/test.rpy.bz2",
		ParseStatus:     models.ReplayStatusNew,
		NeedIntegration: true,
	}
	require.NoError(t, db.Create(replay).Error)
	return replay
}

func intPtr(v int) *int { return &v }
