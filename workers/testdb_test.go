package workers

import (
	"testing"

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
