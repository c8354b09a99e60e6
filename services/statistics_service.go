package services

import (
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"wesnoth-ladder-system/models"
	"wesnoth-ladder-system/utils"
)

// StatisticsService maintains the incrementally-aggregated per-player stats.
// Every rated result fans out into eight rows: for each of the two players, a
// global row, a head-to-head row against the opponent, a per-map row and a
// per-faction row.
type StatisticsService struct {
	DB *gorm.DB
}

func NewStatisticsService(db *gorm.DB) *StatisticsService {
	return &StatisticsService{DB: db}
}

type statDimensions struct {
	PlayerID        string
	OpponentID      *string
	MapName         *string
	Faction         *string
	OpponentFaction *string
}

// RecordMatch fans one rated match out into the eight dimension rows. Must be
// called after the rating pass so the match deltas and the players' new
// ratings are final.
func (s *StatisticsService) RecordMatch(tx *gorm.DB, match *models.Match, winner, loser *models.Player) error {
	winnerDelta := deltaOrZero(match.WinnerRatingDelta)
	loserDelta := deltaOrZero(match.LoserRatingDelta)

	type fanout struct {
		dims     statDimensions
		won      bool
		delta    int
		oppAfter *int
	}
	rows := []fanout{
		{dims: statDimensions{PlayerID: winner.ID}, won: true, delta: winnerDelta},
		{dims: statDimensions{PlayerID: loser.ID}, won: false, delta: loserDelta},
		{dims: statDimensions{PlayerID: winner.ID, OpponentID: &loser.ID}, won: true, delta: winnerDelta, oppAfter: loser.Rating},
		{dims: statDimensions{PlayerID: loser.ID, OpponentID: &winner.ID}, won: false, delta: loserDelta, oppAfter: winner.Rating},
	}
	if match.MapName != "" {
		mapName := match.MapName
		rows = append(rows,
			fanout{dims: statDimensions{PlayerID: winner.ID, MapName: &mapName}, won: true, delta: winnerDelta},
			fanout{dims: statDimensions{PlayerID: loser.ID, MapName: &mapName}, won: false, delta: loserDelta},
		)
	}
	if match.WinnerFaction != "" {
		faction := match.WinnerFaction
		rows = append(rows, fanout{dims: statDimensions{PlayerID: winner.ID, Faction: &faction}, won: true, delta: winnerDelta})
	}
	if match.LoserFaction != "" {
		faction := match.LoserFaction
		rows = append(rows, fanout{dims: statDimensions{PlayerID: loser.ID, Faction: &faction}, won: false, delta: loserDelta})
	}

	for _, row := range rows {
		if err := s.upsertRow(tx, row.dims, row.won, row.delta, row.oppAfter); err != nil {
			return err
		}
	}

	log.Printf("📊 [STATS] %d statistic row(s) updated for match %s", len(rows), match.ID)
	return nil
}

// upsertRow finds the row matching the exact dimension combination, treating
// every unset dimension as IS NULL so a global row can never absorb a
// head-to-head update, then increments it or inserts a fresh one.
func (s *StatisticsService) upsertRow(tx *gorm.DB, dims statDimensions, won bool, ratingDelta int, opponentRatingAfter *int) error {
	query := tx.Model(&models.PlayerStatistic{}).Where("player_id = ?", dims.PlayerID)
	query = whereNullable(query, "opponent_id", dims.OpponentID)
	query = whereNullable(query, "map_name", dims.MapName)
	query = whereNullable(query, "faction", dims.Faction)
	query = whereNullable(query, "opponent_faction", dims.OpponentFaction)

	var stat models.PlayerStatistic
	err := query.First(&stat).Error
	now := time.Now()

	if errors.Is(err, gorm.ErrRecordNotFound) {
		stat = models.PlayerStatistic{
			ID:              uuid.NewString(),
			PlayerID:        dims.PlayerID,
			OpponentID:      dims.OpponentID,
			MapName:         dims.MapName,
			Faction:         dims.Faction,
			OpponentFaction: dims.OpponentFaction,
			TotalGames:      1,
			AvgRatingDelta:  float64(ratingDelta),
			LastMatchAt:     &now,
		}
		if won {
			stat.Wins = 1
		} else {
			stat.Losses = 1
		}
		stat.Winrate = utils.RoundWinrate(stat.Wins, stat.TotalGames)
		stat.LastOpponentRating = opponentRatingAfter
		if createErr := tx.Create(&stat).Error; createErr != nil {
			return fmt.Errorf("inserting statistic row: %w", createErr)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("looking up statistic row: %w", err)
	}

	total := stat.TotalGames
	stat.AvgRatingDelta = roundTo2((stat.AvgRatingDelta*float64(total) + float64(ratingDelta)) / float64(total+1))
	stat.TotalGames = total + 1
	if won {
		stat.Wins++
	} else {
		stat.Losses++
	}
	stat.Winrate = utils.RoundWinrate(stat.Wins, stat.TotalGames)
	if opponentRatingAfter != nil {
		stat.LastOpponentRating = opponentRatingAfter
	}
	stat.LastMatchAt = &now

	if saveErr := tx.Save(&stat).Error; saveErr != nil {
		return fmt.Errorf("updating statistic row: %w", saveErr)
	}
	return nil
}

// PlayerStatistics returns every aggregate row for one player, global row
// first.
func (s *StatisticsService) PlayerStatistics(playerID string) ([]models.PlayerStatistic, error) {
	var stats []models.PlayerStatistic
	err := s.DB.
		Where("player_id = ?", playerID).
		Order("opponent_id NULLS FIRST, map_name NULLS FIRST, faction NULLS FIRST").
		Find(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("loading statistics for player %s: %w", playerID, err)
	}
	return stats, nil
}

func whereNullable(query *gorm.DB, column string, value *string) *gorm.DB {
	if value == nil {
		return query.Where(column + " IS NULL")
	}
	return query.Where(column+" = ?", *value)
}

func deltaOrZero(delta *int) int {
	if delta == nil {
		return 0
	}
	return *delta
}

func roundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}
