package models

import (
	"time"
)

// PlayerStatistic is one incrementally-maintained aggregate view of a player's
// results. The dimension columns (OpponentID, MapName, Faction,
// OpponentFaction) are nullable: a global row leaves all of them nil, a
// head-to-head row sets only OpponentID, and so on. Exactly one row exists per
// distinct non-nil dimension combination per player; unset dimensions are
// always matched as IS NULL, never loosely.
type PlayerStatistic struct {
	ID       string `json:"id" gorm:"primaryKey"`
	PlayerID string `json:"player_id" gorm:"index;not null"`

	OpponentID      *string `json:"opponent_id,omitempty" gorm:"index"`
	MapName         *string `json:"map_name,omitempty"`
	Faction         *string `json:"faction,omitempty"`
	OpponentFaction *string `json:"opponent_faction,omitempty"`

	TotalGames int `json:"total_games" gorm:"default:0"`
	Wins       int `json:"wins" gorm:"default:0"`
	Losses     int `json:"losses" gorm:"default:0"`
	// round(100 * wins / total_games, 2)
	Winrate float64 `json:"winrate" gorm:"default:0"`
	// running mean of this player's rating delta across the row's games
	AvgRatingDelta float64 `json:"avg_rating_delta" gorm:"default:0"`

	// Head-to-head rows only: the opponent's rating after the last match
	// against this player ("last result against me" display).
	LastOpponentRating *int       `json:"last_opponent_rating,omitempty"`
	LastMatchAt        *time.Time `json:"last_match_at,omitempty"`

	Timestamps
}
