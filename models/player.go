package models

// DefaultStartingRating is assigned when the pipeline first sees a nickname.
const DefaultStartingRating = 1400

// Player is a ladder participant. Rows are created lazily the first time a
// nickname shows up in a replay; a nil Rating means the player was registered
// through the API but has never been rated.
type Player struct {
	ID       string `json:"id" gorm:"primaryKey"`
	Nickname string `json:"nickname" gorm:"uniqueIndex;not null"`

	Rating        *int `json:"rating,omitempty"`
	MatchesPlayed int  `json:"matches_played" gorm:"default:0"`
	TotalWins     int  `json:"total_wins" gorm:"default:0"`
	TotalLosses   int  `json:"total_losses" gorm:"default:0"`

	// Compact streak token: "+3" = three wins in a row, "-1" = just lost,
	// "-" = no streak yet.
	Trend string `json:"trend" gorm:"type:varchar(8);default:'-'"`

	IsActive bool `json:"is_active" gorm:"default:true"`

	Timestamps
}
