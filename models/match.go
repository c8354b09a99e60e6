package models

// Match status values
const (
	MatchStatusPendingReport = "pending_report"
	MatchStatusConfirmed     = "confirmed"
	MatchStatusRejected      = "rejected"
)

// Match is the canonical rated-match record produced from a replay.
// ReplayID is unique: at most one match ever exists per source replay, which
// is what makes re-processing the same replay converge instead of duplicating.
type Match struct {
	ID string `json:"id" gorm:"primaryKey"`

	WinnerID      string `json:"winner_id" gorm:"index;not null"`
	LoserID       string `json:"loser_id" gorm:"index;not null"`
	WinnerFaction string `json:"winner_faction"`
	LoserFaction  string `json:"loser_faction"`

	MapName string `json:"map_name"`
	EraName string `json:"era_name"`

	Status string `json:"status" gorm:"type:varchar(16);default:'pending_report';check:status IN ('pending_report','confirmed','rejected')"`

	// Source replay linkage, unique so the upsert is idempotent
	ReplayID     *string `json:"replay_id,omitempty" gorm:"uniqueIndex"`
	AutoReported bool    `json:"auto_reported" gorm:"default:false"`
	DetectedFrom string  `json:"detected_from" gorm:"type:varchar(32)"`

	// Rating deltas stay nil until the rating engine has run; a non-nil delta
	// means the result was already applied and must not be applied again.
	WinnerRatingDelta *int `json:"winner_rating_delta,omitempty"`
	LoserRatingDelta  *int `json:"loser_rating_delta,omitempty"`

	// Tournament linkage (nil for global ranked matches)
	TournamentID      *string `json:"tournament_id,omitempty" gorm:"index"`
	TournamentMatchID *string `json:"tournament_match_id,omitempty" gorm:"index"`
	IsTeamMatch       bool    `json:"is_team_match" gorm:"default:false"`

	Timestamps
}
