package models

import (
	"time"

	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// Tournament modes and statuses relevant to replay classification
const (
	TournamentModeRanked   = "ranked"
	TournamentModeUnranked = "unranked"
	TournamentModeTeam     = "team"

	TournamentStatusOpen       = "open"
	TournamentStatusInProgress = "in_progress"
	TournamentStatusFinished   = "finished"
)

// Tournament is reference data for the classifier: the replay addon embeds a
// tournament name, and only open/in-progress tournaments are eligible targets.
type Tournament struct {
	ID          string `json:"id" gorm:"primaryKey"`
	Name        string `json:"name" gorm:"not null;index"`
	Slug        string `json:"slug" gorm:"uniqueIndex"`
	Description string `json:"description"`
	Mode        string `json:"mode" gorm:"type:varchar(16);default:'ranked';check:mode IN ('ranked','unranked','team')"`
	Status      string `json:"status" gorm:"type:varchar(16);default:'open';index"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time,omitempty"`

	Participants []TournamentParticipant `json:"participants,omitempty" gorm:"foreignKey:TournamentID"`
	Teams        []TournamentTeam        `json:"teams,omitempty" gorm:"foreignKey:TournamentID"`

	Timestamps
}

// BeforeCreate derives a stable slug from the tournament name.
func (t *Tournament) BeforeCreate(tx *gorm.DB) error {
	if t.Slug == "" {
		t.Slug = slug.Make(t.Name)
	}
	return nil
}

// TournamentParticipant registers a ladder player as an entrant. TeamID is set
// for team-mode tournaments only.
type TournamentParticipant struct {
	ID           string  `json:"id" gorm:"primaryKey"`
	TournamentID string  `json:"tournament_id" gorm:"not null;index:idx_tournament_player,unique"`
	PlayerID     string  `json:"player_id" gorm:"not null;index:idx_tournament_player,unique"`
	TeamID       *string `json:"team_id,omitempty" gorm:"index"`
	Seed         int     `json:"seed" gorm:"default:0"`

	Timestamps
}

// TournamentTeam groups entrants for 2v2 play.
type TournamentTeam struct {
	ID           string `json:"id" gorm:"primaryKey"`
	TournamentID string `json:"tournament_id" gorm:"not null;index"`
	Name         string `json:"name"`

	Timestamps
}

// TournamentMatch statuses. A replay only links to a placeholder that is still
// waiting for a result.
const (
	TournamentMatchStatusPending   = "pending"
	TournamentMatchStatusUnstarted = "unstarted"
	TournamentMatchStatusReported  = "reported"
)

// TournamentMatch is a bracket placeholder created by the round-advancement
// engine (out of scope here). The pipeline links confirmed replays to it and
// the bracket engine picks the result up from there.
type TournamentMatch struct {
	ID           string `json:"id" gorm:"primaryKey"`
	TournamentID string `json:"tournament_id" gorm:"not null;index"`

	Player1ID *string `json:"player1_id,omitempty" gorm:"index"`
	Player2ID *string `json:"player2_id,omitempty" gorm:"index"`
	Team1ID   *string `json:"team1_id,omitempty"`
	Team2ID   *string `json:"team2_id,omitempty"`

	Status     string     `json:"status" gorm:"type:varchar(16);default:'pending'"`
	WinnerID   *string    `json:"winner_id,omitempty"`
	MatchID    *string    `json:"match_id,omitempty" gorm:"index"` // the rated Match, once reported
	ReportedAt *time.Time `json:"reported_at,omitempty"`

	Timestamps
}
