package models

import (
	"time"
)

// Replay parse_status values. A replay is created as StatusNew by the session
// sync worker and moved exactly once into one of the terminal states by the
// parse worker.
const (
	ReplayStatusNew       = "new"
	ReplayStatusCompleted = "completed"
	ReplayStatusRejected  = "rejected"
	ReplayStatusError     = "error"
)

// Replay is one game session discovered on the multiplayer server.
// (InstanceUUID, GameID) is the server's globally unique session key, so
// re-discovering the same session is a no-op rather than a duplicate row.
type Replay struct {
	ID string `json:"id" gorm:"primaryKey"`

	// External session key (server instance + per-instance game sequence)
	InstanceUUID string `json:"instance_uuid" gorm:"not null;uniqueIndex:idx_replays_session"`
	GameID       int64  `json:"game_id" gorm:"not null;uniqueIndex:idx_replays_session"`

	ReplayFilename string `json:"replay_filename"`
	// Location of the replay artifact: http(s):// URL, r2://key, or local path
	ReplayURL string `json:"replay_url"`

	WesnothVersion string     `json:"wesnoth_version"`
	GameName       string     `json:"game_name"`
	StartTime      time.Time  `json:"start_time"`
	EndTime        *time.Time `json:"end_time,omitempty"`
	OOS            bool      `json:"oos" gorm:"column:oos;default:false"`
	IsReload       bool      `json:"is_reload" gorm:"default:false"`

	// Pipeline state
	ParseStatus     string  `json:"parse_status" gorm:"type:varchar(16);default:'new';index"`
	Parsed          bool    `json:"parsed" gorm:"default:false"`
	NeedIntegration bool    `json:"need_integration" gorm:"default:false"`
	MatchID         *string `json:"match_id,omitempty" gorm:"index"`
	ParseError      *string `json:"parse_error,omitempty" gorm:"type:text"`

	// Set by the parse worker: how sure the pipeline is about the detected
	// result, and which signal produced it
	DetectionConfidence int    `json:"detection_confidence" gorm:"default:0"`
	DetectedFrom        string `json:"detected_from" gorm:"type:varchar(32)"`

	ParsingStartedAt   *time.Time `json:"parsing_started_at,omitempty"`
	ParsingCompletedAt *time.Time `json:"parsing_completed_at,omitempty"`

	Timestamps
}
