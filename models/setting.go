package models

// Setting keys used by the ingestion pipeline.
const (
	SettingReplayLastCheck = "replay_last_check_timestamp"
)

// SystemSetting is a named key/value row. The session sync watermark lives
// here as an RFC-3339 timestamp string, read at the start and overwritten at
// the end of every sync cycle.
type SystemSetting struct {
	ID    string `json:"id" gorm:"primaryKey"`
	Key   string `json:"key" gorm:"column:setting_key;uniqueIndex;not null"`
	Value string `json:"value" gorm:"column:setting_value;type:text"`

	Timestamps
}
