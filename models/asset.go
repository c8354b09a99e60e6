package models

// Faction is era reference data. IsRanked marks it approved for global ranked
// play; anything else can still appear in tournament matches.
type Faction struct {
	ID       string `json:"id" gorm:"primaryKey"`
	Name     string `json:"name" gorm:"uniqueIndex;not null"`
	EraName  string `json:"era_name"`
	IsRanked bool   `json:"is_ranked" gorm:"default:false"`

	Timestamps
}

// GameMap is map reference data with the same ranked-approval flag.
type GameMap struct {
	ID       string `json:"id" gorm:"primaryKey"`
	Name     string `json:"name" gorm:"uniqueIndex;not null"`
	IsRanked bool   `json:"is_ranked" gorm:"default:false"`

	Timestamps
}
