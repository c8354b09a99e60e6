package services

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"wesnoth-ladder-system/models"
)

// PipelineJobStatus is a snapshot of one background job for the status API.
type PipelineJobStatus struct {
	Name        string     `json:"name"`
	Running     bool       `json:"running"`
	LastRunAt   *time.Time `json:"last_run_at,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	LastSummary string     `json:"last_summary,omitempty"`
}

// StatusService serves the read-only pipeline inspection API. Job snapshots
// come through a closure so the HTTP layer stays decoupled from the workers.
type StatusService struct {
	DB        *gorm.DB
	Stats     *StatisticsService
	JobStatus func() []PipelineJobStatus
}

func NewStatusService(db *gorm.DB, jobStatus func() []PipelineJobStatus) *StatusService {
	return &StatusService{
		DB:        db,
		Stats:     NewStatisticsService(db),
		JobStatus: jobStatus,
	}
}

// ListReplays returns recent replays, newest first, optionally filtered by
// parse status. Query params: status, limit (default 50, max 200), offset.
func (s *StatusService) ListReplays(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	if offset < 0 {
		offset = 0
	}

	query := s.DB.Model(&models.Replay{})
	if status := c.Query("status"); status != "" {
		query = query.Where("parse_status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to count replays"})
	}

	var replays []models.Replay
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&replays).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load replays"})
	}

	return c.JSON(fiber.Map{
		"replays": replays,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

// GetReplay returns one replay with its match, if any.
func (s *StatusService) GetReplay(c *fiber.Ctx) error {
	var replay models.Replay
	err := s.DB.Where("id = ?", c.Params("id")).First(&replay).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Replay not found"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load replay"})
	}

	response := fiber.Map{"replay": replay}
	if replay.MatchID != nil {
		var match models.Match
		if err := s.DB.Where("id = ?", *replay.MatchID).First(&match).Error; err == nil {
			response["match"] = match
		}
	}
	return c.JSON(response)
}

// GetMatch returns one match with both player rows.
func (s *StatusService) GetMatch(c *fiber.Ctx) error {
	var match models.Match
	err := s.DB.Where("id = ?", c.Params("id")).First(&match).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Match not found"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load match"})
	}

	var winner, loser models.Player
	s.DB.Where("id = ?", match.WinnerID).First(&winner)
	s.DB.Where("id = ?", match.LoserID).First(&loser)

	return c.JSON(fiber.Map{
		"match":  match,
		"winner": winner,
		"loser":  loser,
	})
}

// GetPlayer returns a player's ladder card by nickname.
func (s *StatusService) GetPlayer(c *fiber.Ctx) error {
	player, err := s.findPlayer(c)
	if err != nil || player == nil {
		return err
	}
	return c.JSON(fiber.Map{"player": player})
}

// GetPlayerStatistics returns every aggregate statistics row for a player.
func (s *StatusService) GetPlayerStatistics(c *fiber.Ctx) error {
	player, err := s.findPlayer(c)
	if err != nil || player == nil {
		return err
	}

	stats, err := s.Stats.PlayerStatistics(player.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load statistics"})
	}
	return c.JSON(fiber.Map{
		"player":     player,
		"statistics": stats,
	})
}

// GetPipelineStatus reports the background jobs plus queue depth counters.
func (s *StatusService) GetPipelineStatus(c *fiber.Ctx) error {
	var pending, errored int64
	s.DB.Model(&models.Replay{}).Where("parse_status = ?", models.ReplayStatusNew).Count(&pending)
	s.DB.Model(&models.Replay{}).Where("parse_status = ?", models.ReplayStatusError).Count(&errored)

	var watermark models.SystemSetting
	watermarkValue := ""
	if err := s.DB.Where("setting_key = ?", models.SettingReplayLastCheck).First(&watermark).Error; err == nil {
		watermarkValue = watermark.Value
	}

	var jobs []PipelineJobStatus
	if s.JobStatus != nil {
		jobs = s.JobStatus()
	}

	return c.JSON(fiber.Map{
		"jobs":            jobs,
		"pending_replays": pending,
		"errored_replays": errored,
		"watermark":       watermarkValue,
	})
}

func (s *StatusService) findPlayer(c *fiber.Ctx) (*models.Player, error) {
	var player models.Player
	err := s.DB.Where("nickname = ?", c.Params("nickname")).First(&player).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Player not found"})
	}
	if err != nil {
		return nil, c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load player"})
	}
	return &player, nil
}
