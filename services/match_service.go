package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"wesnoth-ladder-system/models"
	"wesnoth-ladder-system/utils"
)

// MatchService turns classified replay outcomes into match rows and applies
// the rating and statistics side effects.
type MatchService struct {
	DB    *gorm.DB
	Stats *StatisticsService
}

func NewMatchService(db *gorm.DB) *MatchService {
	return &MatchService{DB: db, Stats: NewStatisticsService(db)}
}

// MaterializeMatch creates or refreshes the match for one replay. The replay
// id is the idempotency key: replaying the same artifact updates the existing
// row and never touches ratings a second time.
func (s *MatchService) MaterializeMatch(replay *models.Replay, outcome *DecodedOutcome, result *ClassificationResult) (*models.Match, error) {
	if result.Class == ClassRejected {
		return nil, fmt.Errorf("cannot materialize a rejected classification")
	}

	var match *models.Match
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		winner, err := s.EnsurePlayer(tx, outcome.Victory.WinnerName)
		if err != nil {
			return err
		}
		loser, err := s.EnsurePlayer(tx, outcome.Victory.LoserName)
		if err != nil {
			return err
		}

		match, err = s.findByReplay(tx, replay.ID)
		if err != nil {
			return err
		}
		fresh := match == nil
		if fresh {
			match = &models.Match{ID: uuid.NewString(), ReplayID: &replay.ID}
		}

		match.WinnerID = winner.ID
		match.LoserID = loser.ID
		match.WinnerFaction = outcome.Victory.WinnerFaction
		match.LoserFaction = outcome.Victory.LoserFaction
		match.MapName = outcome.MapName
		match.EraName = outcome.EraName
		match.AutoReported = true
		match.DetectedFrom = outcome.Victory.Reason
		if result.Tournament != nil {
			match.TournamentID = &result.Tournament.TournamentID
			match.TournamentMatchID = result.Tournament.TournamentMatchID
			match.IsTeamMatch = result.Tournament.IsTeamMatch
		}

		if match.Status != models.MatchStatusConfirmed {
			if result.Confidence >= ConfidenceAutoConfirm {
				match.Status = models.MatchStatusConfirmed
			} else {
				match.Status = models.MatchStatusPendingReport
			}
		}

		if err := tx.Save(match).Error; err != nil {
			return fmt.Errorf("saving match: %w", err)
		}

		if s.isRated(result.Class) && match.Status == models.MatchStatusConfirmed &&
			match.WinnerRatingDelta == nil && match.LoserRatingDelta == nil {
			if err := s.applyRating(tx, match, winner, loser); err != nil {
				return err
			}
			if err := s.Stats.RecordMatch(tx, match, winner, loser); err != nil {
				return err
			}
		}

		if match.TournamentMatchID != nil {
			if err := s.settleBracketSlot(tx, match, winner.ID); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("✅ [MATCH] %s materialized: %s beat %s (%s, %s)",
		match.ID, outcome.Victory.WinnerName, outcome.Victory.LoserName, result.Class, match.Status)
	return match, nil
}

// EnsurePlayer finds the player by nickname or creates one at the default
// starting rating.
func (s *MatchService) EnsurePlayer(tx *gorm.DB, nickname string) (*models.Player, error) {
	var player models.Player
	err := tx.Where("nickname = ?", nickname).First(&player).Error
	if err == nil {
		return &player, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("looking up player %q: %w", nickname, err)
	}

	starting := models.DefaultStartingRating
	player = models.Player{
		ID:       uuid.NewString(),
		Nickname: nickname,
		Rating:   &starting,
		Trend:    "-",
		IsActive: true,
	}
	if err := tx.Create(&player).Error; err != nil {
		return nil, fmt.Errorf("creating player %q: %w", nickname, err)
	}
	log.Printf("👤 [MATCH] new player %q registered", nickname)
	return &player, nil
}

func (s *MatchService) findByReplay(tx *gorm.DB, replayID string) (*models.Match, error) {
	var match models.Match
	err := tx.Where("replay_id = ?", replayID).First(&match).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up match for replay %s: %w", replayID, err)
	}
	return &match, nil
}

func (s *MatchService) isRated(class string) bool {
	return class == ClassRanked || class == ClassTournamentRanked
}

// applyRating computes both deltas from the pre-match ratings, then writes
// the new ratings, counters and trends. The deltas stored on the match double
// as the guard against double application.
func (s *MatchService) applyRating(tx *gorm.DB, match *models.Match, winner, loser *models.Player) error {
	winnerRating := ratingOrDefault(winner.Rating)
	loserRating := ratingOrDefault(loser.Rating)

	winnerDelta := utils.RatingDelta(winner.Rating, loserRating, true, winner.MatchesPlayed)
	loserDelta := utils.RatingDelta(loser.Rating, winnerRating, false, loser.MatchesPlayed)

	newWinnerRating := winnerRating + winnerDelta
	newLoserRating := loserRating + loserDelta

	winner.Rating = &newWinnerRating
	winner.MatchesPlayed++
	winner.TotalWins++
	winner.Trend = utils.NextTrend(winner.Trend, true)

	loser.Rating = &newLoserRating
	loser.MatchesPlayed++
	loser.TotalLosses++
	loser.Trend = utils.NextTrend(loser.Trend, false)

	if err := tx.Save(winner).Error; err != nil {
		return fmt.Errorf("updating winner rating: %w", err)
	}
	if err := tx.Save(loser).Error; err != nil {
		return fmt.Errorf("updating loser rating: %w", err)
	}

	match.WinnerRatingDelta = &winnerDelta
	match.LoserRatingDelta = &loserDelta
	if err := tx.Model(match).Updates(map[string]interface{}{
		"winner_rating_delta": winnerDelta,
		"loser_rating_delta":  loserDelta,
	}).Error; err != nil {
		return fmt.Errorf("storing rating deltas: %w", err)
	}

	log.Printf("📈 [RATING] %s %d (%+d) vs %s %d (%+d)",
		winner.Nickname, newWinnerRating, winnerDelta,
		loser.Nickname, newLoserRating, loserDelta)
	return nil
}

// settleBracketSlot marks the bracket slot reported and links it to the
// materialized match. Already-reported slots are left alone so reprocessing a
// replay cannot flip a bracket result.
func (s *MatchService) settleBracketSlot(tx *gorm.DB, match *models.Match, winnerID string) error {
	now := time.Now()
	err := tx.Model(&models.TournamentMatch{}).
		Where("id = ? AND status <> ?", *match.TournamentMatchID, models.TournamentMatchStatusReported).
		Updates(map[string]interface{}{
			"status":      models.TournamentMatchStatusReported,
			"winner_id":   winnerID,
			"match_id":    match.ID,
			"reported_at": now,
		}).Error
	if err != nil {
		return fmt.Errorf("settling bracket slot %s: %w", *match.TournamentMatchID, err)
	}
	return nil
}

func ratingOrDefault(rating *int) int {
	if rating == nil {
		return models.DefaultStartingRating
	}
	return *rating
}
