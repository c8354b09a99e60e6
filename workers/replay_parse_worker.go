package workers

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"gorm.io/gorm"

	"wesnoth-ladder-system/models"
	"wesnoth-ladder-system/services"
)

// ParseSummary is the result of one parse pass.
type ParseSummary struct {
	Picked   int `json:"picked"`
	Matched  int `json:"matched"`
	Rejected int `json:"rejected"`
	Errored  int `json:"errored"`
}

// ReplayParseWorker drains the queue of discovered replays: decode, classify,
// materialize, and stamp the replay with a terminal status.
type ReplayParseWorker struct {
	DB         *gorm.DB
	Decoder    *services.ReplayDecoder
	Classifier *services.MatchClassifier
	Matches    *services.MatchService
	BatchSize  int

	running atomic.Bool

	mu          sync.Mutex
	lastRunAt   *time.Time
	lastErr     string
	lastSummary string
}

func NewReplayParseWorker(db *gorm.DB) *ReplayParseWorker {
	batch := 20
	if raw := os.Getenv("REPLAY_PARSE_BATCH_SIZE"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			batch = parsed
		}
	}
	return &ReplayParseWorker{
		DB:         db,
		Decoder:    services.NewReplayDecoder(),
		Classifier: services.NewMatchClassifier(db),
		Matches:    services.NewMatchService(db),
		BatchSize:  batch,
	}
}

// RunOnce processes one batch of queued replays. Overlapping ticks are
// dropped. Every replay leaves the pass with a terminal parse status, so a
// bad artifact can never wedge the queue.
func (w *ReplayParseWorker) RunOnce(ctx context.Context) (*ParseSummary, error) {
	if !w.running.CompareAndSwap(false, true) {
		log.Printf("⚠️ [PARSE] previous pass still running, skipping tick")
		return &ParseSummary{}, nil
	}
	defer w.running.Store(false)

	summary, err := w.drain(ctx)
	w.recordRun(summary, err)
	return summary, err
}

func (w *ReplayParseWorker) drain(ctx context.Context) (*ParseSummary, error) {
	var queued []models.Replay
	err := w.DB.
		Where("parse_status = ? AND parsed = ? AND need_integration = ?", models.ReplayStatusNew, false, true).
		Order("created_at ASC").
		Limit(w.BatchSize).
		Find(&queued).Error
	if err != nil {
		return nil, fmt.Errorf("loading queued replays: %w", err)
	}

	summary := &ParseSummary{Picked: len(queued)}
	for i := range queued {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		switch outcome := w.processReplay(ctx, &queued[i]); outcome {
		case models.ReplayStatusError:
			summary.Errored++
		case models.ReplayStatusRejected:
			summary.Rejected++
		default:
			summary.Matched++
		}
	}

	if summary.Picked > 0 {
		log.Printf("✅ [PARSE] %d picked, %d matched, %d rejected, %d errored",
			summary.Picked, summary.Matched, summary.Rejected, summary.Errored)
	}
	return summary, nil
}

// processReplay runs one replay through the pipeline and returns the logical
// outcome: completed-with-match, rejected, or error. Row updates that fail are
// logged and surface on the next pass since the replay stays queued.
func (w *ReplayParseWorker) processReplay(ctx context.Context, replay *models.Replay) string {
	now := time.Now()
	if err := w.DB.Model(replay).Update("parsing_started_at", now).Error; err != nil {
		log.Printf("❌ [PARSE] replay %s: marking started: %v", replay.ID, err)
		return models.ReplayStatusError
	}

	outcome, err := w.Decoder.Decode(ctx, replay.ReplayURL)
	if err != nil {
		w.markError(replay, err)
		return models.ReplayStatusError
	}

	result, err := w.Classifier.Classify(outcome)
	if err != nil {
		w.markError(replay, fmt.Errorf("classifying: %w", err))
		return models.ReplayStatusError
	}

	if result.Class == services.ClassRejected {
		log.Printf("🚫 [PARSE] replay %s rejected: %s", replay.ID, result.Reason)
		w.markDone(replay, outcome, nil, outcome.Victory.Confidence)
		return models.ReplayStatusRejected
	}

	match, err := w.Matches.MaterializeMatch(replay, outcome, result)
	if err != nil {
		w.markError(replay, fmt.Errorf("materializing match: %w", err))
		return models.ReplayStatusError
	}

	w.markDone(replay, outcome, match, result.Confidence)
	return models.ReplayStatusCompleted
}

// markDone stamps a replay completed. A nil match means the replay was
// classified but produced nothing to rate, which is still a terminal success.
func (w *ReplayParseWorker) markDone(replay *models.Replay, outcome *services.DecodedOutcome, match *models.Match, confidence int) {
	now := time.Now()
	updates := map[string]interface{}{
		"parse_status":         models.ReplayStatusCompleted,
		"parsed":               true,
		"need_integration":     false,
		"parse_error":          nil,
		"detection_confidence": confidence,
		"detected_from":        outcome.Victory.Reason,
		"parsing_completed_at": now,
	}
	if match != nil {
		updates["match_id"] = match.ID
	}
	if err := w.DB.Model(replay).Updates(updates).Error; err != nil {
		log.Printf("❌ [PARSE] replay %s: marking completed: %v", replay.ID, err)
	}
}

func (w *ReplayParseWorker) markError(replay *models.Replay, cause error) {
	log.Printf("❌ [PARSE] replay %s: %v", replay.ID, cause)
	now := time.Now()
	message := cause.Error()
	updates := map[string]interface{}{
		"parse_status":         models.ReplayStatusError,
		"parsed":               true,
		"parse_error":          message,
		"parsing_completed_at": now,
	}
	if err := w.DB.Model(replay).Updates(updates).Error; err != nil {
		log.Printf("❌ [PARSE] replay %s: marking errored: %v", replay.ID, err)
	}
}

func (w *ReplayParseWorker) recordRun(summary *ParseSummary, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := time.Now()
	w.lastRunAt = &now
	if err != nil {
		w.lastErr = err.Error()
	} else {
		w.lastErr = ""
	}
	if summary != nil {
		w.lastSummary = fmt.Sprintf("picked=%d matched=%d rejected=%d errored=%d",
			summary.Picked, summary.Matched, summary.Rejected, summary.Errored)
	}
}

// Status snapshots the worker for the pipeline status API.
func (w *ReplayParseWorker) Status() services.PipelineJobStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return services.PipelineJobStatus{
		Name:        "replay_parse",
		Running:     w.running.Load(),
		LastRunAt:   w.lastRunAt,
		LastError:   w.lastErr,
		LastSummary: w.lastSummary,
	}
}
