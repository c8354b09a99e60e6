package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"wesnoth-ladder-system/models"
	"wesnoth-ladder-system/services"
)

// DefaultMarkerAddon is the addon whose presence in a session marks the game
// as one of ours. Sessions without it never enter the pipeline.
const DefaultMarkerAddon = "Ranked"

// GameSession is one finished multiplayer session as reported by the game
// server's session API.
type GameSession struct {
	InstanceUUID string     `json:"instance_uuid"`
	GameID       int64      `json:"game_id"`
	ReplayName   string     `json:"replay_name"`
	GameName     string     `json:"game_name"`
	Version      string     `json:"version"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      *time.Time `json:"end_time,omitempty"`
	OOS          bool       `json:"oos"`
	Reload       bool       `json:"reload"`
}

// SessionSource enumerates finished sessions and answers addon membership
// questions about them.
type SessionSource interface {
	ListSessions(ctx context.Context, since time.Time) ([]GameSession, error)
	HasAddon(ctx context.Context, session GameSession, addon string) (bool, error)
}

// HTTPSessionSource talks to the game server's session API over HTTP.
type HTTPSessionSource struct {
	BaseURL      string
	ServiceToken string
	BatchSize    int
	// Version narrows discovery to one engine version when set.
	Version string
	Client  *http.Client
}

// NewHTTPSessionSource reads SESSION_SOURCE_URL, SESSION_SOURCE_TOKEN,
// WESNOTH_VERSION and REPLAY_SYNC_BATCH_SIZE (default 500). The session API is
// lightweight, so it gets a shorter timeout than replay downloads.
func NewHTTPSessionSource() *HTTPSessionSource {
	batch := 500
	if raw := os.Getenv("REPLAY_SYNC_BATCH_SIZE"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			batch = parsed
		}
	}
	return &HTTPSessionSource{
		BaseURL:      os.Getenv("SESSION_SOURCE_URL"),
		ServiceToken: os.Getenv("SESSION_SOURCE_TOKEN"),
		BatchSize:    batch,
		Version:      os.Getenv("WESNOTH_VERSION"),
		Client:       &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *HTTPSessionSource) ListSessions(ctx context.Context, since time.Time) ([]GameSession, error) {
	endpoint := fmt.Sprintf("%s/sessions?since=%s&limit=%d",
		s.BaseURL, url.QueryEscape(since.UTC().Format(time.RFC3339)), s.BatchSize)
	if s.Version != "" {
		endpoint += "&version=" + url.QueryEscape(s.Version)
	}

	var payload struct {
		Sessions []GameSession `json:"sessions"`
	}
	if err := s.getJSON(ctx, endpoint, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", services.ErrSourceUnavailable, err)
	}
	return payload.Sessions, nil
}

func (s *HTTPSessionSource) HasAddon(ctx context.Context, session GameSession, addon string) (bool, error) {
	endpoint := fmt.Sprintf("%s/sessions/%s/%d/addons/%s",
		s.BaseURL, url.PathEscape(session.InstanceUUID), session.GameID, url.PathEscape(addon))

	var payload struct {
		Present bool `json:"present"`
	}
	if err := s.getJSON(ctx, endpoint, &payload); err != nil {
		return false, err
	}
	return payload.Present, nil
}

func (s *HTTPSessionSource) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if s.ServiceToken != "" {
		req.Header.Set("X-Service-Token", s.ServiceToken)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("calling session source: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("session source returned %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// SyncSummary is the result of one discovery pass.
type SyncSummary struct {
	Discovered int `json:"discovered"`
	Created    int `json:"created"`
	Skipped    int `json:"skipped"`
	Errored    int `json:"errored"`
}

// SessionSyncWorker discovers finished sessions past the watermark and queues
// their replays for parsing.
type SessionSyncWorker struct {
	DB          *gorm.DB
	Source      SessionSource
	MarkerAddon string
	ReplayBase  string

	running atomic.Bool

	mu          sync.Mutex
	lastRunAt   *time.Time
	lastErr     string
	lastSummary string
}

func NewSessionSyncWorker(db *gorm.DB, source SessionSource) *SessionSyncWorker {
	marker := os.Getenv("RANKED_MARKER_ADDON")
	if marker == "" {
		marker = DefaultMarkerAddon
	}
	return &SessionSyncWorker{
		DB:          db,
		Source:      source,
		MarkerAddon: marker,
		ReplayBase:  os.Getenv("REPLAY_BASE_URL"),
	}
}

// RunOnce performs one discovery pass. Overlapping runs are collapsed: if a
// pass is still going when the next tick fires, the tick is dropped. The
// watermark only advances after the source enumeration succeeded, so a source
// outage is retried with the same window on the next tick. Per-session
// failures are logged and skipped without holding the watermark back.
func (w *SessionSyncWorker) RunOnce(ctx context.Context) (*SyncSummary, error) {
	if !w.running.CompareAndSwap(false, true) {
		log.Printf("⚠️ [SYNC] previous pass still running, skipping tick")
		return &SyncSummary{}, nil
	}
	defer w.running.Store(false)

	summary, err := w.sync(ctx)
	w.recordRun(summary, err)
	return summary, err
}

func (w *SessionSyncWorker) sync(ctx context.Context) (*SyncSummary, error) {
	since, err := w.readWatermark()
	if err != nil {
		return nil, err
	}
	checkpointAt := time.Now()

	sessions, err := w.Source.ListSessions(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("enumerating sessions since %s: %w", since.Format(time.RFC3339), err)
	}

	summary := &SyncSummary{Discovered: len(sessions)}
	for _, session := range sessions {
		created, err := w.ingestSession(ctx, session)
		if err != nil {
			summary.Errored++
			log.Printf("❌ [SYNC] session %s/%d: %v", session.InstanceUUID, session.GameID, err)
			continue
		}
		if created {
			summary.Created++
		} else {
			summary.Skipped++
		}
	}

	// The watermark moves even when individual sessions failed: a stuck
	// session must not make the window regrow forever. Anything truly lost is
	// still discoverable by resetting the watermark by hand.
	if err := w.advanceWatermark(checkpointAt); err != nil {
		return summary, err
	}

	log.Printf("✅ [SYNC] %d discovered, %d created, %d skipped, %d errored",
		summary.Discovered, summary.Created, summary.Skipped, summary.Errored)
	return summary, nil
}

// ingestSession checks the marker addon and inserts the replay row. The
// composite unique index on (instance_uuid, game_id) plus ON CONFLICT DO
// NOTHING makes re-discovery of the same session a no-op; the existence probe
// in front of it just spares the addon lookup, an HTTP round trip, for
// sessions we already hold.
func (w *SessionSyncWorker) ingestSession(ctx context.Context, session GameSession) (bool, error) {
	var known int64
	err := w.DB.Model(&models.Replay{}).
		Where("instance_uuid = ? AND game_id = ?", session.InstanceUUID, session.GameID).
		Count(&known).Error
	if err != nil {
		return false, fmt.Errorf("checking for existing replay: %w", err)
	}
	if known > 0 {
		return false, nil
	}

	present, err := w.Source.HasAddon(ctx, session, w.MarkerAddon)
	if err != nil {
		return false, fmt.Errorf("checking marker addon: %w", err)
	}
	if !present {
		return false, nil
	}
	if session.ReplayName == "" {
		return false, fmt.Errorf("session has no replay filename")
	}

	replay := models.Replay{
		ID:             uuid.NewString(),
		InstanceUUID:   session.InstanceUUID,
		GameID:         session.GameID,
		ReplayFilename: session.ReplayName,
		ReplayURL:      w.buildReplayURL(session),
		WesnothVersion: session.Version,
		GameName:       session.GameName,
		StartTime:      session.StartTime,
		EndTime:        session.EndTime,
		OOS:            session.OOS,
		IsReload:       session.Reload,
		ParseStatus:    models.ReplayStatusNew,
		// the marker addon was seen on the server, that alone is a strong signal
		DetectionConfidence: 2,
		DetectedFrom:        "server",
		NeedIntegration:     true,
	}

	result := w.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "instance_uuid"}, {Name: "game_id"}},
		DoNothing: true,
	}).Create(&replay)
	if result.Error != nil {
		return false, fmt.Errorf("inserting replay: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// buildReplayURL points at the public replay archive, which shards files by
// game version and upload date.
func (w *SessionSyncWorker) buildReplayURL(session GameSession) string {
	day := session.StartTime
	if session.EndTime != nil {
		day = *session.EndTime
	}
	return fmt.Sprintf("%s/%s/%s/%s",
		w.ReplayBase, session.Version, day.UTC().Format("2006-01-02"), session.ReplayName)
}

// readWatermark returns the stored checkpoint, or a lookback-window default
// when the pipeline has never run (SYNC_LOOKBACK_HOURS, default 24).
func (w *SessionSyncWorker) readWatermark() (time.Time, error) {
	var setting models.SystemSetting
	err := w.DB.Where("setting_key = ?", models.SettingReplayLastCheck).First(&setting).Error
	if err == nil {
		parsed, parseErr := time.Parse(time.RFC3339, setting.Value)
		if parseErr == nil {
			return parsed, nil
		}
		log.Printf("⚠️ [SYNC] corrupt watermark %q, falling back to the lookback window", setting.Value)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, fmt.Errorf("reading watermark: %w", err)
	}

	lookback := 24
	if raw := os.Getenv("SYNC_LOOKBACK_HOURS"); raw != "" {
		if parsed, parseErr := strconv.Atoi(raw); parseErr == nil && parsed > 0 {
			lookback = parsed
		}
	}
	return time.Now().Add(-time.Duration(lookback) * time.Hour), nil
}

func (w *SessionSyncWorker) advanceWatermark(to time.Time) error {
	setting := models.SystemSetting{
		ID:    uuid.NewString(),
		Key:   models.SettingReplayLastCheck,
		Value: to.UTC().Format(time.RFC3339),
	}
	err := w.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "setting_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"setting_value"}),
	}).Create(&setting).Error
	if err != nil {
		return fmt.Errorf("advancing watermark: %w", err)
	}
	return nil
}

func (w *SessionSyncWorker) recordRun(summary *SyncSummary, err error) {
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
		w.lastSummary = fmt.Sprintf("discovered=%d created=%d skipped=%d errored=%d",
			summary.Discovered, summary.Created, summary.Skipped, summary.Errored)
	}
}

// Status snapshots the worker for the pipeline status API.
func (w *SessionSyncWorker) Status() services.PipelineJobStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return services.PipelineJobStatus{
		Name:        "session_sync",
		Running:     w.running.Load(),
		LastRunAt:   w.lastRunAt,
		LastError:   w.lastErr,
		LastSummary: w.lastSummary,
	}
}
