package workers

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-co-op/gocron/v2"

	"wesnoth-ladder-system/services"
)

// PipelineScheduler ticks the discovery and parsing workers on fixed
// intervals.
type PipelineScheduler struct {
	scheduler gocron.Scheduler
	sync      *SessionSyncWorker
	parse     *ReplayParseWorker
}

// NewPipelineScheduler wires both workers into a gocron scheduler. Intervals
// come from SYNC_INTERVAL_SECONDS (default 60) and PARSE_INTERVAL_SECONDS
// (default 30).
func NewPipelineScheduler(syncWorker *SessionSyncWorker, parseWorker *ReplayParseWorker) (*PipelineScheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("creating scheduler: %w", err)
	}

	syncInterval := intervalFromEnv("SYNC_INTERVAL_SECONDS", 60)
	parseInterval := intervalFromEnv("PARSE_INTERVAL_SECONDS", 30)

	_, err = scheduler.NewJob(
		gocron.DurationJob(syncInterval),
		gocron.NewTask(func() {
			if _, err := syncWorker.RunOnce(context.Background()); err != nil {
				log.Printf("❌ [SCHEDULER] session sync failed: %v", err)
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("registering session sync job: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(parseInterval),
		gocron.NewTask(func() {
			if _, err := parseWorker.RunOnce(context.Background()); err != nil {
				log.Printf("❌ [SCHEDULER] replay parse failed: %v", err)
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("registering replay parse job: %w", err)
	}

	log.Printf("⏰ [SCHEDULER] session sync every %s, replay parse every %s", syncInterval, parseInterval)

	return &PipelineScheduler{
		scheduler: scheduler,
		sync:      syncWorker,
		parse:     parseWorker,
	}, nil
}

func (p *PipelineScheduler) Start() {
	p.scheduler.Start()
	log.Printf("✅ [SCHEDULER] pipeline jobs started")
}

func (p *PipelineScheduler) Shutdown() {
	if err := p.scheduler.Shutdown(); err != nil {
		log.Printf("⚠️ [SCHEDULER] shutdown: %v", err)
	}
}

// JobStatuses feeds the pipeline status endpoint.
func (p *PipelineScheduler) JobStatuses() []services.PipelineJobStatus {
	return []services.PipelineJobStatus{
		p.sync.Status(),
		p.parse.Status(),
	}
}

func intervalFromEnv(key string, fallback int) time.Duration {
	seconds := fallback
	if raw := os.Getenv(key); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			seconds = parsed
		}
	}
	return time.Duration(seconds) * time.Second
}
