package subscription

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

// Sweeper runs the global expiry statement on a schedule. Lazy
// reconciliation on the request paths stays the correctness boundary; the
// sweep only keeps stored rows from drifting between requests.
type Sweeper struct {
	db        *gorm.DB
	scheduler gocron.Scheduler
	interval  time.Duration
}

func NewSweeper(db *gorm.DB) (*Sweeper, error) {
	interval := time.Minute
	if raw := os.Getenv("SWEEP_INTERVAL_SECONDS"); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			interval = time.Duration(secs) * time.Second
		}
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	return &Sweeper{db: db, scheduler: scheduler, interval: interval}, nil
}

func (s *Sweeper) Start() error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(s.sweep),
	)
	if err != nil {
		return err
	}

	s.scheduler.Start()
	log.Printf("subscription expiry sweep running every %s", s.interval)
	return nil
}

func (s *Sweeper) sweep() {
	expired, err := ExpireDue(s.db, 0, 0, time.Now())
	if err != nil {
		log.Printf("expiry sweep failed: %v", err)
		return
	}
	if expired > 0 {
		log.Printf("expiry sweep marked %d subscriptions expired", expired)
	}
}

func (s *Sweeper) Stop() error {
	return s.scheduler.Shutdown()
}
