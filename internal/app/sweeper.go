/**
 * @description
 * Periodic expiry sweeper. Pending requests past their window are already
 * treated as expired by every read and write path; the sweeper only settles
 * the stored status so listings and analytics stay cheap, and emits the
 * expiry event for live subscribers.
 */

package app

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/allobrico/dispatch-service/internal/domain"
)

const sweepTimeout = 30 * time.Second

// ExpirySweeper drives the periodic settlement of expired requests.
type ExpirySweeper struct {
	service *Service
	cron    *cron.Cron
}

// NewExpirySweeper schedules the sweep at the given cron spec (standard
// five-field syntax, e.g. "* * * * *" for every minute).
func NewExpirySweeper(service *Service, schedule string) (*ExpirySweeper, error) {
	c := cron.New()
	sweeper := &ExpirySweeper{service: service, cron: c}
	if _, err := c.AddFunc(schedule, sweeper.sweep); err != nil {
		return nil, err
	}
	return sweeper, nil
}

// Start begins the schedule in its own goroutine.
func (s *ExpirySweeper) Start() {
	s.cron.Start()
	log.Println("level=info component=sweeper msg=\"expiry sweeper started\"")
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *ExpirySweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("level=info component=sweeper msg=\"expiry sweeper stopped\"")
}

func (s *ExpirySweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	if err := s.service.SweepExpiredRequests(ctx); err != nil {
		log.Printf("level=error component=sweeper msg=\"sweep failed\" err=%v", err)
	}
}

// SweepExpiredRequests settles every pending request past its window and
// publishes one expiry event per settled request.
func (s *Service) SweepExpiredRequests(ctx context.Context) error {
	now := time.Now().UTC()
	expired, err := s.repo.MarkExpiredRequests(ctx, now)
	if err != nil {
		return err
	}
	if len(expired) == 0 {
		return nil
	}

	for _, req := range expired {
		s.publishEvent(ctx, domain.EventRequestExpired, domain.DispatchEvent{
			RequestID: req.ID,
			ClientID:  req.ClientID,
			Status:    domain.RequestStatusExpired,
			Timestamp: now,
		})
	}

	log.Printf("level=info component=sweeper msg=\"settled expired requests\" count=%d", len(expired))
	return nil
}
