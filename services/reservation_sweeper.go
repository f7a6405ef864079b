package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/restaurant-reservations/models"
)

type elapsedCompleter interface {
	CompleteElapsed(ctx context.Context) ([]models.Reservation, error)
}

// ReservationSweeper periodically completes active reservations whose
// interval has ended, so admin views do not show stale seatings.
type ReservationSweeper struct {
	engine   elapsedCompleter
	Interval time.Duration
	StopChan chan struct{}
	log      logrus.FieldLogger
	stopOnce sync.Once
}

func NewReservationSweeper(engine elapsedCompleter, interval time.Duration, log logrus.FieldLogger) *ReservationSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ReservationSweeper{
		engine:   engine,
		Interval: interval,
		StopChan: make(chan struct{}),
		log:      log,
	}
}

func (s *ReservationSweeper) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()

		s.log.WithField("interval", s.Interval).Info("reservation sweeper started")
		for {
			select {
			case <-ticker.C:
				s.Sweep(ctx)
			case <-ctx.Done():
				s.log.Info("reservation sweeper stopped")
				return
			case <-s.StopChan:
				s.log.Info("reservation sweeper stopped")
				return
			}
		}
	}()
}

func (s *ReservationSweeper) Stop() {
	s.stopOnce.Do(func() { close(s.StopChan) })
}

// Sweep runs one pass and returns how many reservations it completed.
func (s *ReservationSweeper) Sweep(ctx context.Context) int {
	done, err := s.engine.CompleteElapsed(ctx)
	if err != nil {
		s.log.WithError(err).Error("complete elapsed reservations")
		return 0
	}
	for _, r := range done {
		s.log.WithFields(logrus.Fields{
			"reservation_id": r.ID,
			"table_id":       r.TableID,
			"end_at":         r.EndAt,
		}).Debug("reservation elapsed")
	}
	return len(done)
}
