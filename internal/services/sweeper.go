// internal/services/sweeper.go
package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Sweeper drives the periodic missed-pickup sweep. It is an owned background
// goroutine with an explicit stop, not a process-level timer, so the server
// can drain it during graceful shutdown.
type Sweeper struct {
	interests *InterestService
	interval  time.Duration
	stop      chan struct{}
	done      chan struct{}
}

func NewSweeper(interests *InterestService, interval time.Duration) *Sweeper {
	return &Sweeper{
		interests: interests,
		interval:  interval,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the sweep loop. One sweep runs immediately so a restart
// does not wait a full interval to catch up on overdue pickups.
func (s *Sweeper) Start() {
	go s.run()
}

func (s *Sweeper) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	if err := s.interests.SweepMissed(ctx); err != nil {
		logrus.WithError(err).Error("Queue sweep finished with errors")
	}
}

// Stop halts the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	close(s.stop)
	<-s.done
}
