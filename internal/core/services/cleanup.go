package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/srgjo27/activity_booking/internal/core/domain"
)

const sweepBatch = 100

// RunBackgroundCleanup cancels pending bookings whose hold outlived the
// reservation TTL. It blocks until ctx is done.
func (s *BookingService) RunBackgroundCleanup(ctx context.Context) {
	if s.settings.ReservationTTL <= 0 {
		s.log.Info("reservation sweep disabled")
		return
	}

	interval := s.settings.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.WithFields(logrus.Fields{
		"interval": interval,
		"ttl":      s.settings.ReservationTTL,
	}).Info("reservation sweep started")

	for {
		select {
		case <-ctx.Done():
			s.log.Info("reservation sweep stopped")
			return
		case <-ticker.C:
			if n, err := s.ExpireStaleReservations(ctx); err != nil {
				s.log.WithError(err).Error("reservation sweep failed")
			} else if n > 0 {
				s.log.WithField("expired", n).Info("stale reservations released")
			}
		}
	}
}

// ExpireStaleReservations runs one sweep and returns how many bookings were
// cancelled.
func (s *BookingService) ExpireStaleReservations(ctx context.Context) (int, error) {
	cutoff := s.now().UTC().Add(-s.settings.ReservationTTL)

	refs, err := s.bookings.GetExpiredBookings(ctx, cutoff, sweepBatch)
	if err != nil {
		return 0, domain.Transport("fetch expired bookings", err)
	}

	expired := 0
	for _, ref := range refs {
		booking, err := s.load(ctx, ref)
		if err != nil {
			s.log.WithError(err).WithField("booking_ref", ref).Warn("expired booking vanished")
			continue
		}
		if booking.Status != domain.BookingPending {
			continue
		}

		if _, err := s.cancel(ctx, booking, "reservation expired", domain.SystemActor, domain.ActionExpireReservation); err != nil {
			s.log.WithError(err).WithField("booking_ref", ref).Error("failed to expire booking")
			continue
		}
		expired++
	}

	return expired, nil
}
