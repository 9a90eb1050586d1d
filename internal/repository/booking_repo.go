package repository

import (
	"context"
	"time"

	"github.com/Domenick1991/zeromonos/internal/domain"
	"github.com/google/uuid"
)

// maxTokenAttempts bounds token regeneration after a collision.
const maxTokenAttempts = 5

type BookingRepository interface {
	// Create assigns a fresh token and the initial status, then stores the booking.
	Create(ctx context.Context, booking *domain.Booking) error
	GetByToken(ctx context.Context, token string) (*domain.Booking, error)
	List(ctx context.Context, filter domain.BookingFilter) ([]domain.Booking, error)
	UpdateStatus(ctx context.Context, token string, status domain.BookingStatus) (*domain.Booking, error)
	History(ctx context.Context, token string) ([]domain.StatusChange, error)
	CountActive(ctx context.Context, query domain.SlotQuery) (int, error)
}

type TokenGenerator func() string

type Option func(*options)

type options struct {
	newToken TokenGenerator
	now      func() time.Time
}

func WithTokenGenerator(gen TokenGenerator) Option {
	return func(o *options) {
		o.newToken = gen
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func newOptions(opts []Option) options {
	o := options{
		newToken: uuid.NewString,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
