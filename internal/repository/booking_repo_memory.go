package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/Domenick1991/zeromonos/internal/domain"
)

type memoryRecord struct {
	mu      sync.Mutex
	booking domain.Booking
	history []domain.StatusChange
}

// MemoryBookingRepository keeps bookings in process memory.
// The index lock guards the token map and creation order; each record has its
// own lock so status updates on one token never wait on another.
type MemoryBookingRepository struct {
	mu      sync.RWMutex
	records map[string]*memoryRecord
	order   []*memoryRecord
	nextID  int64
	opts    options
}

func NewMemoryBookingRepository(opts ...Option) *MemoryBookingRepository {
	return &MemoryBookingRepository{
		records: make(map[string]*memoryRecord),
		opts:    newOptions(opts),
	}
}

func (r *MemoryBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var err error
	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		if err = r.insert(booking, r.opts.newToken()); err == nil {
			return nil
		}
	}
	return fmt.Errorf("create booking after %d attempts: %w", maxTokenAttempts, err)
}

func (r *MemoryBookingRepository) insert(booking *domain.Booking, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[token]; exists {
		return domain.ErrConflict
	}

	now := r.opts.now()
	r.nextID++
	booking.ID = r.nextID
	booking.Token = token
	booking.Status = domain.BookingStatusReceived
	booking.CreatedAt = now
	booking.UpdatedAt = now

	rec := &memoryRecord{
		booking: *booking,
		history: []domain.StatusChange{{Status: booking.Status, ChangedAt: now}},
	}
	r.records[token] = rec
	r.order = append(r.order, rec)
	return nil
}

func (r *MemoryBookingRepository) lookup(token string) (*memoryRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[token]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return rec, nil
}

func (r *MemoryBookingRepository) GetByToken(ctx context.Context, token string) (*domain.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec, err := r.lookup(token)
	if err != nil {
		return nil, err
	}

	rec.mu.Lock()
	b := rec.booking
	rec.mu.Unlock()
	return &b, nil
}

func (r *MemoryBookingRepository) snapshot() []*memoryRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*memoryRecord, len(r.order))
	copy(out, r.order)
	return out
}

func (r *MemoryBookingRepository) List(ctx context.Context, filter domain.BookingFilter) ([]domain.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bookings := make([]domain.Booking, 0)
	for _, rec := range r.snapshot() {
		rec.mu.Lock()
		b := rec.booking
		rec.mu.Unlock()
		if filter.Matches(&b) {
			bookings = append(bookings, b)
		}
	}
	return bookings, nil
}

func (r *MemoryBookingRepository) UpdateStatus(ctx context.Context, token string, status domain.BookingStatus) (*domain.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec, err := r.lookup(token)
	if err != nil {
		return nil, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	current := rec.booking.Status
	if !domain.CanTransition(current, status) {
		return nil, &domain.InvalidTransitionError{From: current, To: status}
	}

	now := r.opts.now()
	rec.booking.Status = status
	rec.booking.UpdatedAt = now
	rec.history = append(rec.history, domain.StatusChange{Status: status, ChangedAt: now})

	b := rec.booking
	return &b, nil
}

func (r *MemoryBookingRepository) History(ctx context.Context, token string) ([]domain.StatusChange, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec, err := r.lookup(token)
	if err != nil {
		return nil, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	out := make([]domain.StatusChange, len(rec.history))
	copy(out, rec.history)
	return out, nil
}

func (r *MemoryBookingRepository) CountActive(ctx context.Context, query domain.SlotQuery) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	count := 0
	for _, rec := range r.snapshot() {
		rec.mu.Lock()
		if query.Matches(&rec.booking) {
			count++
		}
		rec.mu.Unlock()
	}
	return count, nil
}

var _ BookingRepository = (*MemoryBookingRepository)(nil)
