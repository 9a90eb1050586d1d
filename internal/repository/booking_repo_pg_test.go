package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/Domenick1991/zeromonos/internal/domain"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBookingRepository(t *testing.T) {
	pool := &pgxpool.Pool{}
	repo := NewBookingRepository(pool)
	assert.NotNil(t, repo)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
}

func TestSchemaIsEmbedded(t *testing.T) {
	assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS bookings")
	assert.Contains(t, schema, "token          TEXT        NOT NULL UNIQUE")
	assert.Contains(t, schema, "booking_status_history")
}

// newPostgresRepository connects to DATABASE_URL, applies the schema and
// empties both tables. Tests using it are skipped without a database.
func newPostgresRepository(t *testing.T, opts ...Option) (BookingRepository, *pgxpool.Pool) {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, Migrate(ctx, pool))
	_, err = pool.Exec(ctx, `TRUNCATE booking_status_history, bookings RESTART IDENTITY`)
	require.NoError(t, err)

	return NewBookingRepository(pool, opts...), pool
}

func TestPGBookingRepository_CreateAndHistory(t *testing.T) {
	repo, _ := newPostgresRepository(t)
	ctx := context.Background()

	b := newBooking("Porto", domain.TimeSlot0900)
	require.NoError(t, repo.Create(ctx, b))
	assert.NotEmpty(t, b.Token)
	assert.Equal(t, domain.BookingStatusReceived, b.Status)

	got, err := repo.GetByToken(ctx, b.Token)
	require.NoError(t, err)
	assert.Equal(t, b.Municipality, got.Municipality)
	assert.Equal(t, b.TimeSlot, got.TimeSlot)

	_, err = repo.UpdateStatus(ctx, b.Token, domain.BookingStatusInProgress)
	require.NoError(t, err)

	history, err := repo.History(ctx, b.Token)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.BookingStatusReceived, history[0].Status)
	assert.Equal(t, domain.BookingStatusInProgress, history[1].Status)

	_, err = repo.UpdateStatus(ctx, "unknown-token", domain.BookingStatusCancelled)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPGBookingRepository_TokenCollisionIsRetried(t *testing.T) {
	tokens := []string{"dup", "dup", "fresh"}
	i := 0
	repo, pool := newPostgresRepository(t, WithTokenGenerator(func() string {
		tok := tokens[i]
		i++
		return tok
	}))
	ctx := context.Background()

	first := newBooking("Porto", domain.TimeSlot0900)
	require.NoError(t, repo.Create(ctx, first))
	assert.Equal(t, "dup", first.Token)

	second := newBooking("Porto", domain.TimeSlot1100)
	require.NoError(t, repo.Create(ctx, second))
	assert.Equal(t, "fresh", second.Token)

	var rows int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM booking_status_history`).Scan(&rows))
	assert.Equal(t, 2, rows)
}

func TestPGBookingRepository_TokenCollisionExhausted(t *testing.T) {
	repo, _ := newPostgresRepository(t, WithTokenGenerator(func() string { return "same" }))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newBooking("Porto", domain.TimeSlot0900)))
	err := repo.Create(ctx, newBooking("Porto", domain.TimeSlot1100))
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestPGBookingRepository_ConcurrentCancel(t *testing.T) {
	repo, _ := newPostgresRepository(t)
	ctx := context.Background()

	b := newBooking("Porto", domain.TimeSlot0900)
	require.NoError(t, repo.Create(ctx, b))

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := repo.UpdateStatus(ctx, b.Token, domain.BookingStatusCancelled)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case domain.IsInvalidTransition(err):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, rejected)

	history, err := repo.History(ctx, b.Token)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestPGBookingRepository_CountActive(t *testing.T) {
	repo, _ := newPostgresRepository(t)
	ctx := context.Background()

	a := newBooking("Porto", domain.TimeSlot0900)
	b := newBooking("Porto", domain.TimeSlot1100)
	c := newBooking("Braga", domain.TimeSlot0900)
	for _, booking := range []*domain.Booking{a, b, c} {
		require.NoError(t, repo.Create(ctx, booking))
	}
	_, err := repo.UpdateStatus(ctx, b.Token, domain.BookingStatusCancelled)
	require.NoError(t, err)

	day := domain.SlotQuery{Municipality: "Porto", RequestedDate: a.RequestedDate}
	count, err := repo.CountActive(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	day.TimeSlot = domain.TimeSlot0900
	count, err = repo.CountActive(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
