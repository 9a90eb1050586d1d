package municipality

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

var ErrUnavailable = errors.New("municipality list unavailable")

// refreshRetryAfter is how long List waits after a failed directory fetch
// before it asks the directory again.
const refreshRetryAfter = 30 * time.Second

type MunicipalityUseCase interface {
	List(ctx context.Context) ([]string, error)
	IsValid(ctx context.Context, name string) (bool, error)
}

// Directory is the authoritative source of municipality names.
type Directory interface {
	Fetch(ctx context.Context) ([]string, error)
}

type Cache interface {
	GetMunicipalities(ctx context.Context) ([]string, error)
	SetMunicipalities(ctx context.Context, names []string) error
}

type MunicipalityService struct {
	directory Directory
	cache     Cache
	fallback  []string
	ttl       time.Duration
	now       func() time.Time

	group singleflight.Group

	mu       sync.RWMutex
	local    []string
	loadedAt time.Time
	failedAt time.Time
}

type Option func(*MunicipalityService)

func WithCache(cache Cache) Option {
	return func(s *MunicipalityService) {
		s.cache = cache
	}
}

func WithFallback(names []string) Option {
	return func(s *MunicipalityService) {
		s.fallback = slices.Clone(names)
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *MunicipalityService) {
		s.now = now
	}
}

func NewMunicipalityService(directory Directory, ttl time.Duration, opts ...Option) *MunicipalityService {
	s := &MunicipalityService{
		directory: directory,
		ttl:       ttl,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List serves the in-process copy while fresh, then the shared cache, then the
// directory. When the directory fails it keeps serving the last loaded list,
// and only without one falls back to the configured names.
func (s *MunicipalityService) List(ctx context.Context) ([]string, error) {
	if names, ok := s.fresh(); ok {
		return names, nil
	}

	if s.cache != nil {
		if cached, err := s.cache.GetMunicipalities(ctx); err == nil && len(cached) > 0 {
			s.remember(cached)
			return slices.Clone(cached), nil
		} else if err != nil {
			log.Warn().Err(err).Msg("read municipalities from cache")
		}
	}

	var err error
	if s.backingOff() {
		err = fmt.Errorf("%w: directory recently failed", ErrUnavailable)
	} else {
		var names []string
		if names, err = s.Refresh(ctx); err == nil {
			return names, nil
		}
	}

	if stale := s.stale(); stale != nil {
		log.Warn().Err(err).Int("count", len(stale)).Msg("municipality directory failed, serving last loaded list")
		return stale, nil
	}
	if len(s.fallback) > 0 {
		log.Warn().Err(err).Int("fallback", len(s.fallback)).Msg("municipality directory failed, using fallback list")
		return slices.Clone(s.fallback), nil
	}
	return nil, err
}

// Refresh reloads the list from the directory and updates both cache layers.
// Concurrent callers share one fetch.
func (s *MunicipalityService) Refresh(ctx context.Context) ([]string, error) {
	v, err, _ := s.group.Do("refresh", func() (any, error) {
		return s.load(ctx)
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]string)), nil
}

func (s *MunicipalityService) load(ctx context.Context) ([]string, error) {
	if s.directory == nil {
		return nil, ErrUnavailable
	}
	names, err := s.directory.Fetch(ctx)
	if err != nil {
		s.markFailed()
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if len(names) == 0 {
		s.markFailed()
		return nil, fmt.Errorf("%w: directory returned no names", ErrUnavailable)
	}

	s.remember(names)
	if s.cache != nil {
		if err := s.cache.SetMunicipalities(ctx, names); err != nil {
			log.Warn().Err(err).Msg("write municipalities to cache")
		}
	}
	return names, nil
}

func (s *MunicipalityService) IsValid(ctx context.Context, name string) (bool, error) {
	if name == "" {
		return false, nil
	}
	names, err := s.List(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(names, name), nil
}

func (s *MunicipalityService) fresh() ([]string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.local == nil || s.now().Sub(s.loadedAt) >= s.ttl {
		return nil, false
	}
	return slices.Clone(s.local), true
}

func (s *MunicipalityService) stale() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.local)
}

func (s *MunicipalityService) backingOff() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.failedAt.IsZero() && s.now().Sub(s.failedAt) < refreshRetryAfter
}

func (s *MunicipalityService) markFailed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failedAt = s.now()
}

func (s *MunicipalityService) remember(names []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.local = slices.Clone(names)
	s.loadedAt = s.now()
	s.failedAt = time.Time{}
}

var _ MunicipalityUseCase = (*MunicipalityService)(nil)
