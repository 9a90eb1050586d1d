package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Domenick1991/zeromonos/internal/domain"
	"github.com/Domenick1991/zeromonos/internal/kafka"
	"github.com/Domenick1991/zeromonos/internal/repository"
	"github.com/rs/zerolog/log"
)

// ErrSlotBusy is returned when the capacity lock for a municipality and day
// could not be taken before the request gave up.
var ErrSlotBusy = errors.New("another request for this day is being processed, please try again")

const (
	slotLockAttempts = 20
	slotLockBackoff  = 25 * time.Millisecond
)

type BookingUseCase interface {
	SubmitBooking(ctx context.Context, input SubmitBookingInput) (*domain.Booking, error)
	LookupBooking(ctx context.Context, token string) (*domain.Booking, error)
	CancelBooking(ctx context.Context, token string) (*domain.Booking, error)
	AdvanceStatus(ctx context.Context, token string, status domain.BookingStatus) (*domain.Booking, error)
	ListBookings(ctx context.Context, municipality string) ([]domain.Booking, error)
	BookingHistory(ctx context.Context, token string) ([]domain.StatusChange, error)
}

type Municipalities interface {
	IsValid(ctx context.Context, name string) (bool, error)
}

// SlotLocker serializes capacity checks for one municipality and day across instances.
// Acquire returns an owner value; Release only drops the lock while that owner still holds it.
type SlotLocker interface {
	AcquireSlotLock(ctx context.Context, municipality string, date time.Time, ttl time.Duration) (owner string, ok bool, err error)
	ReleaseSlotLock(ctx context.Context, municipality string, date time.Time, owner string) error
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value any) error
}

type SubmitBookingInput struct {
	Municipality  string `json:"municipality"`
	Description   string `json:"description"`
	RequestedDate string `json:"requestedDate"`
	TimeSlot      string `json:"timeSlot"`
}

// Rules are the submission constraints enforced on top of field validation.
type Rules struct {
	MinDescriptionLength int
	MinLeadDays          int
	RejectWeekends       bool
	// DailyLimit <= 0 means unlimited.
	DailyLimit     int
	ExclusiveSlots bool
	Location       *time.Location
	SlotLockTTL    time.Duration
}

func DefaultRules() Rules {
	return Rules{
		MinDescriptionLength: 1,
		Location:             time.UTC,
		SlotLockTTL:          5 * time.Second,
	}
}

type BookingService struct {
	bookings           repository.BookingRepository
	municipalities     Municipalities
	locker             SlotLocker
	producer           Producer
	eventsTopic        string
	notificationsTopic string
	rules              Rules
	now                func() time.Time
	dayLocks           *keyedMutex
}

type BookingServiceOption func(*BookingService)

func WithRules(rules Rules) BookingServiceOption {
	return func(s *BookingService) {
		if rules.Location == nil {
			rules.Location = time.UTC
		}
		s.rules = rules
	}
}

func WithSlotLocker(locker SlotLocker) BookingServiceOption {
	return func(s *BookingService) {
		s.locker = locker
	}
}

func WithProducer(producer Producer, eventsTopic string) BookingServiceOption {
	return func(s *BookingService) {
		s.producer = producer
		s.eventsTopic = eventsTopic
	}
}

func WithNotificationsTopic(topic string) BookingServiceOption {
	return func(s *BookingService) {
		s.notificationsTopic = topic
	}
}

func WithClock(now func() time.Time) BookingServiceOption {
	return func(s *BookingService) {
		s.now = now
	}
}

func NewBookingService(
	bookings repository.BookingRepository,
	municipalities Municipalities,
	opts ...BookingServiceOption,
) *BookingService {
	service := &BookingService{
		bookings:       bookings,
		municipalities: municipalities,
		rules:          DefaultRules(),
		now:            time.Now,
		dayLocks:       newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

func (s *BookingService) SubmitBooking(ctx context.Context, input SubmitBookingInput) (*domain.Booking, error) {
	booking, err := s.validate(ctx, input)
	if err != nil {
		return nil, err
	}

	release, err := s.lockDay(ctx, booking.Municipality, booking.RequestedDate)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.checkCapacity(ctx, booking); err != nil {
		return nil, err
	}

	if err := s.bookings.Create(ctx, booking); err != nil {
		return nil, err
	}

	log.Ctx(ctx).Info().
		Str("token", booking.Token).
		Str("municipality", booking.Municipality).
		Str("requested_date", booking.RequestedDate.Format(domain.DateLayout)).
		Str("time_slot", string(booking.TimeSlot)).
		Msg("booking submitted")

	s.publish(ctx, kafka.EventBookingCreated, booking)
	return booking, nil
}

func (s *BookingService) LookupBooking(ctx context.Context, token string) (*domain.Booking, error) {
	if token == "" {
		return nil, domain.ErrNotFound
	}
	return s.bookings.GetByToken(ctx, token)
}

func (s *BookingService) CancelBooking(ctx context.Context, token string) (*domain.Booking, error) {
	return s.transition(ctx, token, domain.BookingStatusCancelled)
}

func (s *BookingService) AdvanceStatus(ctx context.Context, token string, status domain.BookingStatus) (*domain.Booking, error) {
	if _, ok := domain.ParseBookingStatus(string(status)); !ok {
		return nil, domain.NewValidationError("status", fmt.Sprintf("unknown status %q", status))
	}
	return s.transition(ctx, token, status)
}

func (s *BookingService) ListBookings(ctx context.Context, municipality string) ([]domain.Booking, error) {
	return s.bookings.List(ctx, domain.BookingFilter{Municipality: municipality})
}

func (s *BookingService) BookingHistory(ctx context.Context, token string) ([]domain.StatusChange, error) {
	if token == "" {
		return nil, domain.ErrNotFound
	}
	return s.bookings.History(ctx, token)
}

func (s *BookingService) transition(ctx context.Context, token string, status domain.BookingStatus) (*domain.Booking, error) {
	if token == "" {
		return nil, domain.ErrNotFound
	}

	updated, err := s.bookings.UpdateStatus(ctx, token, status)
	if err != nil {
		if domain.IsInvalidTransition(err) {
			log.Ctx(ctx).Warn().Err(err).Str("token", token).Msg("rejected status change")
		}
		return nil, err
	}

	log.Ctx(ctx).Info().Str("token", token).Str("status", string(updated.Status)).Msg("booking status changed")

	eventType := kafka.EventBookingStatusChanged
	if status == domain.BookingStatusCancelled {
		eventType = kafka.EventBookingCancelled
	}
	s.publish(ctx, eventType, updated)
	return updated, nil
}

func (s *BookingService) validate(ctx context.Context, input SubmitBookingInput) (*domain.Booking, error) {
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return nil, domain.NewValidationError("description", "is required")
	}
	if minLen := s.rules.MinDescriptionLength; utf8.RuneCountInString(description) < minLen {
		return nil, domain.NewValidationError("description", fmt.Sprintf("must have at least %d characters", minLen))
	}

	if input.TimeSlot == "" {
		return nil, domain.NewValidationError("timeSlot", "is required")
	}
	slot, ok := domain.ParseTimeSlot(input.TimeSlot)
	if !ok {
		return nil, domain.NewValidationError("timeSlot", fmt.Sprintf("must be one of %v", domain.TimeSlots()))
	}

	date, err := s.validateDate(input.RequestedDate)
	if err != nil {
		return nil, err
	}

	if input.Municipality == "" {
		return nil, domain.NewValidationError("municipality", "is required")
	}
	known, err := s.municipalities.IsValid(ctx, input.Municipality)
	if err != nil {
		return nil, fmt.Errorf("validate municipality: %w", err)
	}
	if !known {
		return nil, domain.NewValidationError("municipality", fmt.Sprintf("unknown municipality %q", input.Municipality))
	}

	return &domain.Booking{
		Municipality:  input.Municipality,
		Description:   input.Description,
		RequestedDate: date,
		TimeSlot:      slot,
	}, nil
}

// validateDate returns the requested day as UTC midnight.
func (s *BookingService) validateDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, domain.NewValidationError("requestedDate", "is required")
	}
	date, err := time.Parse(domain.DateLayout, raw)
	if err != nil {
		return time.Time{}, domain.NewValidationError("requestedDate", "must be a valid date in YYYY-MM-DD format")
	}

	y, m, d := s.now().In(s.rules.Location).Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	if date.Before(today) {
		return time.Time{}, domain.NewValidationError("requestedDate", "must not be in the past")
	}
	if lead := s.rules.MinLeadDays; lead > 0 && date.Before(today.AddDate(0, 0, lead)) {
		return time.Time{}, domain.NewValidationError("requestedDate", fmt.Sprintf("must be at least %d days in advance", lead))
	}
	if s.rules.RejectWeekends && (date.Weekday() == time.Saturday || date.Weekday() == time.Sunday) {
		return time.Time{}, domain.NewValidationError("requestedDate", "must be a weekday")
	}
	return date, nil
}

func (s *BookingService) capacityRulesEnabled() bool {
	return s.rules.DailyLimit > 0 || s.rules.ExclusiveSlots
}

// lockDay holds the in-process lock and, when configured, the shared slot lock
// for one municipality and day. The returned func releases both.
func (s *BookingService) lockDay(ctx context.Context, municipality string, date time.Time) (func(), error) {
	if !s.capacityRulesEnabled() {
		return func() {}, nil
	}

	key := municipality + "|" + date.Format(domain.DateLayout)
	unlock := s.dayLocks.Lock(key)
	if s.locker == nil {
		return unlock, nil
	}

	for attempt := 0; attempt < slotLockAttempts; attempt++ {
		owner, ok, err := s.locker.AcquireSlotLock(ctx, municipality, date, s.rules.SlotLockTTL)
		if err != nil {
			unlock()
			return nil, fmt.Errorf("acquire slot lock: %w", err)
		}
		if ok {
			return func() {
				if err := s.locker.ReleaseSlotLock(context.WithoutCancel(ctx), municipality, date, owner); err != nil {
					log.Ctx(ctx).Warn().Err(err).Str("municipality", municipality).Msg("release slot lock")
				}
				unlock()
			}, nil
		}

		select {
		case <-ctx.Done():
			unlock()
			return nil, ctx.Err()
		case <-time.After(slotLockBackoff):
		}
	}

	unlock()
	return nil, ErrSlotBusy
}

func (s *BookingService) checkCapacity(ctx context.Context, booking *domain.Booking) error {
	if s.rules.DailyLimit > 0 {
		count, err := s.bookings.CountActive(ctx, domain.SlotQuery{
			Municipality:  booking.Municipality,
			RequestedDate: booking.RequestedDate,
		})
		if err != nil {
			return fmt.Errorf("count bookings for day: %w", err)
		}
		if count >= s.rules.DailyLimit {
			return domain.NewValidationError("requestedDate", fmt.Sprintf("daily limit of %d requests reached for %s", s.rules.DailyLimit, booking.Municipality))
		}
	}

	if s.rules.ExclusiveSlots {
		count, err := s.bookings.CountActive(ctx, domain.SlotQuery{
			Municipality:  booking.Municipality,
			RequestedDate: booking.RequestedDate,
			TimeSlot:      booking.TimeSlot,
		})
		if err != nil {
			return fmt.Errorf("count bookings for slot: %w", err)
		}
		if count > 0 {
			return domain.NewValidationError("timeSlot", "is already booked for this day")
		}
	}
	return nil
}

// publish never fails the request; a lost event is logged.
func (s *BookingService) publish(ctx context.Context, eventType string, booking *domain.Booking) {
	if s.producer == nil || s.eventsTopic == "" {
		return
	}
	event := kafka.BookingEvent{
		Type:          eventType,
		Token:         booking.Token,
		Municipality:  booking.Municipality,
		RequestedDate: booking.RequestedDate.Format(domain.DateLayout),
		TimeSlot:      string(booking.TimeSlot),
		Status:        string(booking.Status),
		OccurredAt:    s.now(),
	}

	topics := []string{s.eventsTopic}
	if s.notificationsTopic != "" {
		topics = append(topics, s.notificationsTopic)
	}
	for _, topic := range topics {
		if err := s.producer.Publish(ctx, topic, booking.Token, event); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("topic", topic).Str("token", booking.Token).Str("event", eventType).Msg("failed to publish booking event")
		}
	}
}

var _ BookingUseCase = (*BookingService)(nil)
