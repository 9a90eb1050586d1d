package domain

import "time"

type BookingStatus string

const (
	BookingStatusReceived   BookingStatus = "RECEBIDO"
	BookingStatusInProgress BookingStatus = "EM_PROG"
	BookingStatusCompleted  BookingStatus = "CONCLUIDO"
	BookingStatusCancelled  BookingStatus = "CANCELADO"
)

// DateLayout is the wire format of Booking.RequestedDate.
const DateLayout = "2006-01-02"

var bookingStatuses = []BookingStatus{
	BookingStatusReceived,
	BookingStatusInProgress,
	BookingStatusCompleted,
	BookingStatusCancelled,
}

var allowedTransitions = map[BookingStatus]map[BookingStatus]bool{
	BookingStatusReceived:   {BookingStatusInProgress: true, BookingStatusCancelled: true},
	BookingStatusInProgress: {BookingStatusCompleted: true, BookingStatusCancelled: true},
	BookingStatusCompleted:  {},
	BookingStatusCancelled:  {},
}

// BookingStatuses returns every known status in lifecycle order.
func BookingStatuses() []BookingStatus {
	out := make([]BookingStatus, len(bookingStatuses))
	copy(out, bookingStatuses)
	return out
}

func ParseBookingStatus(s string) (BookingStatus, bool) {
	status := BookingStatus(s)
	_, ok := allowedTransitions[status]
	return status, ok
}

func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusCompleted || s == BookingStatusCancelled
}

// CanTransition reports whether a booking in status from may move to status to.
func CanTransition(from, to BookingStatus) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

type Booking struct {
	ID            int64
	Token         string
	Municipality  string
	Description   string
	RequestedDate time.Time
	TimeSlot      TimeSlot
	Status        BookingStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// StatusChange is one entry of a booking's status history.
type StatusChange struct {
	Status    BookingStatus
	ChangedAt time.Time
}

type BookingFilter struct {
	Municipality string
}

func (f BookingFilter) Matches(b *Booking) bool {
	return f.Municipality == "" || b.Municipality == f.Municipality
}

// SlotQuery selects the bookings competing for capacity on one municipality and day.
// An empty TimeSlot matches every slot of the day.
type SlotQuery struct {
	Municipality  string
	RequestedDate time.Time
	TimeSlot      TimeSlot
}

func (q SlotQuery) Matches(b *Booking) bool {
	if b.Status == BookingStatusCancelled {
		return false
	}
	if b.Municipality != q.Municipality || !SameDay(b.RequestedDate, q.RequestedDate) {
		return false
	}
	return q.TimeSlot == "" || b.TimeSlot == q.TimeSlot
}

func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
