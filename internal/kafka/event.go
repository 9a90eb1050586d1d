package kafka

import (
	"encoding/json"
	"time"
)

const (
	EventBookingCreated       = "booking_created"
	EventBookingStatusChanged = "booking_status_changed"
	EventBookingCancelled     = "booking_cancelled"
)

type BookingEvent struct {
	Type          string    `json:"type"`
	Token         string    `json:"token"`
	Municipality  string    `json:"municipality"`
	RequestedDate string    `json:"requested_date"`
	TimeSlot      string    `json:"time_slot"`
	Status        string    `json:"status"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func Encode(payload any) ([]byte, error) {
	return json.Marshal(payload)
}

func DecodeBookingEvent(data []byte) (BookingEvent, error) {
	var event BookingEvent
	err := json.Unmarshal(data, &event)
	return event, err
}
