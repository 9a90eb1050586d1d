package domain

type TimeSlot string

const (
	TimeSlot0900 TimeSlot = "09:00-11:00"
	TimeSlot1100 TimeSlot = "11:00-13:00"
	TimeSlot1300 TimeSlot = "13:00-15:00"
	TimeSlot1500 TimeSlot = "15:00-17:00"
	TimeSlot1700 TimeSlot = "17:00-19:00"
)

var timeSlots = []TimeSlot{TimeSlot0900, TimeSlot1100, TimeSlot1300, TimeSlot1500, TimeSlot1700}

// TimeSlots returns the fixed two-hour windows in chronological order.
func TimeSlots() []TimeSlot {
	out := make([]TimeSlot, len(timeSlots))
	copy(out, timeSlots)
	return out
}

func ParseTimeSlot(s string) (TimeSlot, bool) {
	for _, slot := range timeSlots {
		if string(slot) == s {
			return slot, true
		}
	}
	return "", false
}
