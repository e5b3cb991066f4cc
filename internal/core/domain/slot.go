package domain

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotLimited   SlotStatus = "limited"
	SlotFull      SlotStatus = "full"
	SlotCancelled SlotStatus = "cancelled"
)

// LimitedThreshold is the number of remaining spots at or below which a
// slot is advertised as limited.
const LimitedThreshold = 3

func ParseSlotStatus(s string) (SlotStatus, error) {
	switch st := SlotStatus(s); st {
	case SlotAvailable, SlotLimited, SlotFull, SlotCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown slot status %q", s)
}

func DeriveSlotStatus(availableSpots int) SlotStatus {
	switch {
	case availableSpots <= 0:
		return SlotFull
	case availableSpots <= LimitedThreshold:
		return SlotLimited
	default:
		return SlotAvailable
	}
}

type WeatherStatus string

const (
	WeatherClear     WeatherStatus = "clear"
	WeatherWarning   WeatherStatus = "warning"
	WeatherCancelled WeatherStatus = "cancelled"
)

func ParseWeatherStatus(s string) (WeatherStatus, error) {
	switch ws := WeatherStatus(s); ws {
	case WeatherClear, WeatherWarning, WeatherCancelled:
		return ws, nil
	case "":
		return WeatherClear, nil
	}
	return "", fmt.Errorf("unknown weather status %q", s)
}

const DateLayout = "2006-01-02"

var timeSlotPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// SlotKey identifies one unit of sellable capacity. TimeSlot is empty for
// activities sold per day.
type SlotKey struct {
	ActivityID uuid.UUID `json:"activity_id"`
	Date       string    `json:"date"`
	TimeSlot   string    `json:"time_slot,omitempty"`
}

func (k SlotKey) String() string {
	if k.TimeSlot == "" {
		return fmt.Sprintf("%s/%s", k.ActivityID, k.Date)
	}
	return fmt.Sprintf("%s/%s/%s", k.ActivityID, k.Date, k.TimeSlot)
}

func (k SlotKey) Validate() error {
	if k.ActivityID == uuid.Nil {
		return Validation("activity id is required")
	}
	if _, err := time.Parse(DateLayout, k.Date); err != nil {
		return Validation("date must be formatted as YYYY-MM-DD")
	}
	if k.TimeSlot != "" && !timeSlotPattern.MatchString(k.TimeSlot) {
		return Validation("time slot must be formatted as HH:MM")
	}
	return nil
}

// StartsAt returns the moment the slot begins in loc. Day slots start at
// midnight.
func (k SlotKey) StartsAt(loc *time.Location) (time.Time, error) {
	if k.TimeSlot == "" {
		return time.ParseInLocation(DateLayout, k.Date, loc)
	}
	return time.ParseInLocation(DateLayout+" 15:04", k.Date+" "+k.TimeSlot, loc)
}

type Slot struct {
	Key            SlotKey       `json:"key"`
	MaxCapacity    int           `json:"max_capacity"`
	AvailableSpots int           `json:"available_spots"`
	Status         SlotStatus    `json:"status"`
	WeatherStatus  WeatherStatus `json:"weather_status"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

func (s *Slot) Validate() error {
	if s.MaxCapacity < 0 {
		return fmt.Errorf("slot %s: negative max capacity", s.Key)
	}
	if s.AvailableSpots < 0 || s.AvailableSpots > s.MaxCapacity {
		return fmt.Errorf("slot %s: available spots %d outside [0, %d]", s.Key, s.AvailableSpots, s.MaxCapacity)
	}
	return nil
}

func (s *Slot) IsCancelled() bool {
	return s.Status == SlotCancelled || s.WeatherStatus == WeatherCancelled
}

// CanAdmit reports whether n more participants fit into the slot right now.
func (s *Slot) CanAdmit(n int) bool {
	if s.IsCancelled() || s.MaxCapacity == 0 {
		return false
	}
	return n > 0 && s.AvailableSpots >= n
}

type ReservationToken struct {
	ID        uuid.UUID `json:"id"`
	Slot      SlotKey   `json:"slot"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
}
