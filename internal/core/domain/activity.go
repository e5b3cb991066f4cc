package domain

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type UnitPrices struct {
	Adult  decimal.Decimal `json:"adult"`
	Child  decimal.Decimal `json:"child"`
	Senior decimal.Decimal `json:"senior"`
}

type AddOnOffer struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Activity is read-only for the booking engine. Its prices are copied into
// each booking at creation time.
type Activity struct {
	ID                 uuid.UUID       `json:"id"`
	Title              string          `json:"title"`
	MinParticipants    int             `json:"min_participants"`
	MaxParticipants    int             `json:"max_participants"`
	DurationMinutes    int             `json:"duration_minutes"`
	Prices             UnitPrices      `json:"prices"`
	SeasonalMultiplier decimal.Decimal `json:"seasonal_multiplier"`
	AddOns             []AddOnOffer    `json:"add_ons,omitempty"`
}

func (a *Activity) AddOn(id uuid.UUID) (AddOnOffer, bool) {
	for _, o := range a.AddOns {
		if o.ID == id {
			return o, true
		}
	}
	return AddOnOffer{}, false
}

// CheckParticipants enforces the activity bounds. It runs before any
// reservation attempt.
func (a *Activity) CheckParticipants(p Participants) error {
	if err := p.Validate(); err != nil {
		return err
	}

	total := p.Total()
	min := a.MinParticipants
	if min < 1 {
		min = 1
	}
	if total < min {
		return Validation(fmt.Sprintf("at least %d participants required", min))
	}
	if a.MaxParticipants > 0 && total > a.MaxParticipants {
		return Validation(fmt.Sprintf("at most %d participants allowed", a.MaxParticipants))
	}
	return nil
}

// MaxGroupSize caps each participant count so totals cannot overflow.
const MaxGroupSize = 1000

type Participants struct {
	Adults   int `json:"adults"`
	Children int `json:"children"`
	Seniors  int `json:"seniors"`
}

func (p Participants) Total() int {
	return p.Adults + p.Children + p.Seniors
}

func (p Participants) Validate() error {
	if p.Adults < 0 || p.Children < 0 || p.Seniors < 0 {
		return Validation("participant counts cannot be negative")
	}
	if p.Adults > MaxGroupSize || p.Children > MaxGroupSize || p.Seniors > MaxGroupSize {
		return Validation(fmt.Sprintf("participant counts cannot exceed %d", MaxGroupSize))
	}
	if p.Total() == 0 {
		return Validation("at least one participant is required")
	}
	return nil
}
