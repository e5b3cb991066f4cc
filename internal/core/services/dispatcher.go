package services

import (
	"context"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/srgjo27/activity_booking/internal/core/domain"
	"github.com/srgjo27/activity_booking/internal/core/ports"
)

const (
	ChannelSMS           = "sms"
	ChannelWhatsApp      = "whatsapp"
	ChannelTelegram      = "telegram"
	ChannelTelegramAdmin = "telegram_admin"

	DefaultNotifyTimeout = 10 * time.Second
)

// Target pairs a channel with the destination it should deliver to.
type Target struct {
	Channel     ports.Channel
	Destination string
}

type DispatchResult struct {
	Success bool            `json:"success"`
	Results map[string]bool `json:"results"`
	// MessageIDs holds provider ids of the sends that went through.
	MessageIDs map[string]string `json:"message_ids,omitempty"`
}

// Dispatcher fans lifecycle events out to the configured channels. Delivery
// is best-effort: no retries, failures only show up in the result map.
type Dispatcher struct {
	channels    map[string]ports.Channel
	adminChatID string
	timeout     time.Duration
	log         logrus.FieldLogger
}

type DispatcherOption func(*Dispatcher)

func WithNotifyTimeout(d time.Duration) DispatcherOption {
	return func(ds *Dispatcher) {
		if d > 0 {
			ds.timeout = d
		}
	}
}

// WithAdminChat sends operator alerts to the given telegram chat: new
// confirmations, cancellations, failed payments and slot capacity or
// weather changes.
func WithAdminChat(chatID string) DispatcherOption {
	return func(ds *Dispatcher) { ds.adminChatID = chatID }
}

func NewDispatcher(log logrus.FieldLogger, channels []ports.Channel, opts ...DispatcherOption) *Dispatcher {
	ds := &Dispatcher{
		channels: make(map[string]ports.Channel, len(channels)),
		timeout:  DefaultNotifyTimeout,
		log:      log,
	}
	for _, ch := range channels {
		ds.channels[ch.Name()] = ch
	}
	for _, opt := range opts {
		opt(ds)
	}
	return ds
}

// Publish lets the dispatcher stand in for a message broker: events are
// handled in-process on a detached context.
func (ds *Dispatcher) Publish(ctx context.Context, event domain.Event) error {
	go ds.Handle(context.WithoutCancel(ctx), event)
	return nil
}

// Handle is the consumer entrypoint. Only events customers need to hear
// about are fanned out.
func (ds *Dispatcher) Handle(ctx context.Context, event domain.Event) DispatchResult {
	targets := ds.TargetsFor(event)
	if len(targets) == 0 {
		return DispatchResult{Results: map[string]bool{}}
	}

	res := ds.Dispatch(ctx, event, targets)

	entry := ds.log.WithFields(logrus.Fields{
		"booking_ref": event.Reference,
		"event":       event.Type,
		"results":     res.Results,
	})
	if res.Success {
		entry.Info("notifications sent")
	} else {
		entry.Warn("no notification channel succeeded")
	}
	return res
}

// TargetsFor picks the channels an event goes to. SMS and WhatsApp need a
// phone number; telegram needs a chat id supplied by the customer.
func (ds *Dispatcher) TargetsFor(event domain.Event) []Target {
	var targets []Target
	add := func(name, dest string) {
		if ch, ok := ds.channels[name]; ok && dest != "" {
			targets = append(targets, Target{Channel: ch, Destination: dest})
		}
	}

	switch event.Type {
	case domain.EventBookingConfirmed, domain.EventBookingCancelled:
		add(ChannelSMS, event.Lead.Phone)
		add(ChannelWhatsApp, event.Lead.Phone)
		add(ChannelTelegram, event.Lead.TelegramChatID)
		add(ChannelTelegramAdmin, ds.adminChatID)
	case domain.EventPaymentFailed, domain.EventSlotCancelled, domain.EventSlotLimited:
		add(ChannelTelegramAdmin, ds.adminChatID)
	}
	return targets
}

// Dispatch sends event to every target concurrently. One target failing,
// erroring or panicking never stops the others.
func (ds *Dispatcher) Dispatch(ctx context.Context, event domain.Event, targets []Target) DispatchResult {
	res := DispatchResult{
		Results:    make(map[string]bool, len(targets)),
		MessageIDs: make(map[string]string),
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for _, t := range targets {
		name := t.Channel.Name()
		mu.Lock()
		res.Results[name] = false
		mu.Unlock()

		g.Go(func() error {
			ok, id := ds.send(gctx, event, t)

			mu.Lock()
			res.Results[name] = ok
			if ok && id != "" {
				res.MessageIDs[name] = id
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for _, ok := range res.Results {
		if ok {
			res.Success = true
			break
		}
	}
	return res
}

func (ds *Dispatcher) send(ctx context.Context, event domain.Event, t Target) (ok bool, id string) {
	name := t.Channel.Name()
	log := ds.log.WithFields(logrus.Fields{
		"channel":     name,
		"booking_ref": event.Reference,
	})

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("notification channel panicked")
			ok, id = false, ""
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, ds.timeout)
	defer cancel()

	result, err := t.Channel.Send(ctx, t.Destination, RenderMessage(name, event))
	if err != nil {
		log.WithError(err).Warn("notification send failed")
		return false, ""
	}
	if !result.Success {
		log.Warn("notification rejected by provider")
		return false, ""
	}
	return true, result.ProviderMessageID
}

// RenderMessage builds the text for one channel. Telegram gets HTML markup.
func RenderMessage(channel string, ev domain.Event) string {
	title := ev.ActivityTitle
	if title == "" {
		title = "your activity"
	}
	when := ev.Slot.Date
	if ev.Slot.TimeSlot != "" {
		when += " " + ev.Slot.TimeSlot
	}
	total := ev.TotalAmount.StringFixed(2) + " " + ev.Currency
	name := ev.Lead.Name

	switch channel {
	case ChannelTelegram, ChannelTelegramAdmin:
		name = html.EscapeString(name)
		title = html.EscapeString(title)
	}

	switch channel {
	case ChannelTelegramAdmin:
		switch ev.Type {
		case domain.EventPaymentFailed:
			return fmt.Sprintf("<b>PAYMENT FAILURE</b>\n\n<b>Amount:</b> %s\n<b>Error:</b> %s\n<b>Customer:</b> %s (%s)\n<b>Activity:</b> %s\n<b>Reference:</b> %s",
				total, html.EscapeString(ev.Reason), name, html.EscapeString(ev.Lead.Email), title, ev.Reference)
		case domain.EventBookingCancelled:
			return fmt.Sprintf("<b>BOOKING CANCELLED</b>\n\n<b>Refund:</b> %s %s\n<b>Reason:</b> %s\n<b>Participants:</b> %d\n<b>Activity:</b> %s\n<b>When:</b> %s\n<b>Customer:</b> %s (%s)\n<b>Reference:</b> %s",
				ev.RefundAmount.StringFixed(2), ev.Currency, html.EscapeString(ev.Reason), ev.Participants.Total(), title, when, name, html.EscapeString(ev.Lead.Email), ev.Reference)
		case domain.EventSlotCancelled:
			return fmt.Sprintf("<b>SLOT CANCELLED</b>\n\n<b>Activity:</b> %s\n<b>When:</b> %s\n<b>Reason:</b> %s\n<b>Bookings cancelled:</b> %d",
				title, when, html.EscapeString(ev.Reason), ev.Affected)
		case domain.EventSlotLimited:
			return fmt.Sprintf("<b>LOW AVAILABILITY</b>\n\n<b>Activity:</b> %s\n<b>When:</b> %s\n<b>Spots left:</b> %d",
				title, when, ev.SpotsLeft)
		}
		return fmt.Sprintf("<b>NEW BOOKING</b>\n\n<b>Revenue:</b> %s\n<b>Participants:</b> %d\n<b>Activity:</b> %s\n<b>When:</b> %s\n<b>Customer:</b> %s (%s, %s)\n<b>Reference:</b> %s",
			total, ev.Participants.Total(), title, when, name, html.EscapeString(ev.Lead.Email), html.EscapeString(ev.Lead.Phone), ev.Reference)
	case ChannelTelegram:
		if ev.Type == domain.EventBookingCancelled {
			return fmt.Sprintf("<b>Booking cancelled</b>\n\nHi %s, your booking for %s on %s was cancelled.\n<b>Refund:</b> %s %s\n<b>Reference:</b> %s",
				name, title, when, ev.RefundAmount.StringFixed(2), ev.Currency, ev.Reference)
		}
		return fmt.Sprintf("<b>Booking confirmed</b>\n\nHi %s, %s is booked for %s.\n<b>Total:</b> %s\n<b>Reference:</b> %s",
			name, title, when, total, ev.Reference)
	case ChannelWhatsApp:
		if ev.Type == domain.EventBookingCancelled {
			return strings.Join([]string{
				"Booking Cancelled",
				"",
				fmt.Sprintf("Hi %s, your booking for %s on %s has been cancelled.", name, title, when),
				fmt.Sprintf("Refund: %s %s", ev.RefundAmount.StringFixed(2), ev.Currency),
				fmt.Sprintf("Reference: %s", ev.Reference),
			}, "\n")
		}
		return strings.Join([]string{
			"Booking Confirmed!",
			"",
			fmt.Sprintf("Hi %s! Your booking is confirmed.", name),
			fmt.Sprintf("Activity: %s", title),
			fmt.Sprintf("When: %s", when),
			fmt.Sprintf("Total: %s", total),
			fmt.Sprintf("Reference: %s", ev.Reference),
		}, "\n")
	default:
		if ev.Type == domain.EventBookingCancelled {
			return fmt.Sprintf("Hi %s, your %s booking on %s is cancelled. Refund: %s %s. Ref: %s",
				name, title, when, ev.RefundAmount.StringFixed(2), ev.Currency, ev.Reference)
		}
		return fmt.Sprintf("Hi %s! Your %s is confirmed for %s. Ref: %s", name, title, when, ev.Reference)
	}
}
