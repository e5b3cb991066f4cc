package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type AuditSeverity string

const (
	SeverityInfo     AuditSeverity = "info"
	SeverityWarning  AuditSeverity = "warning"
	SeverityError    AuditSeverity = "error"
	SeverityCritical AuditSeverity = "critical"
)

var AuditSeverities = []AuditSeverity{SeverityInfo, SeverityWarning, SeverityError, SeverityCritical}

func ParseAuditSeverity(s string) (AuditSeverity, error) {
	for _, v := range AuditSeverities {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown audit severity %q", s)
}

type AuditCategory string

const (
	CategoryAuth     AuditCategory = "auth"
	CategoryAdmin    AuditCategory = "admin"
	CategoryBooking  AuditCategory = "booking"
	CategoryActivity AuditCategory = "activity"
	CategoryReview   AuditCategory = "review"
	CategoryPayment  AuditCategory = "payment"
	CategorySettings AuditCategory = "settings"
	CategoryUser     AuditCategory = "user"
)

var AuditCategories = []AuditCategory{
	CategoryAuth, CategoryAdmin, CategoryBooking, CategoryActivity,
	CategoryReview, CategoryPayment, CategorySettings, CategoryUser,
}

func ParseAuditCategory(s string) (AuditCategory, error) {
	for _, v := range AuditCategories {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown audit category %q", s)
}

type AuditAction string

const (
	ActionCreateBooking     AuditAction = "CREATE_BOOKING"
	ActionConfirmBooking    AuditAction = "CONFIRM_BOOKING"
	ActionCancelBooking     AuditAction = "CANCEL_BOOKING"
	ActionCompleteBooking   AuditAction = "COMPLETE_BOOKING"
	ActionMarkNoShow        AuditAction = "MARK_NO_SHOW"
	ActionPaymentFailed     AuditAction = "PAYMENT_FAILED"
	ActionRecordPayment     AuditAction = "RECORD_PAYMENT"
	ActionCancelSlot        AuditAction = "CANCEL_SLOT"
	ActionExpireReservation AuditAction = "EXPIRE_RESERVATION"
	ActionExportAuditLogs   AuditAction = "EXPORT_AUDIT_LOGS"
)

// AuditDetails is a flat key/value payload. Keys in use:
//
//	CREATE_BOOKING     reference, slot, participants, total
//	CONFIRM_BOOKING    reference, payment_id, amount, platform_amount, operator_amount
//	CANCEL_BOOKING     reference, from_status, reason, refund (error when it failed)
//	COMPLETE_BOOKING   reference
//	MARK_NO_SHOW       reference
//	PAYMENT_FAILED     reference, reason
//	RECORD_PAYMENT     reference, payment_id, amount, paid_amount
//	CANCEL_SLOT        slot, weather, released, cancelled, failed
//	EXPIRE_RESERVATION reference, reservation_id
//	EXPORT_AUDIT_LOGS  rows
type AuditDetails map[string]string

const SystemActor = "system"

type AuditEntry struct {
	ID         uuid.UUID     `json:"id"`
	ActorID    string        `json:"user_id"`
	ActorEmail string        `json:"user_email,omitempty"`
	ActorName  string        `json:"user_name,omitempty"`
	Action     AuditAction   `json:"action"`
	Resource   string        `json:"resource"`
	ResourceID string        `json:"resource_id,omitempty"`
	Details    AuditDetails  `json:"details,omitempty"`
	IPAddress  string        `json:"ip_address,omitempty"`
	UserAgent  string        `json:"user_agent,omitempty"`
	Severity   AuditSeverity `json:"severity"`
	Category   AuditCategory `json:"category"`
	CreatedAt  time.Time     `json:"timestamp"`
}

func (e *AuditEntry) Validate() error {
	if e.ActorID == "" {
		return Validation("audit entry requires an actor")
	}
	if e.Action == "" || e.Resource == "" {
		return Validation("audit entry requires action and resource")
	}
	if _, err := ParseAuditSeverity(string(e.Severity)); err != nil {
		return Validation(err.Error())
	}
	if _, err := ParseAuditCategory(string(e.Category)); err != nil {
		return Validation(err.Error())
	}
	return nil
}

type AuditFilter struct {
	UserID    string
	Action    AuditAction
	Resource  string
	Category  AuditCategory
	Severity  AuditSeverity
	StartDate *time.Time
	EndDate   *time.Time
	Search    string
	Limit     int
	Offset    int
}

type AuditPage struct {
	Logs  []AuditEntry `json:"logs"`
	Total int64        `json:"total"`
}

type CountByKey struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

type AuditStats struct {
	TotalLogs         int64        `json:"total_logs"`
	TodayLogs         int64        `json:"today_logs"`
	CriticalEvents    int64        `json:"critical_events"`
	CountsByDay       []CountByKey `json:"counts_by_day"`
	SeverityBreakdown []CountByKey `json:"severity_breakdown"`
	TopActions        []CountByKey `json:"top_actions"`
	TopUsers          []CountByKey `json:"top_users"`
}
