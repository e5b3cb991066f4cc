package gormaudit

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/srgjo27/activity_booking/internal/core/domain"
)

const (
	statsWindow = 7 * 24 * time.Hour
	topN        = 5
)

// likeEscaper makes search terms match literally inside ILIKE patterns.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

type auditLog struct {
	ID         uuid.UUID           `gorm:"type:uuid;primaryKey"`
	UserID     string              `gorm:"column:user_id;not null"`
	UserEmail  string              `gorm:"column:user_email"`
	UserName   string              `gorm:"column:user_name"`
	Action     string              `gorm:"not null"`
	Resource   string              `gorm:"not null"`
	ResourceID string              `gorm:"column:resource_id"`
	Details    domain.AuditDetails `gorm:"serializer:json"`
	IPAddress  string              `gorm:"column:ip_address"`
	UserAgent  string              `gorm:"column:user_agent"`
	Severity   string              `gorm:"not null"`
	Category   string              `gorm:"not null"`
	CreatedAt  time.Time
}

func (auditLog) TableName() string { return "audit_logs" }

// Open wraps an existing pool so the audit store shares connections with
// the rest of the service.
func Open(db *sql.DB, level logger.LogLevel) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		Logger:                 logger.Default.LogMode(level),
		SkipDefaultTransaction: true,
	})
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Append(ctx context.Context, entry *domain.AuditEntry) error {
	row := auditLog{
		ID:         entry.ID,
		UserID:     entry.ActorID,
		UserEmail:  entry.ActorEmail,
		UserName:   entry.ActorName,
		Action:     string(entry.Action),
		Resource:   entry.Resource,
		ResourceID: entry.ResourceID,
		Details:    entry.Details,
		IPAddress:  entry.IPAddress,
		UserAgent:  entry.UserAgent,
		Severity:   string(entry.Severity),
		Category:   string(entry.Category),
		CreatedAt:  entry.CreatedAt,
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *Repository) Find(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, int64, error) {
	q := r.db.WithContext(ctx).Model(&auditLog{})

	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.Action != "" {
		q = q.Where("action = ?", string(filter.Action))
	}
	if filter.Resource != "" {
		q = q.Where("resource = ?", filter.Resource)
	}
	if filter.Category != "" {
		q = q.Where("category = ?", string(filter.Category))
	}
	if filter.Severity != "" {
		q = q.Where("severity = ?", string(filter.Severity))
	}
	if filter.StartDate != nil {
		q = q.Where("created_at >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		q = q.Where("created_at <= ?", *filter.EndDate)
	}
	if filter.Search != "" {
		like := "%" + likeEscaper.Replace(filter.Search) + "%"
		q = q.Where(`action ILIKE ? ESCAPE '\' OR resource ILIKE ? ESCAPE '\' OR user_email ILIKE ? ESCAPE '\'`, like, like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []auditLog
	err := q.Order("created_at DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	entries := make([]domain.AuditEntry, len(rows))
	for i, row := range rows {
		entries[i] = toEntry(row)
	}
	return entries, total, nil
}

func toEntry(row auditLog) domain.AuditEntry {
	return domain.AuditEntry{
		ID:         row.ID,
		ActorID:    row.UserID,
		ActorEmail: row.UserEmail,
		ActorName:  row.UserName,
		Action:     domain.AuditAction(row.Action),
		Resource:   row.Resource,
		ResourceID: row.ResourceID,
		Details:    row.Details,
		IPAddress:  row.IPAddress,
		UserAgent:  row.UserAgent,
		Severity:   domain.AuditSeverity(row.Severity),
		Category:   domain.AuditCategory(row.Category),
		CreatedAt:  row.CreatedAt,
	}
}

// Stats aggregates in the database; nothing is counted in memory except
// the zero fill of the severity breakdown.
func (r *Repository) Stats(ctx context.Context, now time.Time) (*domain.AuditStats, error) {
	db := r.db.WithContext(ctx)
	now = now.UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	since := now.Add(-statsWindow)

	var s domain.AuditStats

	if err := db.Model(&auditLog{}).Count(&s.TotalLogs).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&auditLog{}).Where("created_at >= ?", dayStart).Count(&s.TodayLogs).Error; err != nil {
		return nil, err
	}
	err := db.Model(&auditLog{}).
		Where("severity IN ? AND created_at >= ?", []string{string(domain.SeverityError), string(domain.SeverityCritical)}, since).
		Count(&s.CriticalEvents).Error
	if err != nil {
		return nil, err
	}

	err = db.Raw(`
		SELECT to_char(created_at, 'YYYY-MM-DD') AS key, COUNT(*) AS count
		FROM audit_logs
		WHERE created_at >= ?
		GROUP BY 1
		ORDER BY 1`, since).Scan(&s.CountsByDay).Error
	if err != nil {
		return nil, err
	}

	var severities []domain.CountByKey
	err = db.Raw(`
		SELECT severity AS key, COUNT(*) AS count
		FROM audit_logs
		GROUP BY severity`).Scan(&severities).Error
	if err != nil {
		return nil, err
	}
	s.SeverityBreakdown = fillSeverities(severities)

	err = db.Raw(`
		SELECT action AS key, COUNT(*) AS count
		FROM audit_logs
		GROUP BY action
		ORDER BY count DESC, action
		LIMIT ?`, topN).Scan(&s.TopActions).Error
	if err != nil {
		return nil, err
	}

	err = db.Raw(`
		SELECT user_id AS key, COUNT(*) AS count
		FROM audit_logs
		GROUP BY user_id
		ORDER BY count DESC, user_id
		LIMIT ?`, topN).Scan(&s.TopUsers).Error
	if err != nil {
		return nil, err
	}

	return &s, nil
}

func fillSeverities(counts []domain.CountByKey) []domain.CountByKey {
	byKey := make(map[string]int64, len(counts))
	for _, c := range counts {
		byKey[c.Key] = c.Count
	}

	out := make([]domain.CountByKey, len(domain.AuditSeverities))
	for i, sev := range domain.AuditSeverities {
		out[i] = domain.CountByKey{Key: string(sev), Count: byKey[string(sev)]}
	}
	return out
}
