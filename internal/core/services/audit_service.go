package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/srgjo27/activity_booking/internal/core/domain"
	"github.com/srgjo27/activity_booking/internal/core/ports"
)

const (
	DefaultAuditPageSize = 50
	MaxAuditPageSize     = 10000
)

var auditCSVHeader = []string{
	"Timestamp", "User", "Email", "Action", "Resource", "Resource ID",
	"Category", "Severity", "IP Address", "Details",
}

type AuditService struct {
	repo ports.AuditRepository
	log  logrus.FieldLogger
	now  func() time.Time
}

func NewAuditService(repo ports.AuditRepository, log logrus.FieldLogger) *AuditService {
	return &AuditService{repo: repo, log: log, now: time.Now}
}

// Record appends one entry. Entries are never updated afterwards.
func (s *AuditService) Record(ctx context.Context, entry domain.AuditEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}

	if err := s.repo.Append(ctx, &entry); err != nil {
		return domain.Transport("append audit entry", err)
	}

	if entry.Severity == domain.SeverityCritical {
		s.log.WithFields(logrus.Fields{
			"actor":    entry.ActorID,
			"action":   entry.Action,
			"resource": entry.Resource,
		}).Warn("critical audit event")
	}
	return nil
}

func (s *AuditService) Query(ctx context.Context, filter domain.AuditFilter) (domain.AuditPage, error) {
	filter, err := normalizeFilter(filter)
	if err != nil {
		return domain.AuditPage{}, err
	}

	logs, total, err := s.repo.Find(ctx, filter)
	if err != nil {
		return domain.AuditPage{}, domain.Transport("query audit logs", err)
	}
	if logs == nil {
		logs = []domain.AuditEntry{}
	}
	return domain.AuditPage{Logs: logs, Total: total}, nil
}

func (s *AuditService) Stats(ctx context.Context) (*domain.AuditStats, error) {
	stats, err := s.repo.Stats(ctx, s.now().UTC())
	if err != nil {
		return nil, domain.Transport("audit statistics", err)
	}
	return stats, nil
}

// ExportCSV writes the filtered log as CSV and returns the number of rows.
// The filter's limit defaults to the maximum page size.
func (s *AuditService) ExportCSV(ctx context.Context, filter domain.AuditFilter, w io.Writer) (int, error) {
	if filter.Limit == 0 {
		filter.Limit = MaxAuditPageSize
	}
	page, err := s.Query(ctx, filter)
	if err != nil {
		return 0, err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(auditCSVHeader); err != nil {
		return 0, fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range page.Logs {
		row := []string{
			e.CreatedAt.UTC().Format(time.RFC3339),
			e.ActorID,
			e.ActorEmail,
			string(e.Action),
			e.Resource,
			e.ResourceID,
			string(e.Category),
			string(e.Severity),
			e.IPAddress,
			formatDetails(e.Details),
		}
		if err := cw.Write(row); err != nil {
			return 0, fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("flush csv: %w", err)
	}

	return len(page.Logs), nil
}

func normalizeFilter(f domain.AuditFilter) (domain.AuditFilter, error) {
	switch {
	case f.Limit < 0 || f.Offset < 0:
		return f, domain.Validation("limit and offset cannot be negative")
	case f.Limit == 0:
		f.Limit = DefaultAuditPageSize
	case f.Limit > MaxAuditPageSize:
		f.Limit = MaxAuditPageSize
	}
	if f.StartDate != nil && f.EndDate != nil && f.EndDate.Before(*f.StartDate) {
		return f, domain.Validation("end date is before start date")
	}
	f.Search = strings.TrimSpace(f.Search)
	return f, nil
}

// formatDetails renders details as sorted key=value pairs.
func formatDetails(d domain.AuditDetails) string {
	if len(d) == 0 {
		return ""
	}
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+d[k])
	}
	return strings.Join(parts, "; ")
}
