// Package audit records user actions on back-office entities and serves the audit viewer.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/urbanisme-sn/portail/internal/metrics"
	"github.com/urbanisme-sn/portail/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Audit actions constants
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionView   = "view"
	ActionLogin  = "login"
	ActionLogout = "logout"
)

// SystemUser is recorded when an action happens outside a user request (CLI, seeding).
const SystemUser = "system"

const defaultLimit = 50

// Entry is one action to record. Empty optional fields are stored as absent.
type Entry struct {
	UserID     string
	UserEmail  string
	Action     string
	EntityType string
	EntityID   string
	EntityName string
	Changes    map[string]any
	IPAddress  string
	UserAgent  string
}

// Service writes and reads audit logs.
type Service struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
	loc    *time.Location
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used for swallowed failures.
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithLocation sets the time zone of the per-day analytics buckets. Defaults to time.Local.
func WithLocation(loc *time.Location) Option { return func(s *Service) { s.loc = loc } }

// NewService creates a new audit service
func NewService(db *gorm.DB, opts ...Option) *Service {
	s := &Service{db: db, logger: slog.Default(), now: time.Now, loc: time.Local}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Log records e. Missing user fields are taken from the actor in ctx and the email is looked up
// from the users table when still absent. Failures are logged and never returned.
func (s *Service) Log(ctx context.Context, e Entry) {
	if actor, ok := ActorFromContext(ctx); ok {
		if e.UserID == "" {
			e.UserID = actor.UserID
		}
		if e.UserEmail == "" && e.UserID == actor.UserID {
			e.UserEmail = actor.Email
		}
		if e.IPAddress == "" {
			e.IPAddress = actor.IPAddress
		}
		if e.UserAgent == "" {
			e.UserAgent = actor.UserAgent
		}
	}
	if e.UserID == "" {
		e.UserID = SystemUser
	}
	if e.UserEmail == "" && e.UserID != SystemUser {
		e.UserEmail = s.lookupEmail(ctx, e.UserID)
	}

	entry := models.AuditLog{
		UserID:     e.UserID,
		UserEmail:  e.UserEmail,
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		EntityName: e.EntityName,
		IPAddress:  e.IPAddress,
		UserAgent:  e.UserAgent,
		CreatedAt:  s.now().UTC(),
	}
	if len(e.Changes) > 0 {
		entry.Changes = datatypes.JSONMap(e.Changes)
	}

	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		metrics.AuditWriteFailures.Inc()
		s.logger.Error("Failed to write audit log",
			"action", e.Action, "entity_type", e.EntityType, "entity_id", e.EntityID, "error", err)
	}
}

func (s *Service) lookupEmail(ctx context.Context, userID string) string {
	var emails []string
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Limit(1).
		Pluck("email", &emails).Error
	if err != nil {
		s.logger.Debug("Could not resolve audit user email", "user_id", userID, "error", err)
		return ""
	}
	if len(emails) == 0 {
		return ""
	}
	return emails[0]
}

// RecentLogs returns the newest logs. A non-positive limit means 50.
func (s *Service) RecentLogs(ctx context.Context, limit int) []models.AuditLog {
	return s.find(ctx, "recent", limit, nil)
}

// UserLogs returns the newest logs of one user. A non-positive limit means 50.
func (s *Service) UserLogs(ctx context.Context, userID string, limit int) []models.AuditLog {
	return s.find(ctx, "user", limit, func(q *gorm.DB) *gorm.DB {
		return q.Where("user_id = ?", userID)
	})
}

// EntityLogs returns every log of one entity, newest first.
func (s *Service) EntityLogs(ctx context.Context, entityType, entityID string) []models.AuditLog {
	return s.find(ctx, "entity", -1, func(q *gorm.DB) *gorm.DB {
		return q.Where("entity_type = ? AND entity_id = ?", entityType, entityID)
	})
}

func (s *Service) find(ctx context.Context, kind string, limit int, scope func(*gorm.DB) *gorm.DB) []models.AuditLog {
	q := s.db.WithContext(ctx).Model(&models.AuditLog{})
	if scope != nil {
		q = scope(q)
	}
	if limit == 0 || limit < -1 {
		limit = defaultLimit
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	logs := []models.AuditLog{}
	if err := q.Order("created_at DESC").Find(&logs).Error; err != nil {
		s.logger.Error("Failed to read audit logs", "query", kind, "error", err)
		return []models.AuditLog{}
	}
	return logs
}

// Analytics tallies the logs of a time window.
type Analytics struct {
	Days         int            `json:"days"`
	Since        time.Time      `json:"since"`
	Total        int            `json:"total"`
	UniqueUsers  int            `json:"unique_users"`
	ByAction     map[string]int `json:"by_action"`
	ByEntityType map[string]int `json:"by_entity_type"`
	ByDay        map[string]int `json:"by_day"` // keyed by local date, 2006-01-02
}

// Analytics counts the logs of the last days by action, entity type and local calendar day.
// A non-positive days means 7. It returns nil when the logs cannot be read.
func (s *Service) Analytics(ctx context.Context, days int) *Analytics {
	if days <= 0 {
		days = 7
	}
	since := s.now().Add(-time.Duration(days) * 24 * time.Hour).UTC()

	var logs []models.AuditLog
	err := s.db.WithContext(ctx).
		Select("user_id", "action", "entity_type", "created_at").
		Where("created_at >= ?", since).
		Find(&logs).Error
	if err != nil {
		s.logger.Error("Failed to read audit analytics", "days", days, "error", err)
		return nil
	}

	a := &Analytics{
		Days:         days,
		Since:        since,
		Total:        len(logs),
		ByAction:     make(map[string]int),
		ByEntityType: make(map[string]int),
		ByDay:        make(map[string]int),
	}
	users := make(map[string]struct{})
	for _, l := range logs {
		a.ByAction[l.Action]++
		a.ByEntityType[l.EntityType]++
		a.ByDay[l.CreatedAt.In(s.loc).Format("2006-01-02")]++
		users[l.UserID] = struct{}{}
	}
	a.UniqueUsers = len(users)
	return a
}
