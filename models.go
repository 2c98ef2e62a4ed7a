package accounts

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserRole is the user's role
type UserRole = string

const (
	// RoleStudent can view their own records
	RoleStudent UserRole = "student"
	// RoleTeacher can manage students and records
	RoleTeacher UserRole = "teacher"
	// RoleAdmin can additionally manage accounts and run maintenance jobs
	RoleAdmin UserRole = "admin"
)

// Profile is the application-owned half of an account. Its id always
// equals the owning Identity's id; the row is created by auto-provisioning
// (or by an admin) and removed only through the cascade delete handler.
type Profile struct {
	bun.BaseModel  `bun:"table:profiles,alias:prf"`
	ID             uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	Email          string     `bun:"email,notnull,unique" json:"email"`
	FullName       string     `bun:"full_name,notnull" json:"full_name"`
	Phone          string     `bun:"phone" json:"phone,omitempty"`
	Department     string     `bun:"department" json:"department,omitempty"`
	Designation    string     `bun:"designation" json:"designation,omitempty"`
	Specialization string     `bun:"specialization" json:"specialization,omitempty"`
	Role           UserRole   `bun:"user_role,notnull" json:"user_role"`
	Active         bool       `bun:"is_active" json:"is_active"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Snapshot captures the row as a payload suitable for audit entries.
func (p *Profile) Snapshot() map[string]any {
	if p == nil {
		return nil
	}

	snap := map[string]any{
		"id":        p.ID.String(),
		"email":     p.Email,
		"full_name": p.FullName,
		"user_role": string(p.Role),
		"is_active": p.Active,
	}

	if p.Phone != "" {
		snap["phone"] = p.Phone
	}
	if p.Department != "" {
		snap["department"] = p.Department
	}
	if p.Designation != "" {
		snap["designation"] = p.Designation
	}
	if p.Specialization != "" {
		snap["specialization"] = p.Specialization
	}
	if p.CreatedAt != nil {
		snap["created_at"] = p.CreatedAt.UTC().Format(time.RFC3339)
	}

	return snap
}

// AuditEventType enumerates the lifecycle events the audit log accepts.
type AuditEventType string

const (
	AuditProfileCreated AuditEventType = "PROFILE_CREATED"
	AuditProfileUpdated AuditEventType = "PROFILE_UPDATED"
	AuditProfileDeleted AuditEventType = "PROFILE_DELETED"
	AuditCleanupRun     AuditEventType = "CLEANUP_RUN"
)

// AuditEntry is a single append-only record of a lifecycle event. Nothing
// in this package updates or deletes a row once written.
type AuditEntry struct {
	bun.BaseModel `bun:"table:audit_log,alias:aud"`
	ID            uuid.UUID      `bun:"id,pk,type:uuid" json:"id"`
	EventType     AuditEventType `bun:"event_type,notnull" json:"event_type"`
	SubjectID     uuid.UUID      `bun:"subject_id,type:uuid" json:"subject_id"`
	Payload       map[string]any `bun:"payload,type:jsonb" json:"payload,omitempty"`
	CreatedAt     time.Time      `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
}
