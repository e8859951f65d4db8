package domain

import (
	"encoding/json"
	"time"
)

type Report struct {
	ID             int64        `json:"id"`
	Title          string       `json:"title"`
	Status         ReportStatus `json:"status"`
	RequiredLevels []int        `json:"required_levels"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

type User struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	ApprovalLevel int       `json:"approval_level"`
	CreatedAt     time.Time `json:"created_at"`
}

// Approval is one per (report, level). ReviewedBy is a weak reference: it is
// cleared when the reviewing user is deleted.
type Approval struct {
	ID         int64          `json:"id"`
	ReportID   int64          `json:"report_id"`
	ReviewedBy *int64         `json:"reviewed_by,omitempty"`
	Level      int            `json:"level"`
	Status     ApprovalStatus `json:"status"`
	Notes      *string        `json:"notes,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

type ReportProgress struct {
	Report    Report       `json:"report"`
	Approvals []Approval   `json:"approvals"`
	Derived   ReportStatus `json:"derived_status"`
}

// LevelStatus returns the status of the approval for level and whether the
// slot exists.
func (p ReportProgress) LevelStatus(level int) (ApprovalStatus, bool) {
	for _, a := range p.Approvals {
		if a.Level == level {
			return a.Status, true
		}
	}
	return ApprovalPending, false
}

type AuditEntry struct {
	ReportID  int64           `json:"report_id"`
	State     AuditState      `json:"state"`
	Detail    json.RawMessage `json:"detail,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
