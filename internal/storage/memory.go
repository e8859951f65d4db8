package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"report-approval-workflow/internal/domain"
)

// MemoryStore keeps the same contract as PostgresStore, including the
// foreign-key delete policies, without a database. Transactions run one at a
// time on a copy of the state that replaces the live state on commit.
type MemoryStore struct {
	mu    sync.Mutex
	now   func() time.Time
	state memState
}

type memState struct {
	nextUserID     int64
	nextReportID   int64
	nextApprovalID int64
	users          map[int64]domain.User
	reports        map[int64]domain.Report
	approvals      map[int64]domain.Approval
	audit          []domain.AuditEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now: func() time.Time { return time.Now().UTC() },
		state: memState{
			users:     make(map[int64]domain.User),
			reports:   make(map[int64]domain.Report),
			approvals: make(map[int64]domain.Approval),
		},
	}
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := m.state.clone()
	if err := fn(ctx, &memTx{state: &work, now: m.now}); err != nil {
		return err
	}
	m.state = work
	return nil
}

func (s memState) clone() memState {
	out := s
	out.users = make(map[int64]domain.User, len(s.users))
	for k, v := range s.users {
		out.users[k] = v
	}
	out.reports = make(map[int64]domain.Report, len(s.reports))
	for k, v := range s.reports {
		v.RequiredLevels = append([]int(nil), v.RequiredLevels...)
		out.reports[k] = v
	}
	out.approvals = make(map[int64]domain.Approval, len(s.approvals))
	for k, v := range s.approvals {
		out.approvals[k] = v
	}
	out.audit = append([]domain.AuditEntry(nil), s.audit...)
	return out
}

type memTx struct {
	state *memState
	now   func() time.Time
}

func (t *memTx) CreateUser(_ context.Context, u domain.User) (domain.User, error) {
	t.state.nextUserID++
	u.ID = t.state.nextUserID
	u.CreatedAt = t.now()
	t.state.users[u.ID] = u
	return u, nil
}

func (t *memTx) GetUser(_ context.Context, userID int64) (domain.User, error) {
	u, ok := t.state.users[userID]
	if !ok {
		return domain.User{}, fmt.Errorf("user %d: %w", userID, domain.ErrNotFound)
	}
	return u, nil
}

func (t *memTx) DeleteUser(_ context.Context, userID int64) error {
	if _, ok := t.state.users[userID]; !ok {
		return fmt.Errorf("user %d: %w", userID, domain.ErrNotFound)
	}
	delete(t.state.users, userID)
	for id, a := range t.state.approvals {
		if a.ReviewedBy != nil && *a.ReviewedBy == userID {
			a.ReviewedBy = nil
			t.state.approvals[id] = a
		}
	}
	return nil
}

func (t *memTx) CreateReport(_ context.Context, r domain.Report) (domain.Report, error) {
	t.state.nextReportID++
	r.ID = t.state.nextReportID
	r.RequiredLevels = append([]int(nil), r.RequiredLevels...)
	r.CreatedAt = t.now()
	r.UpdatedAt = r.CreatedAt
	t.state.reports[r.ID] = r
	return r, nil
}

func (t *memTx) GetReport(_ context.Context, reportID int64) (domain.Report, error) {
	r, ok := t.state.reports[reportID]
	if !ok {
		return domain.Report{}, fmt.Errorf("report %d: %w", reportID, domain.ErrNotFound)
	}
	r.RequiredLevels = append([]int(nil), r.RequiredLevels...)
	return r, nil
}

func (t *memTx) LockReport(ctx context.Context, reportID int64) (domain.Report, error) {
	return t.GetReport(ctx, reportID)
}

func (t *memTx) UpdateReportStatus(_ context.Context, reportID int64, status domain.ReportStatus) error {
	r, ok := t.state.reports[reportID]
	if !ok {
		return fmt.Errorf("report %d: %w", reportID, domain.ErrNotFound)
	}
	r.Status = status
	r.UpdatedAt = t.now()
	t.state.reports[reportID] = r
	return nil
}

func (t *memTx) DeleteReport(_ context.Context, reportID int64) error {
	if _, ok := t.state.reports[reportID]; !ok {
		return fmt.Errorf("report %d: %w", reportID, domain.ErrNotFound)
	}
	delete(t.state.reports, reportID)
	for id, a := range t.state.approvals {
		if a.ReportID == reportID {
			delete(t.state.approvals, id)
		}
	}
	kept := t.state.audit[:0]
	for _, e := range t.state.audit {
		if e.ReportID != reportID {
			kept = append(kept, e)
		}
	}
	t.state.audit = kept
	return nil
}

func (t *memTx) CreateApproval(_ context.Context, a domain.Approval) (domain.Approval, error) {
	if _, ok := t.state.reports[a.ReportID]; !ok {
		return domain.Approval{}, fmt.Errorf("report %d: %w", a.ReportID, domain.ErrNotFound)
	}
	t.state.nextApprovalID++
	a.ID = t.state.nextApprovalID
	a.CreatedAt = t.now()
	a.UpdatedAt = a.CreatedAt
	t.state.approvals[a.ID] = a
	return a, nil
}

func (t *memTx) GetApproval(_ context.Context, approvalID int64) (domain.Approval, error) {
	a, ok := t.state.approvals[approvalID]
	if !ok {
		return domain.Approval{}, fmt.Errorf("approval %d: %w", approvalID, domain.ErrNotFound)
	}
	return a, nil
}

func (t *memTx) LockApproval(ctx context.Context, approvalID int64) (domain.Approval, error) {
	return t.GetApproval(ctx, approvalID)
}

func (t *memTx) FindApprovalByLevel(_ context.Context, reportID int64, level int) (domain.Approval, error) {
	var found *domain.Approval
	for _, a := range t.state.approvals {
		if a.ReportID != reportID || a.Level != level {
			continue
		}
		if found == nil || a.ID < found.ID {
			a := a
			found = &a
		}
	}
	if found == nil {
		return domain.Approval{}, fmt.Errorf("approval level %d: %w", level, domain.ErrNotFound)
	}
	return *found, nil
}

func (t *memTx) ListApprovals(_ context.Context, reportID int64) ([]domain.Approval, error) {
	items := make([]domain.Approval, 0)
	for _, a := range t.state.approvals {
		if a.ReportID == reportID {
			items = append(items, a)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Level != items[j].Level {
			return items[i].Level < items[j].Level
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

func (t *memTx) UpdateApprovalDecision(_ context.Context, a domain.Approval) (domain.Approval, error) {
	existing, ok := t.state.approvals[a.ID]
	if !ok {
		return domain.Approval{}, fmt.Errorf("approval %d: %w", a.ID, domain.ErrNotFound)
	}
	if a.ReviewedBy != nil {
		if _, ok := t.state.users[*a.ReviewedBy]; !ok {
			return domain.Approval{}, fmt.Errorf("user %d: %w", *a.ReviewedBy, domain.ErrNotFound)
		}
	}
	existing.Status = a.Status
	existing.ReviewedBy = a.ReviewedBy
	existing.Notes = a.Notes
	existing.UpdatedAt = t.now()
	t.state.approvals[a.ID] = existing
	return existing, nil
}

func (t *memTx) InsertAudit(_ context.Context, reportID int64, state domain.AuditState, detail any) error {
	payload, err := auditPayload(detail)
	if err != nil {
		return err
	}
	t.state.audit = append(t.state.audit, domain.AuditEntry{
		ReportID:  reportID,
		State:     state,
		Detail:    payload,
		CreatedAt: t.now(),
	})
	return nil
}

func (t *memTx) ListAudit(_ context.Context, reportID int64) ([]domain.AuditEntry, error) {
	entries := make([]domain.AuditEntry, 0)
	for _, e := range t.state.audit {
		if e.ReportID == reportID {
			entries = append(entries, e)
		}
	}
	return entries, nil
}
