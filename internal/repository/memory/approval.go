package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cmlabs-hris/hris-workflow-go/internal/domain/approval"
	"github.com/google/uuid"
)

// RequestStore holds requests, their audit trail and the outbox behind a
// single mutex so each transition lands together with its audit and
// outbox entries.
type RequestStore struct {
	mu       sync.Mutex
	requests map[string]approval.Request
	audits   map[string][]approval.AuditEntry
	outbox   []approval.OutboxEntry
}

func NewRequestStore() *RequestStore {
	return &RequestStore{
		requests: make(map[string]approval.Request),
		audits:   make(map[string][]approval.AuditEntry),
	}
}

// Create implements approval.RequestRepository.
func (s *RequestStore) Create(ctx context.Context, request approval.Request, audit approval.AuditEntry) (approval.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if request.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return approval.Request{}, err
		}
		request.ID = id.String()
	}
	if request.CreatedAt.IsZero() {
		request.CreatedAt = time.Now().UTC()
	}
	if request.UpdatedAt.IsZero() {
		request.UpdatedAt = request.CreatedAt
	}

	audit.RequestID = request.ID
	if err := s.appendAudit(audit); err != nil {
		return approval.Request{}, err
	}
	s.requests[request.ID] = cloneRequest(request)
	return cloneRequest(request), nil
}

// GetByID implements approval.RequestRepository.
func (s *RequestStore) GetByID(ctx context.Context, id string) (approval.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	request, ok := s.requests[id]
	if !ok {
		return approval.Request{}, approval.ErrRequestNotFound
	}
	return cloneRequest(request), nil
}

// List implements approval.RequestRepository.
func (s *RequestStore) List(ctx context.Context, filter approval.RequestFilter) ([]approval.Request, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []approval.Request
	for _, r := range s.requests {
		if filter.RequesterID != nil && r.RequesterID != *filter.RequesterID {
			continue
		}
		if filter.ApproverID != nil && (r.ApproverID == nil || *r.ApproverID != *filter.ApproverID) {
			continue
		}
		if filter.State != nil && r.State != *filter.State {
			continue
		}
		if filter.Type != nil && r.Type != *filter.Type {
			continue
		}
		if filter.PendingBefore != nil && (r.SubmittedAt == nil || !r.SubmittedAt.Before(*filter.PendingBefore)) {
			continue
		}
		matched = append(matched, cloneRequest(r))
	}

	sort.Slice(matched, func(i, j int) bool {
		if filter.OldestFirst {
			return submittedBefore(matched[i], matched[j])
		}
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := int64(len(matched))
	if filter.Offset >= len(matched) {
		return []approval.Request{}, total, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

// Transition implements approval.RequestRepository.
func (s *RequestStore) Transition(ctx context.Context, t approval.Transition) (approval.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	request, ok := s.requests[t.RequestID]
	if !ok {
		return approval.Request{}, approval.ErrRequestNotFound
	}
	if request.State != t.From {
		return approval.Request{}, approval.ErrStateConflict
	}

	request.State = t.To
	if t.ApproverID != nil {
		request.ApproverID = t.ApproverID
	}
	if t.SubmittedAt != nil {
		request.SubmittedAt = t.SubmittedAt
	}
	if t.DecidedBy != nil {
		request.DecidedBy = t.DecidedBy
		request.DecidedAt = t.DecidedAt
		request.Comment = t.Comment
	}
	request.UpdatedAt = time.Now().UTC()

	var outbox *approval.OutboxEntry
	if t.Outbox != nil {
		entry, err := newOutboxEntry(*t.Outbox, request.ID)
		if err != nil {
			return approval.Request{}, err
		}
		outbox = &entry
	}

	audit := t.Audit
	audit.RequestID = request.ID
	if err := s.appendAudit(audit); err != nil {
		return approval.Request{}, err
	}
	if outbox != nil && !s.hasOutboxLocked(request.ID) {
		s.outbox = append(s.outbox, *outbox)
	}
	s.requests[request.ID] = request
	return cloneRequest(request), nil
}

// ListByRequest implements approval.AuditRepository.
func (s *RequestStore) ListByRequest(ctx context.Context, requestID string) ([]approval.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]approval.AuditEntry, len(s.audits[requestID]))
	copy(entries, s.audits[requestID])
	return entries, nil
}

// hasOutboxLocked must be called with s.mu held. One entry per request.
func (s *RequestStore) hasOutboxLocked(requestID string) bool {
	for _, existing := range s.outbox {
		if existing.RequestID == requestID {
			return true
		}
	}
	return false
}

func newOutboxEntry(entry approval.OutboxEntry, requestID string) (approval.OutboxEntry, error) {
	if entry.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return approval.OutboxEntry{}, err
		}
		entry.ID = id.String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.RequestID = requestID
	if entry.Payload != nil {
		payload := make([]byte, len(entry.Payload))
		copy(payload, entry.Payload)
		entry.Payload = payload
	}
	return entry, nil
}

// Outbox returns a copy of the enqueued entries.
func (s *RequestStore) Outbox() []approval.OutboxEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]approval.OutboxEntry, len(s.outbox))
	copy(entries, s.outbox)
	return entries
}

// appendAudit must be called with s.mu held.
func (s *RequestStore) appendAudit(entry approval.AuditEntry) error {
	if entry.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		entry.ID = id.String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.audits[entry.RequestID] = append(s.audits[entry.RequestID], entry)
	return nil
}

// submittedBefore orders by submission time ascending; unsubmitted
// requests sort last.
func submittedBefore(a, b approval.Request) bool {
	switch {
	case a.SubmittedAt == nil && b.SubmittedAt == nil:
		return a.ID < b.ID
	case a.SubmittedAt == nil:
		return false
	case b.SubmittedAt == nil:
		return true
	case !a.SubmittedAt.Equal(*b.SubmittedAt):
		return a.SubmittedAt.Before(*b.SubmittedAt)
	}
	return a.ID < b.ID
}

func cloneRequest(r approval.Request) approval.Request {
	if r.Payload != nil {
		payload := make([]byte, len(r.Payload))
		copy(payload, r.Payload)
		r.Payload = payload
	}
	return r
}
