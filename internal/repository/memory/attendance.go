package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cmlabs-hris/hris-workflow-go/internal/domain/attendance"
	"github.com/google/uuid"
)

// AttendanceRepository keeps records in process memory. At most one open
// session per employee, mirroring the partial unique index in Postgres.
type AttendanceRepository struct {
	mu      sync.Mutex
	records map[string]attendance.AttendanceRecord
}

func NewAttendanceRepository() *AttendanceRepository {
	return &AttendanceRepository{
		records: make(map[string]attendance.AttendanceRecord),
	}
}

// Create implements attendance.AttendanceRepository.
func (r *AttendanceRepository) Create(ctx context.Context, record attendance.AttendanceRecord) (attendance.AttendanceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if record.CheckOut == nil {
		for _, existing := range r.records {
			if existing.EmployeeID == record.EmployeeID && existing.CheckIn != nil && existing.CheckOut == nil {
				return attendance.AttendanceRecord{}, attendance.ErrOpenSessionExists
			}
		}
	}

	if record.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return attendance.AttendanceRecord{}, err
		}
		record.ID = id.String()
	}
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now

	r.records[record.ID] = record
	return record, nil
}

// GetOpenSession implements attendance.AttendanceRepository.
func (r *AttendanceRepository) GetOpenSession(ctx context.Context, employeeID string) (attendance.AttendanceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.records {
		if existing.EmployeeID == employeeID && existing.CheckIn != nil && existing.CheckOut == nil {
			return existing, nil
		}
	}
	return attendance.AttendanceRecord{}, attendance.ErrNotCheckedIn
}

// SetCheckOut implements attendance.AttendanceRepository.
func (r *AttendanceRepository) SetCheckOut(ctx context.Context, id string, checkOut time.Time) (attendance.AttendanceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[id]
	if !ok {
		return attendance.AttendanceRecord{}, attendance.ErrAttendanceNotFound
	}
	if record.CheckOut != nil {
		return attendance.AttendanceRecord{}, attendance.ErrAlreadyCheckedOut
	}

	out := checkOut.UTC()
	record.CheckOut = &out
	record.UpdatedAt = time.Now().UTC()
	r.records[id] = record
	return record, nil
}

// ListByEmployee implements attendance.AttendanceRepository.
func (r *AttendanceRepository) ListByEmployee(ctx context.Context, employeeID string, from, to time.Time) ([]attendance.RawAttendance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fromKey, toKey := from.Format("2006-01-02"), to.Format("2006-01-02")

	var matched []attendance.AttendanceRecord
	for _, record := range r.records {
		key := record.Date.Format("2006-01-02")
		if record.EmployeeID == employeeID && key >= fromKey && key <= toKey {
			matched = append(matched, record)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		di, dj := matched[i].Date.Format("2006-01-02"), matched[j].Date.Format("2006-01-02")
		if di != dj {
			return di < dj
		}
		return stampOf(matched[i]).Before(stampOf(matched[j]))
	})

	rows := make([]attendance.RawAttendance, 0, len(matched))
	for _, record := range matched {
		rows = append(rows, attendance.RawAttendance{
			ID:          record.ID,
			EmployeeID:  record.EmployeeID,
			Date:        record.Date.Format("2006-01-02"),
			CheckIn:     formatStamp(record.CheckIn),
			CheckOut:    formatStamp(record.CheckOut),
			WorkedHours: record.WorkedHours,
		})
	}
	return rows, nil
}

func stampOf(r attendance.AttendanceRecord) time.Time {
	if r.CheckIn != nil {
		return *r.CheckIn
	}
	if r.CheckOut != nil {
		return *r.CheckOut
	}
	return time.Time{}
}

func formatStamp(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339Nano)
	return &s
}

type rosterKey struct {
	employeeID string
	date       string
}

// RosterRepository resolves date overrides first, then the weekly pattern.
type RosterRepository struct {
	mu      sync.RWMutex
	entries map[rosterKey]attendance.ShiftWindow
	weekly  map[string]map[time.Weekday]attendance.ShiftWindow
}

func NewRosterRepository() *RosterRepository {
	return &RosterRepository{
		entries: make(map[rosterKey]attendance.ShiftWindow),
		weekly:  make(map[string]map[time.Weekday]attendance.ShiftWindow),
	}
}

// SetShift assigns a shift for a single date, overriding the weekly pattern.
func (r *RosterRepository) SetShift(employeeID string, date time.Time, shift attendance.ShiftWindow) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[rosterKey{employeeID, date.Format("2006-01-02")}] = shift
}

// SetWeeklyShift assigns a shift on every given weekday.
func (r *RosterRepository) SetWeeklyShift(employeeID string, shift attendance.ShiftWindow, days ...time.Weekday) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.weekly[employeeID] == nil {
		r.weekly[employeeID] = make(map[time.Weekday]attendance.ShiftWindow)
	}
	for _, d := range days {
		r.weekly[employeeID][d] = shift
	}
}

// GetShift implements attendance.RosterRepository.
func (r *RosterRepository) GetShift(ctx context.Context, employeeID string, date time.Time) (attendance.ShiftWindow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if shift, ok := r.entries[rosterKey{employeeID, date.Format("2006-01-02")}]; ok {
		return shift, nil
	}
	if shift, ok := r.weekly[employeeID][date.Weekday()]; ok {
		return shift, nil
	}
	return attendance.ShiftWindow{}, attendance.ErrShiftNotFound
}
