package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/cmlabs-hris/hris-workflow-go/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-workflow-go/internal/pkg/timeutil"
	"golang.org/x/sync/errgroup"
)

// classifyConcurrency bounds the roster lookups in flight per summary call.
const classifyConcurrency = 8

type AttendanceServiceImpl struct {
	attendance.AttendanceRepository
	resolver   *ShiftResolver
	classifier *Classifier
	normalizer *timeutil.Normalizer
	now        func() time.Time
}

func NewAttendanceService(
	attendanceRepo attendance.AttendanceRepository,
	resolver *ShiftResolver,
	normalizer *timeutil.Normalizer,
) *AttendanceServiceImpl {
	return &AttendanceServiceImpl{
		AttendanceRepository: attendanceRepo,
		resolver:             resolver,
		classifier:           NewClassifier(normalizer.Location()),
		normalizer:           normalizer,
		now:                  time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (a *AttendanceServiceImpl) WithClock(now func() time.Time) *AttendanceServiceImpl {
	a.now = now
	return a
}

// ClockIn implements attendance.AttendanceService.
func (a *AttendanceServiceImpl) ClockIn(ctx context.Context, req attendance.ClockRequest) (attendance.AttendanceResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.AttendanceResponse{}, err
	}

	_, err := a.AttendanceRepository.GetOpenSession(ctx, req.EmployeeID)
	if err == nil {
		return attendance.AttendanceResponse{}, attendance.ErrOpenSessionExists
	}
	if !errors.Is(err, attendance.ErrNotCheckedIn) {
		return attendance.AttendanceResponse{}, fmt.Errorf("failed to check open session: %w", err)
	}

	nowUTC := a.now().UTC()
	record := attendance.AttendanceRecord{
		EmployeeID: req.EmployeeID,
		Date:       a.normalizer.Today(nowUTC),
		CheckIn:    &nowUTC,
	}

	created, err := a.AttendanceRepository.Create(ctx, record)
	if err != nil {
		if errors.Is(err, attendance.ErrOpenSessionExists) {
			return attendance.AttendanceResponse{}, err
		}
		return attendance.AttendanceResponse{}, fmt.Errorf("failed to create attendance record: %w", err)
	}

	slog.Info("Employee clocked in", "employee_id", created.EmployeeID, "attendance_id", created.ID)
	return a.mapRecordToResponse(created), nil
}

// ClockOut implements attendance.AttendanceService.
func (a *AttendanceServiceImpl) ClockOut(ctx context.Context, req attendance.ClockRequest) (attendance.AttendanceResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.AttendanceResponse{}, err
	}

	open, err := a.AttendanceRepository.GetOpenSession(ctx, req.EmployeeID)
	if err != nil {
		if errors.Is(err, attendance.ErrNotCheckedIn) {
			return attendance.AttendanceResponse{}, err
		}
		return attendance.AttendanceResponse{}, fmt.Errorf("failed to get open session: %w", err)
	}

	closed, err := a.AttendanceRepository.SetCheckOut(ctx, open.ID, a.now().UTC())
	if err != nil {
		if errors.Is(err, attendance.ErrAlreadyCheckedOut) {
			return attendance.AttendanceResponse{}, err
		}
		return attendance.AttendanceResponse{}, fmt.Errorf("failed to update attendance record: %w", err)
	}

	slog.Info("Employee clocked out", "employee_id", closed.EmployeeID, "attendance_id", closed.ID)
	return a.mapRecordToResponse(closed), nil
}

// GetAttendanceSummary implements attendance.AttendanceService.
func (a *AttendanceServiceImpl) GetAttendanceSummary(ctx context.Context, filter attendance.AttendanceRangeFilter) (attendance.AttendanceSummaryResponse, error) {
	if err := filter.Validate(); err != nil {
		return attendance.AttendanceSummaryResponse{}, err
	}

	loc := a.normalizer.Location()
	from, err := timeutil.ParseDate("start_date", filter.StartDate, loc)
	if err != nil {
		return attendance.AttendanceSummaryResponse{}, err
	}
	to, err := timeutil.ParseDate("end_date", filter.EndDate, loc)
	if err != nil {
		return attendance.AttendanceSummaryResponse{}, err
	}
	rng := attendance.DateRange{Start: from, End: to}

	rows, err := a.AttendanceRepository.ListByEmployee(ctx, filter.EmployeeID, from, to)
	if err != nil {
		return attendance.AttendanceSummaryResponse{}, fmt.Errorf("failed to list attendance: %w", err)
	}

	items, err := a.Classify(ctx, filter.EmployeeID, rows)
	if err != nil {
		return attendance.AttendanceSummaryResponse{}, err
	}

	agg := Aggregate(items, rng)

	records := make([]attendance.ClassifiedAttendanceResponse, 0, len(items))
	for _, item := range items {
		records = append(records, a.mapClassifiedToResponse(item))
	}

	return attendance.AttendanceSummaryResponse{
		EmployeeID: filter.EmployeeID,
		Records:    records,
		Aggregate:  mapAggregateToResponse(agg),
	}, nil
}

// Classify normalizes raw feed rows, groups them by business date and
// classifies each day against its freshly resolved shift. Days are
// returned in date order.
func (a *AttendanceServiceImpl) Classify(ctx context.Context, employeeID string, rows []attendance.RawAttendance) ([]attendance.ClassifiedAttendance, error) {
	groups := make(map[string][]attendance.AttendanceRecord)
	var keys []string

	for _, row := range rows {
		record, err := a.normalize(row)
		if err != nil {
			return nil, err
		}
		key := record.Date.Format("2006-01-02")
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], record)
	}
	sort.Strings(keys)

	results := make([]attendance.ClassifiedAttendance, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(classifyConcurrency)

	for i, key := range keys {
		day := groups[key]
		g.Go(func() error {
			shift, err := a.resolver.Resolve(gctx, employeeID, day[0].Date)
			if err != nil {
				return err
			}
			results[i] = a.classifier.ClassifyDay(day, shift)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to classify attendance: %w", err)
	}
	return results, nil
}

func (a *AttendanceServiceImpl) normalize(row attendance.RawAttendance) (attendance.AttendanceRecord, error) {
	checkIn, err := a.normalizer.ParseOptional("check_in", row.CheckIn)
	if err != nil {
		return attendance.AttendanceRecord{}, err
	}
	checkOut, err := a.normalizer.ParseOptional("check_out", row.CheckOut)
	if err != nil {
		return attendance.AttendanceRecord{}, err
	}

	record := attendance.AttendanceRecord{
		ID:          row.ID,
		EmployeeID:  row.EmployeeID,
		CheckIn:     checkIn,
		CheckOut:    checkOut,
		WorkedHours: row.WorkedHours,
	}

	switch {
	case row.Date != "":
		date, err := timeutil.ParseDate("date", row.Date, a.normalizer.Location())
		if err != nil {
			return attendance.AttendanceRecord{}, err
		}
		record.Date = date
	case checkIn != nil:
		record.Date = timeutil.DateOf(a.normalizer.Local(*checkIn))
	case checkOut != nil:
		record.Date = timeutil.DateOf(a.normalizer.Local(*checkOut))
	default:
		return attendance.AttendanceRecord{}, &timeutil.ParseError{Field: "date", Value: row.Date}
	}

	return record, nil
}

func (a *AttendanceServiceImpl) mapRecordToResponse(r attendance.AttendanceRecord) attendance.AttendanceResponse {
	loc := a.normalizer.Location()
	return attendance.AttendanceResponse{
		ID:          r.ID,
		EmployeeID:  r.EmployeeID,
		Date:        r.Date.Format("2006-01-02"),
		CheckIn:     attendance.FormatTimestamp(r.CheckIn, loc),
		CheckOut:    attendance.FormatTimestamp(r.CheckOut, loc),
		WorkedHours: r.WorkedHours,
	}
}

func (a *AttendanceServiceImpl) mapClassifiedToResponse(c attendance.ClassifiedAttendance) attendance.ClassifiedAttendanceResponse {
	loc := a.normalizer.Location()

	shift := attendance.ShiftResponse{
		Start:                c.Shift.Start.String(),
		End:                  c.Shift.End.String(),
		GraceLateInMinutes:   c.Shift.GraceLateInMinutes,
		GraceEarlyOutMinutes: c.Shift.GraceEarlyOutMinutes,
		Resolved:             c.Shift.Resolved,
	}
	if c.Shift.MealWindow != nil {
		out, in := c.Shift.MealWindow.Out.String(), c.Shift.MealWindow.In.String()
		shift.MealOut = &out
		shift.MealIn = &in
	}

	var breaks []attendance.BreakResponse
	for _, b := range c.Breaks {
		breaks = append(breaks, attendance.BreakResponse{
			OutAt:             attendance.FormatTimestamp(b.OutAt, loc),
			InAt:              attendance.FormatTimestamp(b.InAt, loc),
			EarlyOutMinutes:   b.EarlyOutMinutes,
			LateReturnMinutes: b.LateReturnMinutes,
			Status:            string(b.Status),
		})
	}

	return attendance.ClassifiedAttendanceResponse{
		RecordID:      c.RecordID,
		EmployeeID:    c.EmployeeID,
		Date:          c.Date.Format("2006-01-02"),
		CheckIn:       attendance.FormatTimestamp(c.CheckIn, loc),
		CheckOut:      attendance.FormatTimestamp(c.CheckOut, loc),
		LateMinutes:   c.LateMinutes,
		EarlyMinutes:  c.EarlyMinutes,
		OvertimeHours: c.OvertimeHours,
		WorkedHours:   c.WorkedHours,
		Status:        string(c.Status),
		Breaks:        breaks,
		Shift:         shift,
	}
}

func mapAggregateToResponse(agg attendance.WindowAggregate) attendance.WindowAggregateResponse {
	return attendance.WindowAggregateResponse{
		TotalRecords:     agg.TotalRecords,
		CompleteRecords:  agg.CompleteRecords,
		TotalHours:       agg.TotalHours,
		RatePercent:      agg.RatePercent,
		ExpectedHours:    agg.ExpectedHours,
		HoursRatePercent: agg.HoursRatePercent,
		DateRange: attendance.DateRangeResponse{
			StartDate: agg.DateRange.Start.Format("2006-01-02"),
			EndDate:   agg.DateRange.End.Format("2006-01-02"),
		},
	}
}
