package attendance

import (
	"math"
	"sort"
	"time"

	"github.com/cmlabs-hris/hris-workflow-go/internal/domain/attendance"
)

// Classifier turns normalized clock stamps into late/early/overtime/worked
// metrics. It holds no mutable state and is safe for concurrent use.
type Classifier struct {
	loc *time.Location
}

func NewClassifier(loc *time.Location) *Classifier {
	if loc == nil {
		loc = time.UTC
	}
	return &Classifier{loc: loc}
}

// Classify classifies a single record.
func (c *Classifier) Classify(record attendance.AttendanceRecord, shift attendance.ResolvedShift) attendance.ClassifiedAttendance {
	return c.ClassifyDay([]attendance.AttendanceRecord{record}, shift)
}

// ClassifyDay classifies all punch pairs of one employee on one date. The
// earliest check-in and the latest check-out across the pairs bound the
// shift; the gaps between consecutive pairs are classified as breaks
// against the meal window. Rows carrying neither stamp are ignored.
func (c *Classifier) ClassifyDay(records []attendance.AttendanceRecord, shift attendance.ResolvedShift) attendance.ClassifiedAttendance {
	if len(records) == 0 {
		return attendance.ClassifiedAttendance{Status: attendance.StatusMissing, Shift: shift}
	}

	pairs := make([]attendance.AttendanceRecord, 0, len(records))
	for _, r := range records {
		if r.CheckIn != nil || r.CheckOut != nil {
			pairs = append(pairs, r)
		}
	}
	if len(pairs) == 0 {
		return c.unstamped(records, shift)
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		return firstStamp(pairs[i]).Before(firstStamp(pairs[j]))
	})

	first := pairs[0]
	day := c.businessDay(first)
	shiftStart, shiftEnd := shift.Bounds(day)

	result := attendance.ClassifiedAttendance{
		RecordID:   first.ID,
		EmployeeID: first.EmployeeID,
		Date:       day,
		CheckIn:    earliestCheckIn(pairs),
		CheckOut:   latestCheckOut(pairs),
		Shift:      shift,
	}
	result.Shift.Date = day

	for _, p := range pairs {
		result.WorkedHours += workedHours(p)
	}
	result.WorkedHours = round2(result.WorkedHours)

	if result.CheckIn != nil {
		result.LateMinutes = positiveMinutes(shiftStart, result.CheckIn.In(c.loc))
	}
	if result.CheckOut != nil {
		result.EarlyMinutes = positiveMinutes(result.CheckOut.In(c.loc), shiftEnd)
	}

	switch {
	case result.CheckIn == nil || result.CheckOut == nil:
		result.Status = attendance.StatusMissing
	case result.CheckOut.Before(*result.CheckIn):
		result.Status = attendance.StatusAnomalous
		result.WorkedHours = 0
	default:
		result.OvertimeHours = round2(float64(positiveMinutes(shiftEnd, result.CheckOut.In(c.loc))) / 60)
		switch {
		case result.LateMinutes > shift.GraceLateInMinutes:
			result.Status = attendance.StatusLate
		case result.EarlyMinutes > shift.GraceEarlyOutMinutes:
			result.Status = attendance.StatusEarlyOut
		default:
			result.Status = attendance.StatusOnTime
		}
	}

	for i := 0; i+1 < len(pairs); i++ {
		result.Breaks = append(result.Breaks, c.classifyBreak(pairs[i].CheckOut, pairs[i+1].CheckIn, shift, day))
	}

	return result
}

func (c *Classifier) classifyBreak(out, in *time.Time, shift attendance.ResolvedShift, day time.Time) attendance.BreakClassification {
	b := attendance.BreakClassification{OutAt: out, InAt: in}

	switch {
	case out == nil || in == nil:
		b.Status = attendance.StatusMissing
		return b
	case in.Before(*out):
		b.Status = attendance.StatusAnomalous
		return b
	case shift.MealWindow == nil:
		b.Status = attendance.StatusOnTime
		return b
	}

	mealOut := anchorWithinShift(shift.MealWindow.Out, shift.ShiftWindow, day)
	mealIn := anchorWithinShift(shift.MealWindow.In, shift.ShiftWindow, day)

	b.EarlyOutMinutes = positiveMinutes(out.In(c.loc), mealOut)
	b.LateReturnMinutes = positiveMinutes(mealIn, in.In(c.loc))

	switch {
	case b.LateReturnMinutes > shift.GraceLateInMinutes:
		b.Status = attendance.StatusLate
	case b.EarlyOutMinutes > shift.GraceEarlyOutMinutes:
		b.Status = attendance.StatusEarlyOut
	default:
		b.Status = attendance.StatusOnTime
	}
	return b
}

// unstamped classifies a day whose rows carry no clock stamps at all.
func (c *Classifier) unstamped(records []attendance.AttendanceRecord, shift attendance.ResolvedShift) attendance.ClassifiedAttendance {
	first := records[0]
	result := attendance.ClassifiedAttendance{
		RecordID:   first.ID,
		EmployeeID: first.EmployeeID,
		Status:     attendance.StatusMissing,
		Shift:      shift,
	}
	if !first.Date.IsZero() {
		result.Date = c.businessDay(first)
		result.Shift.Date = result.Date
	}
	for _, r := range records {
		result.WorkedHours += workedHours(r)
	}
	result.WorkedHours = round2(result.WorkedHours)
	return result
}

// businessDay is the record's calendar date at midnight in the business
// timezone, falling back to the local date of whichever stamp exists.
func (c *Classifier) businessDay(r attendance.AttendanceRecord) time.Time {
	if !r.Date.IsZero() {
		y, m, d := r.Date.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, c.loc)
	}
	y, m, d := firstStamp(r).In(c.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.loc)
}

// Aggregate summarizes classifications over rng. The rate is the share of
// complete records; an empty window has rate 0.
func Aggregate(items []attendance.ClassifiedAttendance, rng attendance.DateRange) attendance.WindowAggregate {
	agg := attendance.WindowAggregate{
		TotalRecords: len(items),
		DateRange:    rng,
	}

	for _, item := range items {
		if item.IsComplete() {
			agg.CompleteRecords++
		}
		agg.TotalHours += item.WorkedHours
		agg.ExpectedHours += item.Shift.ExpectedHours()
	}

	agg.TotalHours = round2(agg.TotalHours)
	agg.ExpectedHours = round2(agg.ExpectedHours)

	if agg.TotalRecords > 0 {
		agg.RatePercent = round2(float64(agg.CompleteRecords) / float64(agg.TotalRecords) * 100)
	}
	if agg.ExpectedHours > 0 {
		agg.HoursRatePercent = round2(agg.TotalHours / agg.ExpectedHours * 100)
	}

	return agg
}

func workedHours(r attendance.AttendanceRecord) float64 {
	if r.WorkedHours != nil {
		return math.Max(0, *r.WorkedHours)
	}
	if r.CheckIn == nil || r.CheckOut == nil {
		return 0
	}
	return math.Max(0, r.CheckOut.Sub(*r.CheckIn).Hours())
}

// positiveMinutes returns the whole minutes from a to b, or 0 when b is not after a.
func positiveMinutes(a, b time.Time) int {
	diff := b.Sub(a).Minutes()
	if diff <= 0 {
		return 0
	}
	return int(math.Floor(diff))
}

// anchorWithinShift places a time of day on day, moving it to the next day
// when the shift crosses midnight and t falls before the shift start.
func anchorWithinShift(t attendance.TimeOfDay, shift attendance.ShiftWindow, day time.Time) time.Time {
	at := t.On(day)
	overnight := shift.End.Minutes() <= shift.Start.Minutes()
	if overnight && t.Minutes() < shift.Start.Minutes() {
		at = at.AddDate(0, 0, 1)
	}
	return at
}

func earliestCheckIn(pairs []attendance.AttendanceRecord) *time.Time {
	var earliest *time.Time
	for _, p := range pairs {
		if p.CheckIn != nil && (earliest == nil || p.CheckIn.Before(*earliest)) {
			earliest = p.CheckIn
		}
	}
	return earliest
}

func latestCheckOut(pairs []attendance.AttendanceRecord) *time.Time {
	var latest *time.Time
	for _, p := range pairs {
		if p.CheckOut != nil && (latest == nil || p.CheckOut.After(*latest)) {
			latest = p.CheckOut
		}
	}
	return latest
}

func firstStamp(r attendance.AttendanceRecord) time.Time {
	switch {
	case r.CheckIn != nil:
		return *r.CheckIn
	case r.CheckOut != nil:
		return *r.CheckOut
	default:
		return time.Time{}
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
