package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/hris-workflow-go/internal/domain/attendance"
)

// DefaultShiftWindow is used when the roster has no entry: 07:00-19:00
// with zero grace.
func DefaultShiftWindow() attendance.ShiftWindow {
	return attendance.ShiftWindow{
		Start: attendance.NewTimeOfDay(7, 0),
		End:   attendance.NewTimeOfDay(19, 0),
	}
}

// ShiftResolver looks up the expected shift for an employee on a date.
// Results are never cached; every call hits the roster.
type ShiftResolver struct {
	roster       attendance.RosterRepository
	defaultShift attendance.ShiftWindow
}

func NewShiftResolver(roster attendance.RosterRepository, defaultShift attendance.ShiftWindow) *ShiftResolver {
	return &ShiftResolver{
		roster:       roster,
		defaultShift: defaultShift,
	}
}

// Resolve returns the rostered shift, or the default window marked
// unresolved when the roster has no entry for the date.
func (r *ShiftResolver) Resolve(ctx context.Context, employeeID string, date time.Time) (attendance.ResolvedShift, error) {
	if r.roster == nil {
		return attendance.ResolvedShift{ShiftWindow: r.defaultShift, Date: date}, nil
	}

	shift, err := r.roster.GetShift(ctx, employeeID, date)
	if err != nil {
		if errors.Is(err, attendance.ErrShiftNotFound) {
			return attendance.ResolvedShift{ShiftWindow: r.defaultShift, Date: date}, nil
		}
		return attendance.ResolvedShift{}, fmt.Errorf("failed to get shift for employee %s on %s: %w", employeeID, date.Format("2006-01-02"), err)
	}

	return attendance.ResolvedShift{ShiftWindow: shift, Date: date, Resolved: true}, nil
}
