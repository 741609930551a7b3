package timeutil

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ParseError reports a timestamp that could not be parsed.
type ParseError struct {
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid timestamp for %s: %q", e.Field, e.Value)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

var errUnknownLayout = errors.New("unrecognized timestamp layout")

// naiveLayouts carry no offset and are read as UTC.
var naiveLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
}

// offsetLayouts carry their own offset. The "-07" forms match the text
// output of postgres timestamptz columns.
var offsetLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05Z07",
	"2006-01-02 15:04:05.999999999Z07",
}

// Normalizer converts stored timestamps into instants and projects them
// into the organization's business timezone.
type Normalizer struct {
	loc *time.Location
}

func NewNormalizer(loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	return &Normalizer{loc: loc}
}

// NewNormalizerFromName loads the IANA zone name, e.g. "Asia/Jakarta".
func NewNormalizerFromName(name string) (*Normalizer, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load business timezone %q: %w", name, err)
	}
	return NewNormalizer(loc), nil
}

func (n *Normalizer) Location() *time.Location {
	return n.loc
}

// Parse returns the UTC instant denoted by raw. Naive values are UTC.
func (n *Normalizer) Parse(field, raw string) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, &ParseError{Field: field, Value: raw, Err: errUnknownLayout}
	}

	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t, nil
		}
	}

	return time.Time{}, &ParseError{Field: field, Value: raw, Err: errUnknownLayout}
}

// ParseOptional parses raw when present. A nil or blank value yields nil.
func (n *Normalizer) ParseOptional(field string, raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	t, err := n.Parse(field, *raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Local projects an instant into the business timezone.
func (n *Normalizer) Local(t time.Time) time.Time {
	return t.In(n.loc)
}

// ParseLocal is Parse followed by Local.
func (n *Normalizer) ParseLocal(field, raw string) (time.Time, error) {
	t, err := n.Parse(field, raw)
	if err != nil {
		return time.Time{}, err
	}
	return n.Local(t), nil
}

// Today returns the current business-local calendar date at midnight.
func (n *Normalizer) Today(now time.Time) time.Time {
	return DateOf(n.Local(now))
}

// DateOf truncates t to midnight in t's own location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ParseDate parses a "YYYY-MM-DD" calendar date in loc.
func ParseDate(field, raw string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(raw), loc)
	if err != nil {
		return time.Time{}, &ParseError{Field: field, Value: raw, Err: err}
	}
	return t, nil
}
