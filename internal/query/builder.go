package query

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/mohammed-shakir/gdelt-event-gateway/internal/core/model"
	"github.com/mohammed-shakir/gdelt-event-gateway/internal/gdelt"
)

var (
	ErrInvalidRange = errors.New("invalid range")
	ErrIncomplete   = errors.New("incomplete filter request")
)

const (
	defaultHourFrom = 0
	defaultHourTo   = 23
)

// Build turns req into AND(time, bbox, [event codes], [keywords]).
// Empty event-code and keyword lists add no clause.
func Build(req model.FilterRequest) (Predicate, error) {
	if req.Bounds == nil || req.DateFrom == nil || req.DateTo == nil {
		return nil, fmt.Errorf("%w: bounds, dateFrom and dateTo are required", ErrIncomplete)
	}
	from, to, err := TimeRange(req)
	if err != nil {
		return nil, err
	}

	clauses := And{
		Between{Property: gdelt.SQLDate, From: from, To: to},
		BBox{
			Property: gdelt.Geom,
			Left:     req.Bounds.Left,
			Bottom:   req.Bounds.Bottom,
			Right:    req.Bounds.Right,
			Top:      req.Bounds.Top,
			SRID:     gdelt.DefaultSRID,
		},
	}

	if codes := Normalize(req.EventIDs); len(codes) > 0 {
		or := make(Or, 0, len(codes))
		for _, c := range codes {
			or = append(or, Like{Property: gdelt.EventCode, Value: c, Mode: StartsWith})
		}
		clauses = append(clauses, or)
	}

	if words := Normalize(req.Keywords); len(words) > 0 {
		or := make(Or, 0, len(words))
		for _, w := range words {
			or = append(or, Or{
				Like{Property: gdelt.Actor1Name, Value: w, Mode: Contains},
				Like{Property: gdelt.Actor2Name, Value: w, Mode: Contains},
			})
		}
		clauses = append(clauses, or)
	}
	return clauses, nil
}

// TimeRange resolves the inclusive [from, to] instants of req.
func TimeRange(req model.FilterRequest) (time.Time, time.Time, error) {
	hFrom, hTo := defaultHourFrom, defaultHourTo
	if req.HourFrom != nil {
		hFrom = *req.HourFrom
	}
	if req.HourTo != nil {
		hTo = *req.HourTo
	}
	if hFrom < 0 || hFrom > 23 || hTo < 0 || hTo > 23 {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: hours must be within 0..23", ErrInvalidRange)
	}
	from := req.DateFrom.Add(time.Duration(hFrom) * time.Hour)
	to := req.DateTo.Add(time.Duration(hTo)*time.Hour + 59*time.Minute + 59*time.Second)
	if from.After(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: from %s is after to %s", ErrInvalidRange,
			from.Format(time.RFC3339), to.Format(time.RFC3339))
	}
	return from, to, nil
}

// Normalize trims, drops blanks and duplicates, keeping first-seen order.
func Normalize(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || slices.Contains(out, s) {
			continue
		}
		out = append(out, s)
	}
	return out
}
