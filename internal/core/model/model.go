// Package model defines core domain types shared across the service.
package model

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// DateLayout is the canonical wire format for every date the API emits.
const DateLayout = "01/02/2006"

// accepted on input, normalized to DateLayout on output
var inputDateLayouts = []string{
	DateLayout,
	"2006-01-02",
	time.RFC3339,
}

// Date is a UTC calendar day.
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its UTC calendar day.
func DateOf(t time.Time) Date {
	u := t.UTC()
	return NewDate(u.Year(), u.Month(), u.Day())
}

func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range inputDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), nil
		}
	}
	return Date{}, fmt.Errorf("date %q: expected MM/dd/yyyy or yyyy-MM-dd", s)
}

func (d Date) String() string {
	return d.UTC().Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Bounds is an axis-aligned box in EPSG:4326 degrees.
type Bounds struct {
	Top    float64 `json:"top" validate:"gte=-90,lte=90,gtefield=Bottom"`
	Right  float64 `json:"right" validate:"gte=-180,lte=180,gtefield=Left"`
	Bottom float64 `json:"bottom" validate:"gte=-90,lte=90"`
	Left   float64 `json:"left" validate:"gte=-180,lte=180"`
}

func (b Bounds) Contains(lat, lon float64) bool {
	return lat >= b.Bottom && lat <= b.Top && lon >= b.Left && lon <= b.Right
}

// FilterRequest is the inbound search document. Handlers treat it as read-only.
type FilterRequest struct {
	Bounds   *Bounds  `json:"bounds" validate:"required"`
	DateFrom *Date    `json:"dateFrom" validate:"required"`
	DateTo   *Date    `json:"dateTo" validate:"required"`
	HourFrom *int     `json:"hourFrom,omitempty" validate:"omitempty,gte=0,lte=23"`
	HourTo   *int     `json:"hourTo,omitempty" validate:"omitempty,gte=0,lte=23"`
	EventIDs []string `json:"eventIDs" validate:"max=256,dive,max=16"`
	Keywords []string `json:"keywords" validate:"max=64,dive,max=128"`
}

// EventRecord is one projected GDELT event.
type EventRecord struct {
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	EventCode  string  `json:"eventCode"`
	SQLDate    Date    `json:"sqlDate"`
	Actor1Name string  `json:"actor1Name"`
	Actor2Name string  `json:"actor2Name"`
	GeoName    string  `json:"geoName"`
	SourceURL  *string `json:"sourceURL,omitempty"`
}

// EventList echoes the request and carries the matching events.
type EventList struct {
	Bounds    *Bounds       `json:"bounds"`
	DateFrom  *Date         `json:"dateFrom"`
	DateTo    *Date         `json:"dateTo"`
	HourFrom  *int          `json:"hourFrom,omitempty"`
	HourTo    *int          `json:"hourTo,omitempty"`
	EventIDs  []string      `json:"eventIDs"`
	Keywords  []string      `json:"keywords"`
	Events    []EventRecord `json:"events"`
	Truncated bool          `json:"truncated,omitempty"`
}

// NewEventList copies the echo fields of req into an empty list.
func NewEventList(req FilterRequest) EventList {
	return EventList{
		Bounds:   req.Bounds,
		DateFrom: req.DateFrom,
		DateTo:   req.DateTo,
		HourFrom: req.HourFrom,
		HourTo:   req.HourTo,
		EventIDs: nonNil(req.EventIDs),
		Keywords: nonNil(req.Keywords),
		Events:   []EventRecord{},
	}
}

// nonNil copies s, so an absent or empty list encodes as [].
func nonNil(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}
