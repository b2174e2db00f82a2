// Package projector streams store cursors into EventLists.
package projector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/gdelt-event-gateway/internal/core/model"
	"github.com/mohammed-shakir/gdelt-event-gateway/internal/core/observability"
	"github.com/mohammed-shakir/gdelt-event-gateway/internal/gdelt"
	"github.com/mohammed-shakir/gdelt-event-gateway/internal/store"
)

// ErrFieldMissing marks a feature lacking a required attribute. It is
// never returned by Project; such features are skipped.
var ErrFieldMissing = errors.New("required field missing")

type Options struct {
	// MaxResults caps the list; zero means unlimited.
	MaxResults int
	// Dump logs every feature at debug level.
	Dump bool
}

// Project drains cur into an EventList echoing req. The cursor is closed
// exactly once whatever the outcome. A cursor failure discards the partial
// list.
func Project(ctx context.Context, logger *slog.Logger, cur store.Cursor, req model.FilterRequest, opts Options) (model.EventList, error) {
	defer func() {
		if err := cur.Close(); err != nil {
			logger.WarnContext(ctx, "close cursor", "err", err)
		}
	}()

	dump := opts.Dump && logger.Enabled(ctx, slog.LevelDebug)
	list := model.NewEventList(req)
	seen, skipped := 0, 0
	for cur.Next() {
		if err := ctx.Err(); err != nil {
			return model.EventList{}, fmt.Errorf("project: %w", err)
		}
		f := cur.Feature()
		seen++
		if dump {
			logger.DebugContext(ctx, "feature", "dump", FormatFeature(seen, f))
		}
		rec, err := Record(f)
		if err != nil {
			skipped++
			observability.IncProjected("skipped")
			logger.WarnContext(ctx, "skipping feature", "feature_id", f.ID, "err", err)
			continue
		}
		if opts.MaxResults > 0 && len(list.Events) >= opts.MaxResults {
			list.Truncated = true
			break
		}
		list.Events = append(list.Events, rec)
		observability.IncProjected("emitted")
	}
	if err := cur.Err(); err != nil {
		if !errors.Is(err, store.ErrQueryExecution) {
			err = fmt.Errorf("%w: %w", store.ErrQueryExecution, err)
		}
		return model.EventList{}, fmt.Errorf("project: %w", err)
	}
	if l, ok := cur.(store.Limiter); ok && l.Limited() {
		list.Truncated = true
	}

	logger.DebugContext(ctx, "projection done",
		"seen", seen, "emitted", len(list.Events), "skipped", skipped, "truncated", list.Truncated)
	return list, nil
}

// Record maps one feature through gdelt.Projection.
func Record(f gdelt.Feature) (model.EventRecord, error) {
	lat, lon, ok := f.Position()
	if !ok {
		return model.EventRecord{}, fmt.Errorf("%w: %s", ErrFieldMissing, gdelt.Geom)
	}
	rec := model.EventRecord{Lat: lat, Lon: lon}
	for _, field := range gdelt.Projection {
		if field.Name == gdelt.SQLDate {
			t, ok := f.Time(field.Name)
			if !ok {
				return model.EventRecord{}, fmt.Errorf("%w: %s", ErrFieldMissing, field.Name)
			}
			rec.SQLDate = model.DateOf(t)
			continue
		}
		v, ok := f.String(field.Name)
		if !ok {
			if field.Optional {
				continue
			}
			return model.EventRecord{}, fmt.Errorf("%w: %s", ErrFieldMissing, field.Name)
		}
		switch field.Name {
		case gdelt.EventCode:
			rec.EventCode = v
		case gdelt.Actor1Name:
			rec.Actor1Name = v
		case gdelt.Actor2Name:
			rec.Actor2Name = v
		case gdelt.ActionGeoName:
			rec.GeoName = v
		case gdelt.SourceURL:
			rec.SourceURL = &v
		}
	}
	return rec, nil
}

// FormatFeature renders "n|Attr=value|..." over the projected attributes,
// skipping absent ones.
func FormatFeature(n int, f gdelt.Feature) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(n))
	for _, field := range gdelt.Projection {
		if v, ok := f.String(field.Name); ok {
			b.WriteString("|" + field.Name + "=" + v)
		}
	}
	if lat, lon, ok := f.Position(); ok {
		b.WriteString("|" + gdelt.Geom + "=POINT (" + num(lon) + " " + num(lat) + ")")
	}
	return b.String()
}

// FormatRecord is FormatFeature for an already projected record.
func FormatRecord(n int, r model.EventRecord) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(n))
	b.WriteString("|" + gdelt.EventCode + "=" + r.EventCode)
	b.WriteString("|" + gdelt.SQLDate + "=" + r.SQLDate.String())
	b.WriteString("|" + gdelt.Actor1Name + "=" + r.Actor1Name)
	b.WriteString("|" + gdelt.Actor2Name + "=" + r.Actor2Name)
	b.WriteString("|" + gdelt.ActionGeoName + "=" + r.GeoName)
	if r.SourceURL != nil {
		b.WriteString("|" + gdelt.SourceURL + "=" + *r.SourceURL)
	}
	b.WriteString("|" + gdelt.Geom + "=POINT (" + num(r.Lon) + " " + num(r.Lat) + ")")
	return b.String()
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
