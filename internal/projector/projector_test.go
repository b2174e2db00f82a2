package projector

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/mohammed-shakir/gdelt-event-gateway/internal/core/model"
	"github.com/mohammed-shakir/gdelt-event-gateway/internal/gdelt"
	"github.com/mohammed-shakir/gdelt-event-gateway/internal/store"
)

type fakeCursor struct {
	features []gdelt.Feature
	failAt   int // Next returns false with err once pos reaches failAt; -1 disables
	panicAt  int
	pos      int
	err      error
	closes   int
}

func newCursor(fs ...gdelt.Feature) *fakeCursor {
	return &fakeCursor{features: fs, failAt: -1, panicAt: -1, pos: -1}
}

func (c *fakeCursor) Next() bool {
	if c.pos+1 == c.failAt {
		c.err = errors.New("tablet server went away")
		return false
	}
	if c.pos+1 >= len(c.features) {
		return false
	}
	c.pos++
	return true
}

func (c *fakeCursor) Feature() gdelt.Feature {
	if c.pos == c.panicAt {
		panic("corrupt feature")
	}
	return c.features[c.pos]
}

func (c *fakeCursor) Err() error   { return c.err }
func (c *fakeCursor) Close() error { c.closes++; return nil }

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func full(id string) gdelt.Feature {
	return gdelt.Feature{
		ID:       id,
		Geometry: &gdelt.Point{Lat: 50.45, Lon: 30.52},
		Properties: map[string]any{
			gdelt.EventCode:     "143",
			gdelt.SQLDate:       "2014-02-02T00:00:00Z",
			gdelt.Actor1Name:    "PROTESTER",
			gdelt.Actor2Name:    "POLICE",
			gdelt.ActionGeoName: "Kiev, Kyyiv, Misto, Ukraine",
		},
	}
}

func request() model.FilterRequest {
	d := model.NewDate(2014, time.February, 2)
	return model.FilterRequest{
		Bounds:   &model.Bounds{Top: 52, Right: 40, Bottom: 44, Left: 22},
		DateFrom: &d,
		DateTo:   &d,
		EventIDs: []string{"14"},
	}
}

func TestProject_MapsAndEchoes(t *testing.T) {
	src := full("1")
	src.Properties[gdelt.SourceURL] = "http://example.com/story"
	cur := newCursor(src, full("2"))

	list, err := Project(context.Background(), discard(), cur, request(), Options{})
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if cur.closes != 1 {
		t.Fatalf("closes=%d want 1", cur.closes)
	}
	if len(list.Events) != 2 {
		t.Fatalf("events=%d", len(list.Events))
	}
	got := list.Events[0]
	if got.Lat != 50.45 || got.Lon != 30.52 || got.EventCode != "143" || got.GeoName != "Kiev, Kyyiv, Misto, Ukraine" {
		t.Fatalf("unexpected record %+v", got)
	}
	if got.SQLDate.String() != "02/02/2014" {
		t.Fatalf("sqlDate=%s", got.SQLDate)
	}
	if got.SourceURL == nil || *got.SourceURL != "http://example.com/story" {
		t.Fatalf("sourceURL=%v", got.SourceURL)
	}
	if list.Events[1].SourceURL != nil {
		t.Fatal("absent SOURCEURL must stay nil")
	}
	if len(list.EventIDs) != 1 || list.DateFrom.String() != "02/02/2014" || list.Bounds.Top != 52 {
		t.Fatalf("request not echoed: %+v", list)
	}
}

func TestProject_SkipsFeatureMissingActor1(t *testing.T) {
	broken := full("2")
	delete(broken.Properties, gdelt.Actor1Name)
	cur := newCursor(full("1"), broken, full("3"))

	list, err := Project(context.Background(), discard(), cur, request(), Options{})
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if len(list.Events) != 2 {
		t.Fatalf("want 2 events after skip, got %d", len(list.Events))
	}
	if cur.closes != 1 {
		t.Fatalf("closes=%d", cur.closes)
	}
}

func TestProject_CursorErrorDiscardsPartial(t *testing.T) {
	cur := newCursor(full("1"), full("2"), full("3"))
	cur.failAt = 1

	list, err := Project(context.Background(), discard(), cur, request(), Options{})
	if !errors.Is(err, store.ErrQueryExecution) {
		t.Fatalf("want ErrQueryExecution, got %v", err)
	}
	if list.Events != nil {
		t.Fatalf("partial list returned: %+v", list.Events)
	}
	if cur.closes != 1 {
		t.Fatalf("closes=%d", cur.closes)
	}
}

func TestProject_EarlyStopAtLimit(t *testing.T) {
	cur := newCursor(full("1"), full("2"), full("3"))
	list, err := Project(context.Background(), discard(), cur, request(), Options{MaxResults: 2})
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if len(list.Events) != 2 || !list.Truncated {
		t.Fatalf("events=%d truncated=%v", len(list.Events), list.Truncated)
	}
	if cur.closes != 1 {
		t.Fatalf("closes=%d", cur.closes)
	}

	exact := newCursor(full("1"), full("2"))
	list, err = Project(context.Background(), discard(), exact, request(), Options{MaxResults: 2})
	if err != nil || list.Truncated {
		t.Fatalf("a list that fits the limit is not truncated: %v %v", err, list.Truncated)
	}
}

type pagedCursor struct {
	*fakeCursor
}

// the backend page is every feature the fake holds
func (c pagedCursor) Limited() bool { return c.pos+1 >= len(c.features) }

var _ store.Limiter = pagedCursor{}

func TestProject_FullPageIsTruncated(t *testing.T) {
	broken := full("2")
	delete(broken.Properties, gdelt.Actor1Name)
	cur := pagedCursor{newCursor(full("1"), broken, full("3"))}

	list, err := Project(context.Background(), discard(), cur, request(), Options{MaxResults: 2})
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if len(list.Events) != 2 || !list.Truncated {
		t.Fatalf("a filled page may hide more matches: events=%d truncated=%v", len(list.Events), list.Truncated)
	}
}

func TestProject_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cur := newCursor(full("1"))
	if _, err := Project(ctx, discard(), cur, request(), Options{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if cur.closes != 1 {
		t.Fatalf("closes=%d", cur.closes)
	}
}

func TestProject_PanicStillCloses(t *testing.T) {
	cur := newCursor(full("1"), full("2"))
	cur.panicAt = 1
	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_, _ = Project(context.Background(), discard(), cur, request(), Options{})
	}()
	if cur.closes != 1 {
		t.Fatalf("closes=%d want 1", cur.closes)
	}
}

func TestProject_EmptyCursor(t *testing.T) {
	list, err := Project(context.Background(), discard(), newCursor(), request(), Options{})
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if list.Events == nil || len(list.Events) != 0 {
		t.Fatalf("want empty non-nil events, got %#v", list.Events)
	}
}

func TestRecord_PositionFallback(t *testing.T) {
	f := full("1")
	f.Geometry = nil
	f.Properties[gdelt.ActionGeoLat] = 48.0
	f.Properties[gdelt.ActionGeoLong] = 37.8
	rec, err := Record(f)
	if err != nil || rec.Lat != 48.0 || rec.Lon != 37.8 {
		t.Fatalf("rec=%+v err=%v", rec, err)
	}

	delete(f.Properties, gdelt.ActionGeoLat)
	if _, err := Record(f); !errors.Is(err, ErrFieldMissing) {
		t.Fatalf("want ErrFieldMissing, got %v", err)
	}
}

func TestFormat(t *testing.T) {
	f := full("1")
	line := FormatFeature(3, f)
	if !strings.HasPrefix(line, "3|EventCode=143|") || !strings.HasSuffix(line, "|geom=POINT (30.52 50.45)") {
		t.Fatalf("FormatFeature=%q", line)
	}
	rec, err := Record(f)
	if err != nil {
		t.Fatal(err)
	}
	want := "1|EventCode=143|SQLDATE=02/02/2014|Actor1Name=PROTESTER|Actor2Name=POLICE|" +
		"ActionGeo_FullName=Kiev, Kyyiv, Misto, Ukraine|geom=POINT (30.52 50.45)"
	if got := FormatRecord(1, rec); got != want {
		t.Fatalf("FormatRecord\n got %s\nwant %s", got, want)
	}
}
