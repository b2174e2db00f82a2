package router

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/mohammed-shakir/gdelt-event-gateway/internal/core/model"
	"github.com/mohammed-shakir/gdelt-event-gateway/internal/query"
	"github.com/mohammed-shakir/gdelt-event-gateway/internal/store"
)

const validBody = `{
  "bounds": {"top": 52.0, "right": 40.0, "bottom": 44.0, "left": 22.0},
  "dateFrom": "02/01/2014",
  "dateTo": "02/02/2014",
  "eventIDs": ["14"],
  "keywords": ["POLICE"],
  "clientVersion": "3.1"
}`

type fakeSearcher struct {
	got  model.FilterRequest
	list model.EventList
	err  error
}

func (f *fakeSearcher) Search(_ context.Context, req model.FilterRequest) (model.EventList, error) {
	f.got = req
	if f.err != nil {
		return model.EventList{}, f.err
	}
	return f.list, nil
}

func serve(t *testing.T, s Searcher, body string, maxBody int64) *httptest.ResponseRecorder {
	t.Helper()
	h := HandleSearch(slog.New(slog.NewTextHandler(io.Discard, nil)), maxBody, s)
	req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func TestHandleSearch_OK(t *testing.T) {
	src := "http://example.org/a"
	fs := &fakeSearcher{}
	fs.list = model.EventList{Events: []model.EventRecord{{
		Lat: 50.4, Lon: 30.5, EventCode: "143", SQLDate: model.NewDate(2014, 2, 2),
		Actor1Name: "PROTESTER", Actor2Name: "POLICE", GeoName: "Kyiv", SourceURL: &src,
	}}}

	rr := serve(t, fs, validBody, 0)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type=%q", ct)
	}
	if fs.got.Bounds == nil || fs.got.Bounds.Top != 52 || fs.got.DateFrom.String() != "02/01/2014" {
		t.Fatalf("decoded request %+v", fs.got)
	}

	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	evs, _ := out["events"].([]any)
	if len(evs) != 1 {
		t.Fatalf("events=%v", out["events"])
	}
	ev, _ := evs[0].(map[string]any)
	if ev["sqlDate"] != "02/02/2014" || ev["sourceURL"] != src {
		t.Fatalf("unexpected event %v", ev)
	}
}

type echoSearcher struct{}

func (echoSearcher) Search(_ context.Context, req model.FilterRequest) (model.EventList, error) {
	return model.NewEventList(req), nil
}

func TestHandleSearch_EmptyListsEchoAsArrays(t *testing.T) {
	empty := strings.NewReplacer(`["14"]`, `[]`, `["POLICE"]`, `[]`).Replace(validBody)
	omitted := `{"bounds": {"top": 52, "right": 40, "bottom": 44, "left": 22},
		"dateFrom": "02/01/2014", "dateTo": "02/02/2014"}`
	for name, body := range map[string]string{"empty": empty, "omitted": omitted} {
		t.Run(name, func(t *testing.T) {
			rr := serve(t, echoSearcher{}, body, 0)
			if rr.Code != http.StatusOK {
				t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
			}
			for _, field := range []string{`"eventIDs":[]`, `"keywords":[]`, `"events":[]`} {
				if !strings.Contains(rr.Body.String(), field) {
					t.Fatalf("response %s lacks %s", rr.Body.String(), field)
				}
			}
		})
	}
}

func TestHandleSearch_AcceptsISODates(t *testing.T) {
	fs := &fakeSearcher{}
	body := strings.NewReplacer("02/01/2014", "2014-02-01", "02/02/2014", "2014-02-02T00:00:00Z").Replace(validBody)
	if rr := serve(t, fs, body, 0); rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if fs.got.DateTo.String() != "02/02/2014" {
		t.Fatalf("dateTo=%s", fs.got.DateTo)
	}
}

func TestHandleSearch_BadRequests(t *testing.T) {
	cases := map[string]string{
		"empty":          ``,
		"malformed":      `{"bounds":`,
		"missing bounds": `{"dateFrom":"02/01/2014","dateTo":"02/02/2014"}`,
		"bad date":       strings.Replace(validBody, "02/01/2014", "Feb 1st", 1),
		"latitude":       strings.Replace(validBody, `"top": 52.0`, `"top": 95.0`, 1),
		"inverted box":   strings.Replace(validBody, `"right": 40.0`, `"right": 10.0`, 1),
		"hour":           strings.Replace(validBody, `"keywords"`, `"hourFrom": 24, "keywords"`, 1),
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			fs := &fakeSearcher{}
			rr := serve(t, fs, body, 0)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
			}
			if fs.got.Bounds != nil {
				t.Fatal("searcher must not run for a rejected request")
			}
		})
	}
}

func TestHandleSearch_BodyLimit(t *testing.T) {
	rr := serve(t, &fakeSearcher{}, validBody, 16)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestHandleSearch_ErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("build predicate: %w", query.ErrInvalidRange), http.StatusBadRequest},
		{fmt.Errorf("query store: %w: breaker open", store.ErrUnavailable), http.StatusServiceUnavailable},
		{fmt.Errorf("%w: upstream status 500", store.ErrQueryExecution), http.StatusBadGateway},
		{fmt.Errorf("%w: %w", store.ErrQueryExecution, context.DeadlineExceeded), http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rr := serve(t, &fakeSearcher{err: tc.err}, validBody, 0)
		if rr.Code != tc.want {
			t.Fatalf("%v: status=%d want %d", tc.err, rr.Code, tc.want)
		}
	}
}

func TestDescribe_UsesJSONNames(t *testing.T) {
	from := model.NewDate(2014, 2, 1)
	err := validatorInstance().Struct(model.FilterRequest{
		Bounds:   &model.Bounds{Top: 10, Bottom: 20},
		DateFrom: &from,
		DateTo:   &from,
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if msg := describe(err); !strings.Contains(msg, "bounds.top: gtefield=Bottom") {
		t.Fatalf("describe=%q", msg)
	}
}
