// Command eventquery posts one filter request to the gateway and prints the
// numbered result dump.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/mohammed-shakir/gdelt-event-gateway/internal/core/model"
	"github.com/mohammed-shakir/gdelt-event-gateway/internal/projector"
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "eventquery:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("eventquery", flag.ContinueOnError)
	endpoint := fs.String("url", getenv("GATEWAY_URL", "http://localhost:8090/events"), "search endpoint")
	top := fs.Float64("top", 52.38, "north bound")
	right := fs.Float64("right", 40.23, "east bound")
	bottom := fs.Float64("bottom", 44.39, "south bound")
	left := fs.Float64("left", 22.14, "west bound")
	from := fs.String("from", "", "first day, MM/dd/yyyy or yyyy-MM-dd (required)")
	to := fs.String("to", "", "last day, defaults to -from")
	hourFrom := fs.Int("hour-from", -1, "first hour 0-23")
	hourTo := fs.Int("hour-to", -1, "last hour 0-23")
	codes := fs.String("codes", "", "comma separated event code prefixes")
	keywords := fs.String("keywords", "", "comma separated actor keywords")
	timeout := fs.Duration("timeout", 60*time.Second, "request timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	req, err := buildRequest(model.Bounds{Top: *top, Right: *right, Bottom: *bottom, Left: *left},
		*from, *to, *hourFrom, *hourTo, *codes, *keywords)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	list, err := search(ctx, http.DefaultClient, *endpoint, req)
	if err != nil {
		return err
	}
	return render(out, list)
}

func buildRequest(b model.Bounds, from, to string, hourFrom, hourTo int, codes, keywords string) (model.FilterRequest, error) {
	if strings.TrimSpace(from) == "" {
		return model.FilterRequest{}, errors.New("-from is required")
	}
	if strings.TrimSpace(to) == "" {
		to = from
	}
	df, err := model.ParseDate(from)
	if err != nil {
		return model.FilterRequest{}, err
	}
	dt, err := model.ParseDate(to)
	if err != nil {
		return model.FilterRequest{}, err
	}
	req := model.FilterRequest{
		Bounds:   &b,
		DateFrom: &df,
		DateTo:   &dt,
		EventIDs: splitCSV(codes),
		Keywords: splitCSV(keywords),
	}
	if hourFrom >= 0 {
		req.HourFrom = &hourFrom
	}
	if hourTo >= 0 {
		req.HourTo = &hourTo
	}
	return req, nil
}

func search(ctx context.Context, client *http.Client, endpoint string, req model.FilterRequest) (model.EventList, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return model.EventList{}, fmt.Errorf("encode request: %w", err)
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return model.EventList{}, fmt.Errorf("build request: %w", err)
	}
	hreq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(hreq)
	if err != nil {
		return model.EventList{}, fmt.Errorf("post %s: %w", endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return model.EventList{}, fmt.Errorf("gateway status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	var list model.EventList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return model.EventList{}, fmt.Errorf("decode response: %w", err)
	}
	return list, nil
}

func render(w io.Writer, list model.EventList) error {
	if len(list.Events) == 0 {
		_, err := fmt.Fprintln(w, "No results")
		return err
	}
	if _, err := fmt.Fprintln(w, "Results:"); err != nil {
		return err
	}
	for i, rec := range list.Events {
		if _, err := fmt.Fprintln(w, projector.FormatRecord(i+1, rec)); err != nil {
			return err
		}
	}
	if list.Truncated {
		_, err := fmt.Fprintf(w, "(truncated after %d events)\n", len(list.Events))
		return err
	}
	return nil
}

func splitCSV(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if x := strings.TrimSpace(p); x != "" {
			out = append(out, x)
		}
	}
	return out
}
