// Package router decodes search requests and maps search errors to HTTP.
package router

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/mohammed-shakir/gdelt-event-gateway/internal/core/model"
	"github.com/mohammed-shakir/gdelt-event-gateway/internal/events"
	"github.com/mohammed-shakir/gdelt-event-gateway/internal/logger"
)

var (
	ErrBadRequest   = errors.New("bad request")
	ErrBodyTooLarge = errors.New("request body too large")
)

const defaultMaxBodySize = 1 << 20

// Searcher runs one filter request.
type Searcher interface {
	Search(ctx context.Context, req model.FilterRequest) (model.EventList, error)
}

var (
	vOnce    sync.Once
	validate *validator.Validate
)

func validatorInstance() *validator.Validate {
	vOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		// report json names
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			tag := fld.Tag.Get("json")
			if tag == "-" || tag == "" {
				return fld.Name
			}
			if idx := strings.Index(tag, ","); idx >= 0 {
				tag = tag[:idx]
			}
			return tag
		})
		validate = v
	})
	return validate
}

// HandleSearch serves POST search requests. Unknown JSON fields are ignored.
func HandleSearch(log *slog.Logger, maxBody int64, s Searcher) http.HandlerFunc {
	if maxBody <= 0 {
		maxBody = defaultMaxBodySize
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := logger.WithComponent(r.Context(), "router")

		req, err := DecodeFilterRequest(w, r, maxBody)
		if err != nil {
			log.WarnContext(ctx, "rejecting search request", "err", err)
			http.Error(w, err.Error(), StatusFor(err))
			return
		}

		start := time.Now()
		list, err := s.Search(ctx, req)
		if err != nil {
			code := StatusFor(err)
			log.ErrorContext(ctx, "search failed",
				"class", events.Class(err),
				"status", code,
				"duration", time.Since(start).String(),
				"err", err)
			http.Error(w, http.StatusText(code)+": "+err.Error(), code)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(list); err != nil {
			log.WarnContext(ctx, "write response", "err", err)
		}
	}
}

// DecodeFilterRequest reads and validates one FilterRequest body.
func DecodeFilterRequest(w http.ResponseWriter, r *http.Request, maxBody int64) (model.FilterRequest, error) {
	var req model.FilterRequest
	body := http.MaxBytesReader(w, r.Body, maxBody)
	defer func() { _ = body.Close() }()

	b, err := io.ReadAll(body)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return req, fmt.Errorf("%w: limit %d bytes", ErrBodyTooLarge, mbe.Limit)
		}
		return req, fmt.Errorf("%w: read body: %w", ErrBadRequest, err)
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		return req, fmt.Errorf("%w: empty body", ErrBadRequest)
	}
	if err := json.Unmarshal(b, &req); err != nil {
		return req, fmt.Errorf("%w: decode: %w", ErrBadRequest, err)
	}
	if err := validatorInstance().Struct(req); err != nil {
		return req, fmt.Errorf("%w: %s", ErrBadRequest, describe(err))
	}
	return req, nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		ns := fe.Namespace()
		if i := strings.Index(ns, "."); i >= 0 {
			ns = ns[i+1:]
		}
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", ns, fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %s", ns, fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

// StatusFor maps decode and search errors to a response code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrBodyTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	}
	switch events.Class(err) {
	case "invalid":
		return http.StatusBadRequest
	case "timeout":
		return http.StatusGatewayTimeout
	case "canceled":
		// client went away
		return 499
	case "unavailable":
		return http.StatusServiceUnavailable
	case "query":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
