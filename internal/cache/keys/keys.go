// Package keys derives the Redis keys of the response cache and its cell index.
package keys

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"

	"github.com/mohammed-shakir/gdelt-event-gateway/internal/core/model"
	"github.com/mohammed-shakir/gdelt-event-gateway/internal/query"
)

// Response is the key of one cached EventList: events:<layer>:f=<xxhash64>.
func Response(layer string, req model.FilterRequest) string {
	sum := xxhash.Sum64String(Canonical(req))
	return fmt.Sprintf("events:%s:f=%016x", sanitizeLayer(strings.TrimSpace(layer)), sum)
}

// CellSet is the index set of response keys touching one H3 cell.
func CellSet(layer string, res int, cell string) string {
	return fmt.Sprintf("idx:%s:%d:%s", sanitizeLayer(strings.TrimSpace(layer)), res, cell)
}

// LayerSet holds response keys whose bounds were too large to index per cell.
func LayerSet(layer string) string {
	return fmt.Sprintf("idx:%s:all", sanitizeLayer(strings.TrimSpace(layer)))
}

// Canonical renders req so that requests selecting the same events render
// identically: hours resolved to their defaults, prefix and keyword lists
// trimmed, de-duplicated and sorted.
func Canonical(req model.FilterRequest) string {
	var b strings.Builder
	if bb := req.Bounds; bb != nil {
		b.WriteString("bbox=")
		b.WriteString(strings.Join([]string{num(bb.Left), num(bb.Bottom), num(bb.Right), num(bb.Top)}, ","))
	}
	if req.DateFrom != nil {
		b.WriteString(";from=" + req.DateFrom.Format("2006-01-02"))
	}
	if req.DateTo != nil {
		b.WriteString(";to=" + req.DateTo.Format("2006-01-02"))
	}
	hf, ht := 0, 23
	if req.HourFrom != nil {
		hf = *req.HourFrom
	}
	if req.HourTo != nil {
		ht = *req.HourTo
	}
	b.WriteString(";h=" + strconv.Itoa(hf) + "-" + strconv.Itoa(ht))
	b.WriteString(";codes=" + sortedSet(req.EventIDs))
	b.WriteString(";kw=" + sortedSet(req.Keywords))
	return b.String()
}

func sortedSet(in []string) string {
	s := query.Normalize(in)
	slices.Sort(s)
	quoted := make([]string, len(s))
	for i, v := range s {
		quoted[i] = strconv.Quote(v)
	}
	return strings.Join(quoted, ",")
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func sanitizeLayer(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			out = '_'
		case isAlphaNum(r) || r == ':' || r == '_' || r == '-':
			out = r
		default:
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		unicode.IsDigit(r)
}
