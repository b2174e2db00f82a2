// Package query builds the composite GDELT search predicate and renders it as ECQL.
package query

import (
	"fmt"
	"strings"
	"time"

	"github.com/mohammed-shakir/gdelt-event-gateway/internal/gdelt"
)

// Predicate is a boolean filter tree. Stores either push the ECQL text down
// (GeoServer/GeoMesa) or evaluate the tree per feature.
type Predicate interface {
	CQL() string
	Eval(f gdelt.Feature) bool
}

type And []Predicate

func (a And) CQL() string { return join(a, " AND ") }

func (a And) Eval(f gdelt.Feature) bool {
	for _, p := range a {
		if !p.Eval(f) {
			return false
		}
	}
	return true
}

// Or of zero terms is false; the builder never emits an empty Or.
type Or []Predicate

func (o Or) CQL() string { return join(o, " OR ") }

func (o Or) Eval(f gdelt.Feature) bool {
	for _, p := range o {
		if p.Eval(f) {
			return true
		}
	}
	return false
}

func join(ps []Predicate, op string) string {
	if len(ps) == 1 {
		return ps[0].CQL()
	}
	parts := make([]string, 0, len(ps))
	for _, p := range ps {
		parts = append(parts, "("+p.CQL()+")")
	}
	return strings.Join(parts, op)
}

// Between is an inclusive time range over a date attribute.
type Between struct {
	Property string
	From, To time.Time
}

func (b Between) CQL() string {
	return fmt.Sprintf("%s BETWEEN '%s' AND '%s'", b.Property,
		b.From.UTC().Format(time.RFC3339), b.To.UTC().Format(time.RFC3339))
}

func (b Between) Eval(f gdelt.Feature) bool {
	t, ok := f.Time(b.Property)
	if !ok {
		return false
	}
	return !t.Before(b.From) && !t.After(b.To)
}

// BBox tests containment of the feature point, axis order left,bottom,right,top.
type BBox struct {
	Property                 string
	Left, Bottom, Right, Top float64
	SRID                     string
}

func (b BBox) CQL() string {
	return fmt.Sprintf("BBOX(%s, %s, %s, %s, %s, '%s')", b.Property,
		num(b.Left), num(b.Bottom), num(b.Right), num(b.Top), b.SRID)
}

func (b BBox) Eval(f gdelt.Feature) bool {
	lat, lon, ok := f.Position()
	if !ok {
		return false
	}
	return lon >= b.Left && lon <= b.Right && lat >= b.Bottom && lat <= b.Top
}

func num(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.8f", v), "0"), ".")
}

type MatchMode int

const (
	// StartsWith renders as LIKE 'v%'
	StartsWith MatchMode = iota
	// Contains renders as LIKE '%v%'
	Contains
)

// Like is a case-sensitive string match against one attribute.
type Like struct {
	Property string
	Value    string
	Mode     MatchMode
}

func (l Like) CQL() string {
	v := escapeLike(l.Value)
	switch l.Mode {
	case Contains:
		v = "%" + v + "%"
	default:
		v += "%"
	}
	return fmt.Sprintf("%s LIKE '%s'", l.Property, v)
}

func (l Like) Eval(f gdelt.Feature) bool {
	s, ok := f.String(l.Property)
	if !ok {
		return false
	}
	if l.Mode == Contains {
		return strings.Contains(s, l.Value)
	}
	return strings.HasPrefix(s, l.Value)
}

// quotes are doubled for the ECQL literal, wildcards get the default '\' escape
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`, `'`, `''`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
