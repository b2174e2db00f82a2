// Package gdelt describes the GDELT event feature type as stored in GeoMesa.
package gdelt

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Attribute names of the gdelt simple feature type.
const (
	GlobalEventID   = "GLOBALEVENTID"
	SQLDate         = "SQLDATE"
	Actor1Name      = "Actor1Name"
	Actor2Name      = "Actor2Name"
	EventCode       = "EventCode"
	EventBaseCode   = "EventBaseCode"
	EventRootCode   = "EventRootCode"
	ActionGeoName   = "ActionGeo_FullName"
	ActionGeoLat    = "ActionGeo_Lat"
	ActionGeoLong   = "ActionGeo_Long"
	Geom            = "geom"
	SourceURL       = "SOURCEURL"
	DefaultTypeName = "gdelt"
	DefaultSRID     = "EPSG:4326"
)

// AttributeTypes lists every attribute of the feature type in declaration order.
var AttributeTypes = []struct {
	Name string
	Type string
}{
	{GlobalEventID, "Integer"},
	{SQLDate, "Date"},
	{"MonthYear", "Integer"},
	{"Year", "Integer"},
	{"FractionDate", "Float"},
	{"Actor1Code", "String"},
	{Actor1Name, "String"},
	{"Actor1CountryCode", "String"},
	{"Actor1KnownGroupCode", "String"},
	{"Actor1EthnicCode", "String"},
	{"Actor1Religion1Code", "String"},
	{"Actor1Religion2Code", "String"},
	{"Actor1Type1Code", "String"},
	{"Actor1Type2Code", "String"},
	{"Actor1Type3Code", "String"},
	{"Actor2Code", "String"},
	{Actor2Name, "String"},
	{"Actor2CountryCode", "String"},
	{"Actor2KnownGroupCode", "String"},
	{"Actor2EthnicCode", "String"},
	{"Actor2Religion1Code", "String"},
	{"Actor2Religion2Code", "String"},
	{"Actor2Type1Code", "String"},
	{"Actor2Type2Code", "String"},
	{"Actor2Type3Code", "String"},
	{"IsRootEvent", "Integer"},
	{EventCode, "String"},
	{EventBaseCode, "String"},
	{EventRootCode, "String"},
	{"QuadClass", "Integer"},
	{"GoldsteinScale", "Float"},
	{"NumMentions", "Integer"},
	{"NumSources", "Integer"},
	{"NumArticles", "Integer"},
	{"AvgTone", "Float"},
	{"Actor1Geo_Type", "Integer"},
	{"Actor1Geo_FullName", "String"},
	{"Actor1Geo_CountryCode", "String"},
	{"Actor1Geo_ADM1Code", "String"},
	{"Actor1Geo_Lat", "Float"},
	{"Actor1Geo_Long", "Float"},
	{"Actor1Geo_FeatureID", "Integer"},
	{"Actor2Geo_Type", "Integer"},
	{"Actor2Geo_FullName", "String"},
	{"Actor2Geo_CountryCode", "String"},
	{"Actor2Geo_ADM1Code", "String"},
	{"Actor2Geo_Lat", "Float"},
	{"Actor2Geo_Long", "Float"},
	{"Actor2Geo_FeatureID", "Integer"},
	{"ActionGeo_Type", "Integer"},
	{ActionGeoName, "String"},
	{"ActionGeo_CountryCode", "String"},
	{"ActionGeo_ADM1Code", "String"},
	{ActionGeoLat, "Float"},
	{ActionGeoLong, "Float"},
	{"ActionGeo_FeatureID", "Integer"},
	{"DATEADDED", "Integer"},
	{Geom, "Point"},
	{SourceURL, "String"},
}

// FeatureTypeSpec renders the GeoTools type spec, geom as default geometry.
func FeatureTypeSpec() string {
	parts := make([]string, 0, len(AttributeTypes))
	for _, a := range AttributeTypes {
		if a.Name == Geom {
			parts = append(parts, "*geom:Point:srid=4326")
			continue
		}
		parts = append(parts, a.Name+":"+a.Type)
	}
	return strings.Join(parts, ",")
}

// Field is one projected attribute.
type Field struct {
	Name     string
	Optional bool
}

// Projection is the ordered set of attributes mapped into an event record.
// Position comes from the geometry and is checked separately.
var Projection = []Field{
	{Name: EventCode},
	{Name: SQLDate},
	{Name: Actor1Name},
	{Name: Actor2Name},
	{Name: ActionGeoName},
	{Name: SourceURL, Optional: true},
}

type Point struct {
	Lon float64
	Lat float64
}

// Feature is one stored event; absent attributes are missing from Properties.
type Feature struct {
	ID         string
	Geometry   *Point
	Properties map[string]any
}

// Lookup returns the attribute value; nil values count as absent.
func (f Feature) Lookup(name string) (any, bool) {
	v, ok := f.Properties[name]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func (f Feature) String(name string) (string, bool) {
	v, ok := f.Lookup(name)
	if !ok {
		return "", false
	}
	return StringValue(v), true
}

func (f Feature) Time(name string) (time.Time, bool) {
	v, ok := f.Lookup(name)
	if !ok {
		return time.Time{}, false
	}
	return TimeValue(v)
}

// Position prefers the point geometry and falls back to the ActionGeo columns.
func (f Feature) Position() (lat, lon float64, ok bool) {
	if f.Geometry != nil {
		return f.Geometry.Lat, f.Geometry.Lon, true
	}
	latV, okLat := f.Lookup(ActionGeoLat)
	lonV, okLon := f.Lookup(ActionGeoLong)
	if !okLat || !okLon {
		return 0, 0, false
	}
	lat, errLat := FloatValue(latV)
	lon, errLon := FloatValue(lonV)
	if errLat != nil || errLon != nil {
		return 0, 0, false
	}
	return lat, lon, true
}

func StringValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(t)
	}
}

func FloatValue(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("parse float: %w", err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("unsupported numeric value %T", v)
	}
}

// GeoServer emits dates as ISO strings; GDELT raw files use yyyyMMdd.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"20060102",
}

func TimeValue(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), true
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed.UTC(), true
			}
		}
	case float64:
		// epoch millis
		return time.UnixMilli(int64(t)).UTC(), true
	}
	return time.Time{}, false
}
