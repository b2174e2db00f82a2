package gdelt

import (
	"errors"
	"io"
	"strings"
	"testing"
)

const sampleCollection = `{
  "type": "FeatureCollection",
  "crs": {"type": "name", "properties": {"name": "urn:ogc:def:crs:EPSG::4326"}},
  "features": [
    {"type": "Feature", "id": "gdelt.1",
     "geometry": {"type": "Point", "coordinates": [30.5, 50.45]},
     "properties": {"EventCode": "143", "SQLDATE": "2014-02-02T00:00:00Z", "Actor1Name": "PROTESTER"}},
    {"type": "Feature", "id": 2, "geometry": null,
     "properties": {"EventCode": "010", "ActionGeo_Lat": 48.0, "ActionGeo_Long": "37.8"}}
  ],
  "totalFeatures": 2,
  "numberReturned": 2
}`

func TestFeatureReader_Streams(t *testing.T) {
	fr := NewFeatureReader(strings.NewReader(sampleCollection))

	f1, err := fr.Next()
	if err != nil {
		t.Fatalf("Next #1: %v", err)
	}
	if f1.ID != "gdelt.1" || f1.Geometry == nil || f1.Geometry.Lon != 30.5 || f1.Geometry.Lat != 50.45 {
		t.Fatalf("unexpected first feature: %+v", f1)
	}
	if code, _ := f1.String(EventCode); code != "143" {
		t.Fatalf("EventCode=%q", code)
	}

	f2, err := fr.Next()
	if err != nil {
		t.Fatalf("Next #2: %v", err)
	}
	if f2.ID != "2" {
		t.Fatalf("numeric id should stringify, got %q", f2.ID)
	}
	lat, lon, ok := f2.Position()
	if !ok || lat != 48.0 || lon != 37.8 {
		t.Fatalf("fallback position got (%v,%v,%v)", lat, lon, ok)
	}

	if _, err := fr.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("want io.EOF, got %v", err)
	}
	if _, err := fr.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("EOF must be sticky, got %v", err)
	}
}

func TestFeatureReader_NoFeaturesMember(t *testing.T) {
	got, err := ReadAll(strings.NewReader(`{"type":"FeatureCollection"}`))
	if err != nil || len(got) != 0 {
		t.Fatalf("got %v, %v", got, err)
	}
}

func TestFeatureReader_Malformed(t *testing.T) {
	cases := map[string]string{
		"empty":      ``,
		"not object": `[1,2]`,
		"truncated":  `{"features":[{"type":"Feature","properties":{`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ReadAll(strings.NewReader(doc)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestFeatureReader_UnusableGeometryFallsBack(t *testing.T) {
	doc := `{"features":[
	  {"id":"poly","geometry":{"type":"Polygon","coordinates":[[[30,50],[31,50],[31,51],[30,50]]]},
	   "properties":{"ActionGeo_Lat":50.5,"ActionGeo_Long":30.5}},
	  {"id":"short","geometry":{"type":"Point","coordinates":[30]},"properties":{}},
	  {"id":"ok","geometry":{"type":"Point","coordinates":[31,49]},"properties":{}}
	]}`
	got, err := ReadAll(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("want 3 features, got %d", len(got))
	}
	if got[0].Geometry != nil || got[1].Geometry != nil {
		t.Fatal("unusable geometries should be dropped")
	}
	if lat, lon, ok := got[0].Position(); !ok || lat != 50.5 || lon != 30.5 {
		t.Fatalf("polygon feature position=(%v,%v,%v), want ActionGeo", lat, lon, ok)
	}
	if _, _, ok := got[1].Position(); ok {
		t.Fatal("feature without geometry or ActionGeo has no position")
	}
	if got[2].Geometry == nil || got[2].Geometry.Lat != 49 {
		t.Fatalf("point geometry lost: %+v", got[2].Geometry)
	}
}
