package gdelt

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

type wireGeometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

func (g wireGeometry) point() (Point, bool) {
	if !strings.EqualFold(g.Type, "Point") {
		return Point{}, false
	}
	var c []float64
	if err := json.Unmarshal(g.Coordinates, &c); err != nil || len(c) < 2 {
		return Point{}, false
	}
	return Point{Lon: c[0], Lat: c[1]}, true
}

type wireFeature struct {
	ID         any            `json:"id"`
	Geometry   *wireGeometry  `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

// feature drops a geometry that is not a usable point; Position then falls
// back to the ActionGeo attributes.
func (w wireFeature) feature() Feature {
	f := Feature{Properties: w.Properties}
	if f.Properties == nil {
		f.Properties = map[string]any{}
	}
	if w.ID != nil {
		f.ID = StringValue(w.ID)
	}
	if w.Geometry != nil {
		if p, ok := w.Geometry.point(); ok {
			f.Geometry = &p
		}
	}
	return f
}

// FeatureReader decodes a GeoJSON FeatureCollection one feature at a time.
// Members other than "features" are skipped.
type FeatureReader struct {
	dec     *json.Decoder
	started bool
	inArray bool
	done    bool
}

func NewFeatureReader(r io.Reader) *FeatureReader {
	return &FeatureReader{dec: json.NewDecoder(r)}
}

// Next returns the next feature, or io.EOF once the collection is exhausted.
func (fr *FeatureReader) Next() (Feature, error) {
	if fr.done {
		return Feature{}, io.EOF
	}
	if !fr.started {
		if err := fr.expectDelim('{'); err != nil {
			return Feature{}, err
		}
		fr.started = true
	}
	if !fr.inArray {
		if err := fr.seekFeatures(); err != nil {
			return Feature{}, err
		}
		if fr.done {
			return Feature{}, io.EOF
		}
	}
	if !fr.dec.More() {
		// closing ']' of features, then keep draining trailing members
		if _, err := fr.dec.Token(); err != nil {
			return Feature{}, fmt.Errorf("geojson: %w", err)
		}
		fr.inArray = false
		if err := fr.skipRest(); err != nil {
			return Feature{}, err
		}
		fr.done = true
		return Feature{}, io.EOF
	}
	var w wireFeature
	if err := fr.dec.Decode(&w); err != nil {
		return Feature{}, fmt.Errorf("geojson feature: %w", err)
	}
	return w.feature(), nil
}

func (fr *FeatureReader) seekFeatures() error {
	for fr.dec.More() {
		tok, err := fr.dec.Token()
		if err != nil {
			return fmt.Errorf("geojson: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("geojson: unexpected token %v", tok)
		}
		if key == "features" {
			if err := fr.expectDelim('['); err != nil {
				return err
			}
			fr.inArray = true
			return nil
		}
		var skip json.RawMessage
		if err := fr.dec.Decode(&skip); err != nil {
			return fmt.Errorf("geojson member %q: %w", key, err)
		}
	}
	fr.done = true
	return nil
}

func (fr *FeatureReader) skipRest() error {
	for fr.dec.More() {
		if _, err := fr.dec.Token(); err != nil {
			return fmt.Errorf("geojson: %w", err)
		}
		var skip json.RawMessage
		if err := fr.dec.Decode(&skip); err != nil {
			return fmt.Errorf("geojson: %w", err)
		}
	}
	return nil
}

func (fr *FeatureReader) expectDelim(want json.Delim) error {
	tok, err := fr.dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("geojson: empty document: %w", io.ErrUnexpectedEOF)
		}
		return fmt.Errorf("geojson: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("geojson: expected %q, got %v", want, tok)
	}
	return nil
}

// ReadAll decodes every feature of a collection.
func ReadAll(r io.Reader) ([]Feature, error) {
	fr := NewFeatureReader(r)
	var out []Feature
	for {
		f, err := fr.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
}
