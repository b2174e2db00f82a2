// Package ogc builds WFS 2.0 requests against the GeoServer OWS endpoint.
package ogc

import (
	"net/url"
	"strconv"
	"strings"
)

const (
	OutputGeoJSON = "application/json"
	SRSName       = "EPSG:4326"
)

func OWSEndpoint(geoServerBase string) string {
	return strings.TrimRight(geoServerBase, "/") + "/ows"
}

// GetFeature describes one GetFeature call. Count of zero leaves the page
// size to the server.
type GetFeature struct {
	TypeNames string
	CQLFilter string
	Count     int
}

func (g GetFeature) Params() url.Values {
	params := base("GetFeature")
	params.Set("typeNames", g.TypeNames)
	params.Set("srsName", SRSName)
	params.Set("outputFormat", OutputGeoJSON)
	if strings.TrimSpace(g.CQLFilter) != "" {
		params.Set("cql_filter", g.CQLFilter)
	}
	if g.Count > 0 {
		params.Set("count", strconv.Itoa(g.Count))
	}
	return params
}

func DescribeFeatureTypeParams(typeNames string) url.Values {
	params := base("DescribeFeatureType")
	params.Set("typeNames", typeNames)
	params.Set("outputFormat", OutputGeoJSON)
	return params
}

func base(request string) url.Values {
	params := url.Values{}
	params.Set("service", "WFS")
	params.Set("version", "2.0.0")
	params.Set("request", request)
	return params
}
