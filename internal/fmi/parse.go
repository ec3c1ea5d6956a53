package fmi

import (
	"encoding/xml"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Value is one sample from a WFS time/value pair series.
type Value struct {
	Param string
	Time  time.Time
	Value float64
}

// Series holds samples for one or more parameters in response order.
type Series []Value

// Latest returns the newest sample for param, or false when the series has none.
// NaN samples are kept in the series and returned as is; callers that need a
// finite number must check.
func (s Series) Latest(param string) (Value, bool) {
	var best Value
	var found bool
	for _, v := range s {
		if v.Param != param {
			continue
		}
		if !found || v.Time.After(best.Time) {
			best = v
			found = true
		}
	}
	return best, found
}

// WFS getFeature response, reduced to the elements the relay reads. Tags match
// local names only, so namespace prefixes in the document do not matter.
type wfsCollection struct {
	Members []wfsMember `xml:"member"`
}

type wfsMember struct {
	Observation wfsObservation `xml:"PointTimeSeriesObservation"`
}

type wfsObservation struct {
	ObservedProperty struct {
		Href string `xml:"href,attr"`
	} `xml:"observedProperty"`
	Points []wfsPoint `xml:"result>MeasurementTimeseries>point"`
}

type wfsPoint struct {
	TVP struct {
		Time  string `xml:"time"`
		Value string `xml:"value"`
	} `xml:"MeasurementTVP"`
}

// ParseTimeValuePairs extracts all wml2:MeasurementTVP samples from a WFS
// getFeature response. The parameter code is taken from the observedProperty
// href query string. Pairs with unparseable times or values are skipped.
func ParseTimeValuePairs(data []byte) (Series, error) {
	var coll wfsCollection
	if err := xml.Unmarshal(data, &coll); err != nil {
		return nil, fmt.Errorf("parse wfs response: %w", err)
	}

	var out Series
	for _, m := range coll.Members {
		param := paramFromHref(m.Observation.ObservedProperty.Href)
		for _, p := range m.Observation.Points {
			t, err := time.Parse(time.RFC3339, p.TVP.Time)
			if err != nil {
				continue
			}
			v, err := strconv.ParseFloat(p.TVP.Value, 64)
			if err != nil {
				continue
			}
			out = append(out, Value{Param: param, Time: t.UTC(), Value: v})
		}
	}
	return out, nil
}

func paramFromHref(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return u.Query().Get("param")
}
