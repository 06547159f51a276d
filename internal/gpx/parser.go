// Package gpx turns GPX track documents into validated, ordered tracks.
package gpx

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
)

var (
	ErrMalformedDocument = errors.New("failed to parse gpx data")
	ErrEmptyTrack        = errors.New("no valid track points found in gpx data")
)

const pointElement = "trkpt"

// Accepted timestamp encodings, in priority order.
var timeLayouts = []string{
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05.000Z07:00",
}

// Parse decodes document and returns its track points in document order.
// Points with missing or invalid coordinates are dropped; a document that
// yields no point at all fails with ErrEmptyTrack.
func Parse(document string) (Track, error) {
	dec := xml.NewDecoder(strings.NewReader(document))
	dec.CharsetReader = charset.NewReaderLabel

	var (
		track Track
		cur   *pointBuilder
		field string
		text  strings.Builder
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			field = ""
			switch name := t.Name.Local; {
			case name == pointElement:
				cur = newPointBuilder(t.Attr)
			case cur != nil && (name == "ele" || name == "time"):
				field = name
				text.Reset()
			}
		case xml.CharData:
			if field != "" {
				text.Write(t)
			}
		case xml.EndElement:
			switch {
			case t.Name.Local == pointElement:
				if cur != nil {
					if p, ok := cur.build(); ok {
						track = append(track, p)
					}
				}
				cur = nil
			case field != "" && t.Name.Local == field:
				cur.set(field, strings.TrimSpace(text.String()))
			}
			field = ""
		}
	}

	if len(track) == 0 {
		return nil, ErrEmptyTrack
	}
	return track, nil
}

// ParseTimestamp tries every accepted layout and reports whether one matched.
func ParseTimestamp(value string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

type pointBuilder struct {
	lat, lon     float64
	latOK, lonOK bool

	ele     *float64
	at      *time.Time
	bearing *float64
}

func newPointBuilder(attrs []xml.Attr) *pointBuilder {
	b := &pointBuilder{}
	for _, a := range attrs {
		switch a.Name.Local {
		case "lat":
			b.lat, b.latOK = parseNumber(a.Value)
		case "lon":
			b.lon, b.lonOK = parseNumber(a.Value)
		case "bearing":
			if v, ok := parseNumber(a.Value); ok {
				b.bearing = &v
			}
		}
	}
	return b
}

func (b *pointBuilder) set(field, value string) {
	if value == "" {
		return
	}
	switch field {
	case "ele":
		if v, ok := parseNumber(value); ok {
			b.ele = &v
		}
	case "time":
		if t, ok := ParseTimestamp(value); ok {
			b.at = &t
		}
	}
}

func (b *pointBuilder) build() (TrackPoint, bool) {
	if !b.latOK || !b.lonOK || !ValidCoordinates(b.lat, b.lon) {
		return TrackPoint{}, false
	}
	p := NewPoint(b.lat, b.lon)
	if b.ele != nil {
		p = p.WithElevation(*b.ele)
	}
	if b.at != nil {
		p = p.WithTime(*b.at)
	}
	if b.bearing != nil {
		p = p.WithBearing(*b.bearing)
	}
	return p, true
}

func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
