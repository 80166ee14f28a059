package batch

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
)

// ErrMalformedArtifact is returned when a trip-log cannot be parsed. It marks a
// recoverable per-unit condition: the unit contributes no row.
var ErrMalformedArtifact = errors.New("malformed trip-log artifact")

const (
	tripTag      = "tripinfo"
	durationAttr = "duration"
)

// TripLog is the content extracted from one trip-log artifact.
type TripLog struct {
	Durations []float64 // every tripinfo duration, document order
	Count     int       // tripinfo records directly under the root element
}

// ParseTripInfo reads and decodes the trip-log at path. The file is never modified.
func ParseTripInfo(path string) (*TripLog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening trip-log %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	tl, err := DecodeTripInfo(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return tl, nil
}

// DecodeTripInfo streams a trip-log document from r.
func DecodeTripInfo(r io.Reader) (*TripLog, error) {
	dec := xml.NewDecoder(r)
	tl := &TripLog{Durations: make([]float64, 0)}

	depth, roots := 0, 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, malformed(err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				roots++
				if roots > 1 {
					return nil, malformed(fmt.Errorf("second root element <%s>", el.Name.Local))
				}
			}
			depth++
			if el.Name.Local != tripTag {
				continue
			}
			if depth == 2 {
				tl.Count++
			}
			d, err := parseDuration(el)
			if err != nil {
				return nil, malformed(err)
			}
			tl.Durations = append(tl.Durations, d)
		case xml.EndElement:
			depth--
		case xml.CharData:
			if depth == 0 && len(bytes.TrimSpace(el)) > 0 {
				return nil, malformed(errors.New("text outside root element"))
			}
		}
	}

	if roots == 0 {
		return nil, malformed(errors.New("no root element"))
	}
	return tl, nil
}

func parseDuration(el xml.StartElement) (float64, error) {
	for _, a := range el.Attr {
		if a.Name.Local != durationAttr {
			continue
		}
		d, err := strconv.ParseFloat(a.Value, 64)
		if err != nil {
			return 0, fmt.Errorf("%s duration %q: %w", tripTag, a.Value, err)
		}
		return d, nil
	}
	return 0, fmt.Errorf("%s without %s attribute", tripTag, durationAttr)
}

func malformed(err error) error {
	return fmt.Errorf("%w: %v", ErrMalformedArtifact, err)
}
