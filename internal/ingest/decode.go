package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rshade/greenreport/internal/carbon"
)

// ErrInvalidMessage marks a sensor message that cannot become a reading.
var ErrInvalidMessage = errors.New("invalid sensor message")

// sensorEnvelope accepts the field spellings used by the sensor firmware
// and by the HTTP bridge.
type sensorEnvelope struct {
	DeviceCode  json.RawMessage `json:"deviceCode"`
	DeviceCode2 json.RawMessage `json:"device_code"`
	DeviceID    json.RawMessage `json:"device_id"`
	Timestamp   json.RawMessage `json:"timestamp"`
	Temp        json.RawMessage `json:"temp"`
	Temperature json.RawMessage `json:"temperature"`
	Humidity    json.RawMessage `json:"humidity"`
	Brightness  json.RawMessage `json:"brightness"`
	Electric    json.RawMessage `json:"electric"`
}

// DecodeReading parses one sensor message. The device and timestamp are
// required; measurements that are absent, null or unparsable are left nil.
func DecodeReading(raw []byte) (carbon.Reading, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var env sensorEnvelope
	if err := dec.Decode(&env); err != nil {
		return carbon.Reading{}, fmt.Errorf("%w: decode payload: %w", ErrInvalidMessage, err)
	}

	device := firstText(env.DeviceCode, env.DeviceCode2, env.DeviceID)
	if device == "" {
		return carbon.Reading{}, fmt.Errorf("%w: device code missing", ErrInvalidMessage)
	}
	ts, err := parseTimestamp(env.Timestamp)
	if err != nil {
		return carbon.Reading{}, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}

	temp := parseNumber(env.Temp)
	if temp == nil {
		temp = parseNumber(env.Temperature)
	}
	return carbon.Reading{
		Timestamp:   ts,
		DeviceID:    device,
		Temperature: temp,
		Humidity:    parseNumber(env.Humidity),
		Brightness:  parseNumber(env.Brightness),
		ElectricMA:  parseNumber(env.Electric),
	}, nil
}

// firstText returns the first field holding a non-empty string or number.
func firstText(fields ...json.RawMessage) string {
	for _, raw := range fields {
		if len(raw) == 0 {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
			continue
		}
		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil {
			return n.String()
		}
	}
	return ""
}

// parseTimestamp accepts RFC3339 strings, "2006-01-02 15:04:05" in UTC and
// Unix milliseconds as a string or number.
func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, errors.New("timestamp missing")
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return time.Time{}, errors.New("timestamp empty")
		}
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, time.DateTime} {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.UTC(), nil
			}
		}
		if millis, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(millis).UTC(), nil
		}
		return time.Time{}, fmt.Errorf("unsupported timestamp %q", s)
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if millis, err := n.Int64(); err == nil {
			return time.UnixMilli(millis).UTC(), nil
		}
		if f, err := n.Float64(); err == nil {
			return time.UnixMilli(int64(f)).UTC(), nil
		}
	}
	return time.Time{}, errors.New("timestamp format not recognized")
}

func parseNumber(raw json.RawMessage) *float64 {
	if len(raw) == 0 {
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if f, err := n.Float64(); err == nil {
			return &f
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return &f
		}
	}
	return nil
}
