package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	TimestampKey = "timestamp"
	StatusOnline = "online"

	// TimestampLayout is an ISO-8601 UTC instant with microseconds and a trailing Z.
	TimestampLayout = "2006-01-02T15:04:05.000000Z"
)

var (
	errNotObject        = errors.New("telemetry payload is not a JSON object")
	errDuplicateReading = errors.New("duplicate reading in telemetry payload")
)

type Reading struct {
	Parameter Parameter `json:"parameter"`
	Value     float64   `json:"value"`
}

// TelemetryMessage is serialised flat: the timestamp and one key per reading,
// in the order the readings were generated.
type TelemetryMessage struct {
	Timestamp string
	Readings  []Reading
}

type StatusMessage struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Keys returns the payload keys in wire order.
func (m TelemetryMessage) Keys() []string {
	keys := make([]string, 0, len(m.Readings)+1)
	keys = append(keys, TimestampKey)
	for _, r := range m.Readings {
		keys = append(keys, r.Parameter.String())
	}
	return keys
}

func (m TelemetryMessage) Value(p Parameter) (float64, bool) {
	for _, r := range m.Readings {
		if r.Parameter == p {
			return r.Value, true
		}
	}
	return 0, false
}

func (m TelemetryMessage) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	ts, err := json.Marshal(m.Timestamp)
	if err != nil {
		return nil, err
	}
	buf.WriteString(`"` + TimestampKey + `":`)
	buf.Write(ts)
	for _, r := range m.Readings {
		key, err := json.Marshal(r.Parameter.String())
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.Value)
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (m *TelemetryMessage) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errNotObject
	}

	msg := TelemetryMessage{}
	seen := map[string]struct{}{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: %s", errDuplicateReading, key)
		}
		seen[key] = struct{}{}

		if key == TimestampKey {
			if err := dec.Decode(&msg.Timestamp); err != nil {
				return fmt.Errorf("timestamp: %w", err)
			}
			continue
		}
		var value float64
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		msg.Readings = append(msg.Readings, Reading{Parameter: Parameter(key), Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*m = msg
	return nil
}
