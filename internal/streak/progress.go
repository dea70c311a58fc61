package streak

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"habittracker/internal/model"
)

// DefaultWindow is the progress window length used when none is given.
const DefaultWindow = 30

// DayStatus is one calendar day of a progress series: 1 when a done entry
// exists for the day, 0 otherwise.
type DayStatus struct {
	Day   string
	Value int
}

// Progress is a chronologically ordered day→status series. It marshals to a
// JSON object whose keys keep that order.
type Progress []DayStatus

// Window returns the first and last day of a window of n days ending today.
func Window(today time.Time, n int) (start, end time.Time) {
	end = civilDay(today)
	start = addDays(end, -(n - 1))
	return start, end
}

// Aggregate builds the n-day series ending today from entries. Entries
// outside the window are ignored; days with no entry, or with an entry that
// is not done, are 0.
func Aggregate(entries []model.Entry, today time.Time, n int) Progress {
	if n < 1 {
		n = DefaultWindow
	}
	start, _ := Window(today, n)

	done := make(map[string]int, len(entries))
	for _, e := range entries {
		key := civilDay(e.Day).Format(DayLayout)
		if e.Done {
			done[key] = 1
		} else if _, ok := done[key]; !ok {
			done[key] = 0
		}
	}

	out := make(Progress, 0, n)
	for i := 0; i < n; i++ {
		key := addDays(start, i).Format(DayLayout)
		out = append(out, DayStatus{Day: key, Value: done[key]})
	}
	return out
}

// Map returns the series as a plain map, losing order.
func (p Progress) Map() map[string]int {
	m := make(map[string]int, len(p))
	for _, d := range p {
		m[d.Day] = d.Value
	}
	return m
}

// Keys returns the days of the series in order.
func (p Progress) Keys() []string {
	keys := make([]string, len(p))
	for i, d := range p {
		keys[i] = d.Day
	}
	return keys
}

func (p Progress) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, d := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(d.Day)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(strconv.Itoa(d.Value))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object produced by MarshalJSON, keeping key order.
func (p *Progress) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("progress: expected object, got %v", tok)
	}
	var out Progress
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("progress: expected day key, got %v", tok)
		}
		var v int
		if err := dec.Decode(&v); err != nil {
			return err
		}
		out = append(out, DayStatus{Day: key, Value: v})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*p = out
	return nil
}
