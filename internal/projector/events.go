package projector

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"songetl/internal/frame"
	"songetl/internal/schema"
)

// EventColumns is the raw activity-log record layout.
var EventColumns = []string{
	"artist", "auth", "firstName", "gender", "itemInSession", "lastName",
	"length", "level", "location", "method", "page", "registration",
	"sessionId", "song", "status", "ts", "userAgent", "userId",
}

// NextSongPage marks a log record as an actual song play.
const NextSongPage = "NextSong"

// NextSong keeps the events whose page is exactly "NextSong", in order.
func NextSong(raw frame.Frame) (frame.Frame, error) {
	j := raw.Index("page")
	if j < 0 {
		return frame.Frame{}, fmt.Errorf("filter NextSong: missing column %q", "page")
	}
	return raw.Filter(func(row []any) bool {
		s, ok := row[j].(string)
		return ok && s == NextSongPage
	}), nil
}

// Time derives one time row per event from the epoch-millisecond ts column.
//
// Components are computed in UTC. week is the ISO-8601 week number and
// weekday counts Monday as 0. An event without a usable ts yields a row of
// nils so the row count still equals the event count.
func Time(events frame.Frame) (frame.Frame, error) {
	j := events.Index("ts")
	if j < 0 {
		return frame.Frame{}, fmt.Errorf("project time: missing column %q", "ts")
	}

	rows := make([][]any, 0, events.Len())
	for _, row := range events.Rows {
		ms, ok := ToInt64(row[j])
		if !ok {
			rows = append(rows, make([]any, len(schema.Time.Columns)))
			continue
		}
		rows = append(rows, timeRow(ms))
	}
	return frame.New(schema.Time.ColumnNames(), rows), nil
}

func timeRow(ms int64) []any {
	t := time.UnixMilli(ms).UTC()
	_, week := t.ISOWeek()
	// time.Weekday counts Sunday as 0.
	weekday := (int64(t.Weekday()) + 6) % 7
	return []any{
		ms,
		int64(t.Hour()),
		int64(t.Day()),
		int64(week),
		int64(t.Month()),
		int64(t.Year()),
		weekday,
	}
}

var userRenames = map[string]string{
	"userId":    "user_id",
	"firstName": "first_name",
	"lastName":  "last_name",
}

// Users projects the user dimension from the full event sequence (all pages).
//
// user_id is coerced to an integer; rows whose id is empty or non-numeric
// (logged-out sessions) are dropped. Rows are then deduplicated on
// (user_id, level), keeping the first occurrence.
func Users(raw frame.Frame) (frame.Frame, error) {
	sel, err := raw.Select("userId", "firstName", "lastName", "gender", "level")
	if err != nil {
		return frame.Frame{}, fmt.Errorf("project users: %w", err)
	}
	sel = sel.Rename(userRenames)

	coerced, err := sel.MapColumn("user_id", coerceID)
	if err != nil {
		return frame.Frame{}, fmt.Errorf("project users: %w", err)
	}
	id := coerced.Index("user_id")
	known := coerced.Filter(func(row []any) bool { return row[id] != nil })

	out, err := known.DropDuplicates("user_id", "level")
	if err != nil {
		return frame.Frame{}, fmt.Errorf("project users: %w", err)
	}
	return out, nil
}

func coerceID(v any) any {
	n, ok := ToInt64(v)
	if !ok {
		return nil
	}
	return n
}

// ToInt64 converts an integral JSON value (int64, integral float64 or a
// numeric string) to int64.
func ToInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case float64:
		if t != math.Trunc(t) || math.IsInf(t, 0) || math.IsNaN(t) {
			return 0, false
		}
		return int64(t), true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
