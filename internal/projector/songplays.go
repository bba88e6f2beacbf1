package projector

import (
	"fmt"

	"songetl/internal/frame"
	"songetl/internal/schema"
)

// Songplays projects the fact table from resolved NextSong events.
//
// songplay_id is the dense 0-based row position in joined. song_id and
// artist_id stay nil for events the resolver could not match.
func Songplays(joined frame.Frame) (frame.Frame, error) {
	sel, err := joined.Select("ts", "userId", "level", "song_id", "artist_id", "sessionId", "location", "userAgent")
	if err != nil {
		return frame.Frame{}, fmt.Errorf("project songplays: %w", err)
	}

	rows := make([][]any, len(sel.Rows))
	for i, r := range sel.Rows {
		row := make([]any, 0, len(schema.Songplays.Columns))
		row = append(row, int64(i))
		row = append(row, r[0], coerceID(r[1]))
		row = append(row, r[2:]...)
		rows[i] = row
	}
	return frame.New(schema.Songplays.ColumnNames(), rows), nil
}
