// Package projector reshapes raw source frames into the persisted tables.
//
// Catalog projections (Songs, Artists) read raw song-catalog records.
// Event projections (NextSong, Time, Users, Songplays) read raw activity-log
// records. Every projection returns columns in table DDL order.
package projector

import (
	"fmt"

	"songetl/internal/frame"
	"songetl/internal/schema"
)

// CatalogColumns is the raw song-catalog record layout.
var CatalogColumns = []string{
	"song_id", "title", "artist_id", "artist_name", "artist_location",
	"artist_latitude", "artist_longitude", "year", "duration", "num_songs",
}

var artistRenames = map[string]string{
	"artist_name":      "name",
	"artist_location":  "location",
	"artist_latitude":  "latitude",
	"artist_longitude": "longitude",
}

// Songs selects the song table columns. Rows are not deduplicated.
func Songs(raw frame.Frame) (frame.Frame, error) {
	out, err := raw.Select(schema.Songs.ColumnNames()...)
	if err != nil {
		return frame.Frame{}, fmt.Errorf("project songs: %w", err)
	}
	return out, nil
}

// Artists selects and renames the artist columns, then drops exact duplicate
// rows keeping the first occurrence.
//
// Two records for the same artist_id that differ in any column both survive;
// the primary key rejects the load in that case.
func Artists(raw frame.Frame) (frame.Frame, error) {
	sel, err := raw.Select("artist_id", "artist_name", "artist_location", "artist_latitude", "artist_longitude")
	if err != nil {
		return frame.Frame{}, fmt.Errorf("project artists: %w", err)
	}
	out, err := sel.Rename(artistRenames).DropDuplicates()
	if err != nil {
		return frame.Frame{}, fmt.Errorf("project artists: %w", err)
	}
	return out, nil
}
