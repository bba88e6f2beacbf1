// Package resolver attaches catalog identities (song_id, artist_id) to
// NextSong events by matching free-text fields against the persisted catalog.
package resolver

import (
	"context"
	"fmt"

	"songetl/internal/frame"
	"songetl/internal/schema"
)

// TableReader reads persisted rows back from the database.
type TableReader interface {
	ReadTable(ctx context.Context, table string, columns []string) ([][]any, error)
}

// CatalogColumns is the layout of the song/artist catalog view.
var CatalogColumns = []string{"song_id", "artist_id", "title", "name", "duration"}

var (
	eventKey   = []string{"song", "artist", "length"}
	catalogKey = []string{"title", "name", "duration"}
)

// Catalog reads songs and artists back from the database and joins them on
// artist_id. Songs whose artist was not persisted are left out.
func Catalog(ctx context.Context, r TableReader) (frame.Frame, error) {
	songCols := []string{"song_id", "title", "artist_id", "duration"}
	songRows, err := r.ReadTable(ctx, schema.SongsTable, songCols)
	if err != nil {
		return frame.Frame{}, fmt.Errorf("resolve: read songs: %w", err)
	}
	artistCols := []string{"artist_id", "name"}
	artistRows, err := r.ReadTable(ctx, schema.ArtistsTable, artistCols)
	if err != nil {
		return frame.Frame{}, fmt.Errorf("resolve: read artists: %w", err)
	}

	joined, err := frame.Merge(frame.New(songCols, songRows), frame.New(artistCols, artistRows),
		[]string{"artist_id"}, []string{"artist_id"}, frame.Inner)
	if err != nil {
		return frame.Frame{}, fmt.Errorf("resolve: join catalog: %w", err)
	}
	return joined.Select(CatalogColumns...)
}

// Resolve left-joins events on (song, artist, length) against the catalog's
// (title, name, duration). Every event survives; unmatched events get nil
// song_id and artist_id. An event matching several catalog rows is repeated
// once per match.
//
// The catalog is always re-read from the database so identities reflect
// what was actually committed.
func Resolve(ctx context.Context, r TableReader, events frame.Frame) (frame.Frame, error) {
	catalog, err := Catalog(ctx, r)
	if err != nil {
		return frame.Frame{}, err
	}
	out, err := frame.Merge(events, catalog, eventKey, catalogKey, frame.Left)
	if err != nil {
		return frame.Frame{}, fmt.Errorf("resolve: join events: %w", err)
	}
	return out, nil
}

// Unmatched counts rows of a resolved frame without a song_id.
func Unmatched(resolved frame.Frame) int {
	ids, err := resolved.Column("song_id")
	if err != nil {
		return resolved.Len()
	}
	n := 0
	for _, id := range ids {
		if id == nil {
			n++
		}
	}
	return n
}
