// Package schema declares the five persisted tables of the songplay model.
//
// The star schema has one fact table (songplays) and four dimensions (users,
// songs, artists, time).
package schema

import "songetl/internal/storage"

// Table names.
const (
	SongsTable     = "songs"
	ArtistsTable   = "artists"
	TimeTable      = "time"
	UsersTable     = "users"
	SongplaysTable = "songplays"
)

func nullable(name, typ string) storage.ColumnSpec {
	t := true
	return storage.ColumnSpec{Name: name, Type: typ, Nullable: &t}
}

func required(name, typ string) storage.ColumnSpec {
	return storage.ColumnSpec{Name: name, Type: typ}
}

var (
	// Songs has one row per catalog record.
	Songs = storage.TableSpec{
		Name:       SongsTable,
		PrimaryKey: []string{"song_id"},
		Columns: []storage.ColumnSpec{
			required("song_id", storage.TypeText),
			nullable("title", storage.TypeText),
			nullable("artist_id", storage.TypeText),
			nullable("year", storage.TypeInt),
			nullable("duration", storage.TypeFloat),
		},
	}

	// Artists has one row per distinct artist record.
	Artists = storage.TableSpec{
		Name:       ArtistsTable,
		PrimaryKey: []string{"artist_id"},
		Columns: []storage.ColumnSpec{
			required("artist_id", storage.TypeText),
			nullable("name", storage.TypeText),
			nullable("location", storage.TypeText),
			nullable("latitude", storage.TypeFloat),
			nullable("longitude", storage.TypeFloat),
		},
	}

	// Time has one row per NextSong event; start_time is epoch milliseconds.
	Time = storage.TableSpec{
		Name: TimeTable,
		Columns: []storage.ColumnSpec{
			nullable("start_time", storage.TypeBigInt),
			nullable("hour", storage.TypeInt),
			nullable("day", storage.TypeInt),
			nullable("week", storage.TypeInt),
			nullable("month", storage.TypeInt),
			nullable("year", storage.TypeInt),
			nullable("weekday", storage.TypeInt),
		},
	}

	// Users keeps one row per (user_id, level) so a free-to-paid upgrade
	// within the same log set is loadable.
	Users = storage.TableSpec{
		Name:       UsersTable,
		PrimaryKey: []string{"user_id", "level"},
		Columns: []storage.ColumnSpec{
			required("user_id", storage.TypeInt),
			nullable("first_name", storage.TypeText),
			nullable("last_name", storage.TypeText),
			nullable("gender", storage.TypeText),
			required("level", storage.TypeText),
		},
	}

	Songplays = storage.TableSpec{
		Name:       SongplaysTable,
		PrimaryKey: []string{"songplay_id"},
		Columns: []storage.ColumnSpec{
			required("songplay_id", storage.TypeInt),
			nullable("start_time", storage.TypeBigInt),
			nullable("user_id", storage.TypeInt),
			nullable("level", storage.TypeText),
			nullable("song_id", storage.TypeText),
			nullable("artist_id", storage.TypeText),
			nullable("session_id", storage.TypeInt),
			nullable("location", storage.TypeText),
			nullable("user_agent", storage.TypeText),
		},
	}
)

// All returns every table in creation order. Drop in reverse.
func All() []storage.TableSpec {
	return []storage.TableSpec{Songplays, Users, Songs, Artists, Time}
}

