// Package all registers every storage backend with the storage registry.
//
// Import it for side effects from binaries:
//
//	import _ "songetl/internal/storage/all"
package all

import (
	_ "songetl/internal/storage/mssql"
	_ "songetl/internal/storage/postgres"
	_ "songetl/internal/storage/sqlite"
)
