// Package all imports every storage backend for their registration side
// effects.
package all

import (
	_ "github.com/fluxnode/fluxosd/lib/store/bbolt"
	_ "github.com/fluxnode/fluxosd/lib/store/memory"
	_ "github.com/fluxnode/fluxosd/lib/store/valkey"
)
