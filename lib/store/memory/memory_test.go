package memory

import (
	"testing"

	"github.com/fluxnode/fluxosd/lib/store/storetest"
)

func TestImpl(t *testing.T) {
	storetest.Common(t, factory{}, nil)
}
