package store_test

import (
	"testing"
	"time"

	"github.com/fluxnode/fluxosd/lib/store"
	"github.com/fluxnode/fluxosd/lib/store/memory"
)

func TestJSON(t *testing.T) {
	type nodeConfig struct {
		Tier string `json:"tier"`
	}

	st := memory.New(t.Context())
	db := store.JSON[nodeConfig]{
		Underlying: st,
		Prefix:     "arcane:",
	}

	if err := db.Set(t.Context(), "config", nodeConfig{Tier: t.Name()}, time.Minute); err != nil {
		t.Fatal(err)
	}

	got, err := db.Get(t.Context(), "config")
	if err != nil {
		t.Fatal(err)
	}

	if got.Tier != t.Name() {
		t.Fatalf("got wrong data for key \"config\", wanted %q but got: %q", t.Name(), got.Tier)
	}

	if err := db.Delete(t.Context(), "config"); err != nil {
		t.Fatal(err)
	}

	if _, err := db.Get(t.Context(), "config"); err == nil {
		t.Fatal("wanted get after delete to fail, it did not")
	}

	if err := st.Set(t.Context(), "arcane:config", []byte("}"), time.Minute); err != nil {
		t.Fatal(err)
	}

	if _, err := db.Get(t.Context(), "config"); err == nil {
		t.Fatal("wanted undecodable get to fail, it did not")
	}
}
