package oracletest

import (
	"sync"
	"testing"

	"github.com/fluxnode/fluxosd/lib/oracle"
)

func TestFakeConcurrentCalls(t *testing.T) {
	fake := Echo()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := fake.Decrypt(t.Context(), oracle.Request{Message: "deadbeef"}); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if got := fake.Calls.Load(); got != 8 {
		t.Errorf("wanted 8 recorded calls, got: %d", got)
	}
}
