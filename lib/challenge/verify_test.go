package challenge

import (
	"testing"
	"time"

	"github.com/fluxnode/fluxosd/lib/oracle/oracletest"
)

func newVerifier(t *testing.T, k *Keeper, fake *oracletest.Fake) *Verifier {
	t.Helper()

	return &Verifier{
		Keeper:    k,
		Oracle:    fake,
		PurposeID: "arcane-configsync",
		SystemID:  "test-node",
	}
}

func TestVerifyEndToEnd(t *testing.T) {
	k := NewKeeper(KeeperOptions{})
	v := newVerifier(t, k, oracletest.Echo())

	ch, err := k.Issue("203.0.113.7", 1337)
	if err != nil {
		t.Fatal(err)
	}

	res := v.Verify(t.Context(), "203.0.113.7", ch.Value, ch.Value)
	if !res.Valid {
		t.Fatalf("wanted valid result, got: %+v", res)
	}
	if res.Reason != ReasonSuccess {
		t.Errorf("wanted %q, got: %q", ReasonSuccess, res.Reason)
	}

	// one-time use: the pool is empty now, so a replay reads as an owner
	// that never existed
	res = v.Verify(t.Context(), "203.0.113.7", ch.Value, ch.Value)
	if res.Valid {
		t.Fatal("replayed challenge verified")
	}
	if res.Reason != ReasonNoChallenges {
		t.Errorf("wanted %q, got: %q", ReasonNoChallenges, res.Reason)
	}
}

func TestVerifyUnknownOwner(t *testing.T) {
	k := NewKeeper(KeeperOptions{})
	v := newVerifier(t, k, oracletest.Echo())

	res := v.Verify(t.Context(), "198.51.100.1", "whatever", "whatever")
	if res.Valid || res.Reason != ReasonNoChallenges {
		t.Errorf("wanted %q, got: %+v", ReasonNoChallenges, res)
	}
}

func TestVerifyWrongValue(t *testing.T) {
	k := NewKeeper(KeeperOptions{})
	fake := oracletest.Echo()
	v := newVerifier(t, k, fake)

	if _, err := k.Issue("203.0.113.7", 0); err != nil {
		t.Fatal(err)
	}

	res := v.Verify(t.Context(), "203.0.113.7", "not-the-right-value", "proof")
	if res.Valid || res.Reason != ReasonNotFound {
		t.Errorf("wanted %q, got: %+v", ReasonNotFound, res)
	}

	if calls := fake.Calls.Load(); calls != 0 {
		t.Errorf("oracle was consulted for a missing challenge %d times", calls)
	}
}

func TestVerifyExpired(t *testing.T) {
	k := NewKeeper(KeeperOptions{TTL: 20 * time.Millisecond})
	v := newVerifier(t, k, oracletest.Echo())

	ch, err := k.Issue("203.0.113.7", 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := k.Issue("203.0.113.7", 0); err != nil {
		t.Fatal(err)
	}

	time.Sleep(50 * time.Millisecond)

	// both challenges expired: the pool is gone entirely
	res := v.Verify(t.Context(), "203.0.113.7", ch.Value, ch.Value)
	if res.Valid || res.Reason != ReasonNoChallenges {
		t.Errorf("wanted %q, got: %+v", ReasonNoChallenges, res)
	}
}

func TestVerifyExpiredAmongOthers(t *testing.T) {
	k := NewKeeper(KeeperOptions{TTL: 40 * time.Millisecond})
	v := newVerifier(t, k, oracletest.Echo())

	doomed, err := k.Issue("203.0.113.7", 0)
	if err != nil {
		t.Fatal(err)
	}

	time.Sleep(60 * time.Millisecond)

	// a fresh challenge keeps the pool alive while the first one is gone
	if _, err := k.Issue("203.0.113.7", 0); err != nil {
		t.Fatal(err)
	}

	res := v.Verify(t.Context(), "203.0.113.7", doomed.Value, doomed.Value)
	if res.Valid || res.Reason != ReasonNotFound {
		t.Errorf("wanted %q, got: %+v", ReasonNotFound, res)
	}
}

func TestVerifyOracleFailureModes(t *testing.T) {
	for _, tt := range []struct {
		name       string
		fake       *oracletest.Fake
		wantReason string
	}{
		{
			name:       "transport error",
			fake:       oracletest.Unreachable(),
			wantReason: ReasonDecryptFailed,
		},
		{
			name:       "top-level rejection with message",
			fake:       oracletest.TopLevelError("Key not on this node"),
			wantReason: "Key not on this node",
		},
		{
			name:       "top-level rejection without message",
			fake:       oracletest.TopLevelError(""),
			wantReason: ReasonDecryptFailed,
		},
		{
			name:       "garbage payload",
			fake:       oracletest.Garbage(),
			wantReason: ReasonInvalidResponse,
		},
		{
			name:       "payload-level rejection",
			fake:       oracletest.PayloadError("Malformed ciphertext"),
			wantReason: "Malformed ciphertext",
		},
		{
			name:       "wrong plaintext",
			fake:       oracletest.Plaintext("anything-but-the-challenge"),
			wantReason: ReasonMismatch,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			k := NewKeeper(KeeperOptions{})
			v := newVerifier(t, k, tt.fake)

			ch, err := k.Issue("203.0.113.7", 0)
			if err != nil {
				t.Fatal(err)
			}

			res := v.Verify(t.Context(), "203.0.113.7", ch.Value, ch.Value)
			if res.Valid {
				t.Fatal("verification succeeded against a failing oracle")
			}
			if res.Reason != tt.wantReason {
				t.Errorf("wanted reason %q, got: %q", tt.wantReason, res.Reason)
			}

			// failed attempts must not burn the challenge
			if _, ok := k.Peek("203.0.113.7", ch.Value); !ok {
				t.Error("challenge was consumed on a failed verification")
			}
		})
	}
}

func TestVerifyOracleTimeout(t *testing.T) {
	k := NewKeeper(KeeperOptions{})
	v := newVerifier(t, k, oracletest.Hanging())
	v.Timeout = 20 * time.Millisecond

	ch, err := k.Issue("203.0.113.7", 0)
	if err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	res := v.Verify(t.Context(), "203.0.113.7", ch.Value, ch.Value)
	if time.Since(start) > time.Second {
		t.Error("verification did not respect the oracle timeout")
	}

	if res.Valid || res.Reason != ReasonDecryptFailed {
		t.Errorf("wanted %q, got: %+v", ReasonDecryptFailed, res)
	}
}

func TestVerifyConcurrentDuplicates(t *testing.T) {
	k := NewKeeper(KeeperOptions{})
	v := newVerifier(t, k, oracletest.Echo())

	ch, err := k.Issue("203.0.113.7", 0)
	if err != nil {
		t.Fatal(err)
	}

	results := make(chan Result, 8)
	for i := 0; i < 8; i++ {
		go func() {
			results <- v.Verify(t.Context(), "203.0.113.7", ch.Value, ch.Value)
		}()
	}

	wins := 0
	for i := 0; i < 8; i++ {
		if res := <-results; res.Valid {
			wins++
		}
	}

	if wins != 1 {
		t.Errorf("wanted exactly one duplicate submission to win, got: %d", wins)
	}
}
