package challenge

import (
	"strings"
	"testing"
)

func TestValidateSubmission(t *testing.T) {
	goodChallenge := strings.Repeat("ab", 32)

	for _, tt := range []struct {
		name      string
		challenge any
		proof     any
		want      []string
	}{
		{
			name:      "both well formed",
			challenge: goodChallenge,
			proof:     "some-encrypted-blob",
			want:      nil,
		},
		{
			name:      "uppercase hex accepted",
			challenge: strings.ToUpper(goodChallenge),
			proof:     "blob",
			want:      nil,
		},
		{
			name:      "both missing",
			challenge: nil,
			proof:     nil,
			want:      []string{MsgChallengeRequired, MsgProofRequired},
		},
		{
			name:      "challenge wrong type",
			challenge: 42.0,
			proof:     "blob",
			want:      []string{MsgChallengeRequired},
		},
		{
			name:      "challenge too short",
			challenge: "abc123",
			proof:     "blob",
			want:      []string{MsgChallengeFormat},
		},
		{
			name:      "challenge non-hex",
			challenge: strings.Repeat("zz", 32),
			proof:     "blob",
			want:      []string{MsgChallengeFormat},
		},
		{
			name:      "proof empty",
			challenge: goodChallenge,
			proof:     "",
			want:      []string{MsgProofRequired},
		},
		{
			name:      "proof wrong type",
			challenge: goodChallenge,
			proof:     map[string]any{},
			want:      []string{MsgProofRequired},
		},
		{
			name:      "bad format and missing proof together",
			challenge: "abc",
			proof:     nil,
			want:      []string{MsgChallengeFormat, MsgProofRequired},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateSubmission(tt.challenge, tt.proof)

			if len(got) != len(tt.want) {
				t.Fatalf("wanted %d messages, got %d: %v", len(tt.want), len(got), got)
			}

			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("message %d: wanted %q, got %q", i, tt.want[i], got[i])
				}
			}
		})
	}
}
