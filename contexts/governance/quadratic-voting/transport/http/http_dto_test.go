package http

import (
	"encoding/json"
	"testing"
)

func TestCastVoteRequestDecodesVoteType(t *testing.T) {
	cases := map[string]VoteTypeCode{
		`{"vote_type":"yes"}`: "yes",
		`{"vote_type":"0"}`:   "0",
		`{"vote_type":1}`:     "1",
		`{"vote_type":0}`:     "0",
		`{"vote_type":7}`:     "7",
		`{"vote_type":null}`:  "",
		`{}`:                  "",
	}
	for body, want := range cases {
		var req CastVoteRequest
		if err := json.Unmarshal([]byte(body), &req); err != nil {
			t.Fatalf("decode %s failed: %v", body, err)
		}
		if req.VoteType != want {
			t.Fatalf("decode %s: expected %q, got %q", body, want, req.VoteType)
		}
	}

	var req CastVoteRequest
	if err := json.Unmarshal([]byte(`{"vote_type":true}`), &req); err == nil {
		t.Fatalf("expected boolean vote_type to be rejected")
	}
}
