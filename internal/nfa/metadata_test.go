package nfa

import (
	"encoding/base64"
	"encoding/json"
	"testing"
)

func encodeMetadata(t *testing.T, doc interface{}) string {
	t.Helper()
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal metadata: %v", err)
	}
	return dataURIPrefix + base64.StdEncoding.EncodeToString(data)
}

func TestDecodeTokenURI(t *testing.T) {
	uri := encodeMetadata(t, map[string]interface{}{
		"name":        "NFA: Sparky",
		"description": "a test agent",
		"attributes": []map[string]interface{}{
			{"trait_type": "Level", "value": 3},
			{"trait_type": "Stage", "value": "Veteran"},
			{"trait_type": "Capabilities", "value": "search,code"},
			{"trait_type": "Version", "value": "2.1.0"},
		},
	})

	meta, ok := DecodeTokenURI(uri)
	if !ok {
		t.Fatalf("expected decode to succeed")
	}

	if meta.DisplayName() != "Sparky" {
		t.Fatalf("display name mismatch: %q", meta.DisplayName())
	}
	if meta.Description != "a test agent" {
		t.Fatalf("description mismatch: %q", meta.Description)
	}
	if got := meta.IntAttr("Level", 1); got != 3 {
		t.Fatalf("level mismatch: %d", got)
	}
	if got := meta.StringAttr("Stage", "Rookie"); got != "Veteran" {
		t.Fatalf("stage mismatch: %q", got)
	}
	if got := meta.StringAttr("Capabilities", ""); got != "search,code" {
		t.Fatalf("capabilities mismatch: %q", got)
	}
	if got := meta.StringAttr("Version", "1.0.0"); got != "2.1.0" {
		t.Fatalf("version mismatch: %q", got)
	}
}

func TestDecodeTokenURIMalformed(t *testing.T) {
	cases := []string{
		"",
		"https://example.com/7.json",
		dataURIPrefix + "!!!not-base64!!!",
		dataURIPrefix + base64.StdEncoding.EncodeToString([]byte("not json")),
	}
	for _, uri := range cases {
		if _, ok := DecodeTokenURI(uri); ok {
			t.Fatalf("expected decode failure for %q", uri)
		}
	}
}

func TestAttrFallbacks(t *testing.T) {
	uri := encodeMetadata(t, map[string]interface{}{
		"name":       "Bare",
		"attributes": []map[string]interface{}{},
	})

	meta, ok := DecodeTokenURI(uri)
	if !ok {
		t.Fatalf("expected decode to succeed")
	}

	if got := meta.IntAttr("Level", 1); got != 1 {
		t.Fatalf("level fallback mismatch: %d", got)
	}
	if got := meta.StringAttr("Stage", "Rookie"); got != "Rookie" {
		t.Fatalf("stage fallback mismatch: %q", got)
	}
	if meta.DisplayName() != "Bare" {
		t.Fatalf("unprefixed name should pass through: %q", meta.DisplayName())
	}
}

func TestAttrFirstMatchWins(t *testing.T) {
	uri := encodeMetadata(t, map[string]interface{}{
		"name": "Dup",
		"attributes": []map[string]interface{}{
			{"trait_type": "Level", "value": "5"},
			{"trait_type": "Level", "value": 9},
		},
	})

	meta, ok := DecodeTokenURI(uri)
	if !ok {
		t.Fatalf("expected decode to succeed")
	}
	if got := meta.IntAttr("Level", 1); got != 5 {
		t.Fatalf("first match should win: %d", got)
	}
}
