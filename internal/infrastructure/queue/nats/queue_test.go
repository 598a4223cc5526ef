package nats

import (
	"testing"
	"time"
)

func TestEventRoundTrip(t *testing.T) {
	published := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	payload, err := encodeEvent("abc123", published)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	hash, at := decodeEvent(payload)
	if hash != "abc123" {
		t.Fatalf("hash %q", hash)
	}
	if !at.Equal(published) {
		t.Fatalf("published at %v, want %v", at, published)
	}
}

func TestDecodeEventAcceptsBareHash(t *testing.T) {
	hash, at := decodeEvent([]byte("deadbeefcafe"))
	if hash != "deadbeefcafe" {
		t.Fatalf("hash %q", hash)
	}
	if !at.IsZero() {
		t.Fatalf("bare hash must carry no timestamp, got %v", at)
	}
}

func TestDecodeEventRejectsEnvelopeWithoutHash(t *testing.T) {
	// A JSON envelope missing its hash falls back to the raw payload so a
	// malformed producer is at least visible in the handler error log.
	raw := []byte(`{"published_at":"2026-08-29T12:00:00Z"}`)
	hash, at := decodeEvent(raw)
	if hash != string(raw) {
		t.Fatalf("hash %q", hash)
	}
	if !at.IsZero() {
		t.Fatalf("timestamp %v, want zero", at)
	}
}
