package crypto

import (
	"testing"
	"time"
)

func TestHMACVerifyRoundTrip(t *testing.T) {
	auth := &HMACAuth{Secret: "test-secret"}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	headers := auth.HeadersAt("0xadmin", "POST", "/api/admin/ownership", `{"new_owner":"0x1"}`, now.Unix())

	err := auth.Verify("POST", "/api/admin/ownership", `{"new_owner":"0x1"}`,
		headers[HeaderAdminTimestamp], headers[HeaderAdminSignature], now)
	if err != nil {
		t.Fatalf("Verify rejected a fresh signed request: %v", err)
	}
}

func TestHMACVerifyRejectsTampering(t *testing.T) {
	auth := &HMACAuth{Secret: "test-secret"}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	headers := auth.HeadersAt("0xadmin", "POST", "/api/admin/ownership", "body", now.Unix())
	ts := headers[HeaderAdminTimestamp]
	sig := headers[HeaderAdminSignature]

	tests := []struct {
		name               string
		method, path, body string
	}{
		{"different method", "PUT", "/api/admin/ownership", "body"},
		{"different path", "POST", "/api/admin/implementations/721", "body"},
		{"different body", "POST", "/api/admin/ownership", "tampered"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := auth.Verify(tt.method, tt.path, tt.body, ts, sig, now); err == nil {
				t.Fatal("Verify accepted a tampered request")
			}
		})
	}
}

func TestHMACVerifyRejectsWrongSecret(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	signer := &HMACAuth{Secret: "secret-a"}
	verifier := &HMACAuth{Secret: "secret-b"}

	headers := signer.HeadersAt("0xadmin", "GET", "/api/factory", "", now.Unix())
	if err := verifier.Verify("GET", "/api/factory", "",
		headers[HeaderAdminTimestamp], headers[HeaderAdminSignature], now); err == nil {
		t.Fatal("Verify accepted a signature from a different secret")
	}
}

func TestHMACVerifyRejectsStaleTimestamp(t *testing.T) {
	auth := &HMACAuth{Secret: "test-secret"}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	headers := auth.HeadersAt("0xadmin", "GET", "/api/factory", "", now.Unix())
	ts := headers[HeaderAdminTimestamp]
	sig := headers[HeaderAdminSignature]

	// Within the skew window in both directions.
	if err := auth.Verify("GET", "/api/factory", "", ts, sig, now.Add(29*time.Second)); err != nil {
		t.Fatalf("Verify rejected a request inside the skew window: %v", err)
	}
	if err := auth.Verify("GET", "/api/factory", "", ts, sig, now.Add(-29*time.Second)); err != nil {
		t.Fatalf("Verify rejected a slightly future timestamp: %v", err)
	}

	// Outside the window.
	if err := auth.Verify("GET", "/api/factory", "", ts, sig, now.Add(31*time.Second)); err == nil {
		t.Fatal("Verify accepted a stale timestamp")
	}
	if err := auth.Verify("GET", "/api/factory", "", ts, sig, now.Add(-31*time.Second)); err == nil {
		t.Fatal("Verify accepted a far-future timestamp")
	}
}

func TestHMACVerifyRejectsMalformedTimestamp(t *testing.T) {
	auth := &HMACAuth{Secret: "test-secret"}
	if err := auth.Verify("GET", "/api/factory", "", "not-a-number", "sig", time.Now()); err == nil {
		t.Fatal("Verify accepted a malformed timestamp")
	}
}
