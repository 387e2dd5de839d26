package hellosign

import "testing"

func TestVerifier(t *testing.T) {
	v := NewVerifier("api_key")
	hash := Sign("api_key", "1700000000", "signature_request_signed")

	if !v.Verify("1700000000", "signature_request_signed", hash) {
		t.Error("expected valid event hash")
	}
	if v.Verify("1700000001", "signature_request_signed", hash) {
		t.Error("expected mismatch on different time")
	}
	if v.Verify("1700000000", "signature_request_signed", "") {
		t.Error("expected missing hash to fail")
	}
	if NewVerifier("").Verify("1700000000", "signature_request_signed", Sign("", "1700000000", "signature_request_signed")) {
		t.Error("expected unset key to fail")
	}
	var nilVerifier *Verifier
	if nilVerifier.Verify("1", "e", "h") {
		t.Error("expected nil verifier to fail")
	}
}
