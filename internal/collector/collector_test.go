package collector

import (
	"encoding/json"
	"testing"
)

func TestAppendOrigin_EmptyPath(t *testing.T) {
	got := appendOrigin(nil, 65001)
	if len(got) != 1 || got[0] != 65001 {
		t.Fatalf("expected [65001], got %v", got)
	}
}

func TestAppendOrigin_OriginAlreadyLast(t *testing.T) {
	got := appendOrigin([]int64{65000, 174}, 174)
	if len(got) != 2 || got[1] != 174 {
		t.Fatalf("expected path unchanged, got %v", got)
	}
}

func TestAppendOrigin_AppendsMissingOrigin(t *testing.T) {
	got := appendOrigin([]int64{65000}, 174)
	if len(got) != 2 || got[0] != 65000 || got[1] != 174 {
		t.Fatalf("expected [65000 174], got %v", got)
	}
}

func TestIsIPv4(t *testing.T) {
	if !isIPv4("8.8.8.8") {
		t.Error("expected 8.8.8.8 to be IPv4")
	}
	if isIPv4("2001:db8::1") {
		t.Error("expected 2001:db8::1 to not be IPv4")
	}
}

func TestWithdrawalPrefix_BareString(t *testing.T) {
	raw := json.RawMessage(`"10.0.0.0/8"`)
	if got := withdrawalPrefix(raw); got != "10.0.0.0/8" {
		t.Errorf("got %q", got)
	}
}

func TestWithdrawalPrefix_Object(t *testing.T) {
	raw := json.RawMessage(`{"prefix":"10.0.0.0/8"}`)
	if got := withdrawalPrefix(raw); got != "10.0.0.0/8" {
		t.Errorf("got %q", got)
	}
}

func TestWithdrawalPrefix_Malformed(t *testing.T) {
	raw := json.RawMessage(`42`)
	if got := withdrawalPrefix(raw); got != "" {
		t.Errorf("expected empty string for malformed withdrawal, got %q", got)
	}
}
