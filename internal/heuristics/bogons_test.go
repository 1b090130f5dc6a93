package heuristics

import "testing"

func TestBogonTable_OverlapsReservedRanges(t *testing.T) {
	tbl := NewBogonTable()
	cases := map[string]bool{
		"10.0.0.0/8":     true,
		"10.1.2.0/24":    true,
		"192.168.1.0/24": true,
		"8.8.8.0/24":     false,
		"1.1.1.0/24":     false,
	}
	for prefix, want := range cases {
		if got := tbl.Overlaps(prefix); got != want {
			t.Errorf("Overlaps(%q) = %v, want %v", prefix, got, want)
		}
	}
}

func TestBogonTable_MalformedPrefixDoesNotTrigger(t *testing.T) {
	tbl := NewBogonTable()
	if tbl.Overlaps("not-a-prefix") {
		t.Error("expected malformed prefix to not overlap")
	}
}

func TestIsBogonASN(t *testing.T) {
	if is, _, _ := IsBogonASN(64512); !is {
		t.Error("expected 64512 to be a bogon ASN")
	}
	if is, _, _ := IsBogonASN(174); is {
		t.Error("expected 174 (Cogent) to not be a bogon ASN")
	}
}
