package phone

import "testing"

func TestNormalizeE164Belgian(t *testing.T) {
	got := NormalizeE164("0470 12 34 56")
	if got != "+32470123456" {
		t.Fatalf("expected +32470123456, got %q", got)
	}
}

func TestNormalizeE164KeepsInternationalPrefix(t *testing.T) {
	got := NormalizeE164("+31 6 12345678")
	if got != "+31612345678" {
		t.Fatalf("expected +31612345678, got %q", got)
	}
}

func TestNormalizeE164ReturnsTrimmedInputWhenInvalid(t *testing.T) {
	got := NormalizeE164("  n/a ")
	if got != "n/a" {
		t.Fatalf("expected trimmed input, got %q", got)
	}
}

func TestIsMobile(t *testing.T) {
	if !IsMobile("0470123456") {
		t.Fatalf("expected Belgian 047x number to be mobile")
	}
	if IsMobile("n/a") {
		t.Fatalf("expected garbage not to be mobile")
	}
}
