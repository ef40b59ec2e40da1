package validator

import "testing"

type sample struct {
	Name  string `validate:"required"`
	Stage string `validate:"omitempty,stage"`
}

func TestRegisterOneOf(t *testing.T) {
	val := New()
	if err := val.RegisterOneOf("stage", func(v string) bool { return v == "cold" }); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := val.Struct(sample{Name: "Acme", Stage: "cold"}); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}

	err := val.Struct(sample{Stage: "frozen"})
	if err == nil {
		t.Fatalf("expected validation error")
	}
	details := Describe(err)
	if len(details) != 2 {
		t.Fatalf("expected 2 details, got %v", details)
	}
	if details[0] != "name: required" {
		t.Fatalf("expected name: required, got %q", details[0])
	}
}
