package main

import "testing"

func TestValidatorCollectsFirstErrorPerField(t *testing.T) {
	v := newValidator()
	v.checkCond(false, "title", "must be provided")
	v.checkCond(false, "title", "must be atmost 500 characters")
	if !v.hasErrors() {
		t.Fatal("expected errors")
	}
	if got := v.message(); got != "title: must be provided" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestValidatorEmail(t *testing.T) {
	valid := []string{"a@b.co", "user.name+tag@example.com"}
	invalid := []string{"", "plain", "@no-local.com", "user@"}
	for _, email := range valid {
		v := newValidator()
		v.checkEmail(email)
		if v.hasErrors() {
			t.Fatalf("expected %q to be valid: %s", email, v.message())
		}
	}
	for _, email := range invalid {
		v := newValidator()
		v.checkEmail(email)
		if !v.hasErrors() {
			t.Fatalf("expected %q to be invalid", email)
		}
	}
}

func TestValidatorPassword(t *testing.T) {
	v := newValidator()
	v.checkPassword("short")
	if !v.hasErrors() {
		t.Fatal("expected short password to be rejected")
	}
	v = newValidator()
	v.checkPassword("long enough password")
	if v.hasErrors() {
		t.Fatalf("unexpected errors: %s", v.message())
	}
}

func TestValidatorMessageIsDeterministic(t *testing.T) {
	v := newValidator()
	v.checkCond(false, "name", "must be provided")
	v.checkCond(false, "email", "must be provided")
	want := "email: must be provided; name: must be provided"
	for i := 0; i < 10; i++ {
		if got := v.message(); got != want {
			t.Fatalf("unexpected message %q", got)
		}
	}
}
