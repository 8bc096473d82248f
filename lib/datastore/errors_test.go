package datastore

import (
	"errors"
	"fmt"
	"testing"
)

type codedErr struct{ code int }

func (e codedErr) Error() string       { return "coded" }
func (e codedErr) HTTPStatusCode() int { return e.code }

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"plain", errors.New("boom"), 500},
		{"status", WithStatus(503, errors.New("unavailable")), 503},
		{"wrapped status", fmt.Errorf("get: %w", WithStatus(409, errors.New("conflict"))), 409},
		{"http coder", fmt.Errorf("put: %w", codedErr{code: 429}), 429},
		{"zero code", WithStatus(0, errors.New("zero")), 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusOf(tt.err); got != tt.want {
				t.Errorf("StatusOf() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestWithStatusKeepsMessage(t *testing.T) {
	err := WithStatus(503, errors.New("backend unavailable"))
	if err.Error() != "backend unavailable" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if WithStatus(500, nil) != nil {
		t.Error("WithStatus(nil) should be nil")
	}
}

func TestValidateKey(t *testing.T) {
	if err := ValidateKey(IDKey("Book", 1)); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	for _, k := range []*Key{nil, IDKey("", 1), IncompleteKey("Book")} {
		err := ValidateKey(k)
		if err == nil {
			t.Errorf("expected error for key %v", k)
			continue
		}
		if StatusOf(err) != 400 {
			t.Errorf("expected status 400 for key %v, got %d", k, StatusOf(err))
		}
	}
}

func TestKeyString(t *testing.T) {
	if s := IDKey("Book", 42).String(); s != "Book(42)" {
		t.Errorf("unexpected key string %q", s)
	}
	if !IncompleteKey("Book").Incomplete() {
		t.Error("incomplete key reports complete")
	}
}
