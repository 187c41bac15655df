package core

import (
	"errors"
	"testing"

	pkgerrors "github.com/pkg/errors"
)

func TestBoundary(t *testing.T) {
	errDomain := errors.New("domain")
	errStorage := errors.New("connection reset by peer")
	transient := NewTransientError(errStorage)
	validation := NewValidationError(nil, FieldError{Field: "title", Error: "required"})

	tests := []struct {
		name          string
		err           error
		wantTransient bool
		wantSame      bool
	}{
		{name: "nil", err: nil, wantSame: true},
		{name: "domain error", err: errDomain, wantSame: true},
		{name: "wrapped domain error", err: pkgerrors.Wrap(errDomain, "ctx"), wantSame: true},
		{name: "forbidden", err: ErrForbidden, wantSame: true},
		{name: "validation error", err: validation, wantSame: true},
		{name: "already transient", err: transient, wantTransient: true, wantSame: true},
		{name: "storage error", err: errStorage, wantTransient: true},
		{name: "wrapped storage error", err: pkgerrors.Wrap(errStorage, "querying"), wantTransient: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Boundary(tt.err, errDomain)
			if IsTransient(got) != tt.wantTransient {
				t.Errorf("IsTransient(Boundary()) = %v, want %v", IsTransient(got), tt.wantTransient)
			}
			if tt.wantSame && got != tt.err {
				t.Errorf("Boundary() = %v, want %v", got, tt.err)
			}
			if tt.wantTransient && !errors.Is(got, errStorage) {
				t.Errorf("Boundary() = %v, does not wrap %v", got, errStorage)
			}
		})
	}
}

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "wrapped error", err: NewValidationError(errors.New("bad input")), want: "bad input"},
		{name: "field error", err: NewValidationError(nil, FieldError{Field: "email", Error: "invalid"}), want: "email: invalid"},
		{name: "empty", err: NewValidationError(nil), want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}
