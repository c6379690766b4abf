package eventbus

import (
	"errors"
	"fmt"
	"testing"
)

func TestPermanent(t *testing.T) {
	cause := errors.New("bad payload")

	tests := []struct {
		name          string
		err           error
		wantPermanent bool
	}{
		{name: "nil", err: nil},
		{name: "plain error", err: cause},
		{name: "permanent", err: Permanent(cause), wantPermanent: true},
		{name: "wrapped permanent", err: fmt.Errorf("handle: %w", Permanent(cause)), wantPermanent: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPermanent(tt.err); got != tt.wantPermanent {
				t.Errorf("IsPermanent() = %v, want %v", got, tt.wantPermanent)
			}
		})
	}

	if Permanent(nil) != nil {
		t.Error("Permanent(nil) must be nil")
	}
	wrapped := Permanent(cause)
	if !errors.Is(wrapped, cause) || wrapped.Error() != cause.Error() {
		t.Errorf("Permanent must keep the cause, got %v", wrapped)
	}
}
