package semerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Cache("write manifest", cause)

	if !errors.Is(err, cause) {
		t.Errorf("errors.Is should find wrapped cause")
	}
	if got := err.Error(); got == "" {
		t.Errorf("Error() should not be empty")
	}
}

func TestIsAndKindOf(t *testing.T) {
	err := fmt.Errorf("wrapping: %w", Query("not a read statement", nil))

	if !Is(err, KindQuery) {
		t.Errorf("Is(err, KindQuery) = false, want true")
	}
	if Is(err, KindCache) {
		t.Errorf("Is(err, KindCache) = true, want false")
	}

	k, ok := KindOf(err)
	if !ok || k != KindQuery {
		t.Errorf("KindOf(err) = %v, %v, want KindQuery, true", k, ok)
	}
}

func TestKindOfPlainError(t *testing.T) {
	if _, ok := KindOf(errors.New("plain")); ok {
		t.Errorf("KindOf(plain error) should report ok=false")
	}
}
