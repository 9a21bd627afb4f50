package ferr

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	e := New(Transport, "fetch.download", "ripgrep", inner)
	if !errors.Is(e, inner) {
		t.Fatal("expected errors.Is to unwrap to inner error")
	}
}

func TestIsKind(t *testing.T) {
	e := New(Integrity, "sign.verify", "fd", nil)
	if !Is(e, Integrity) {
		t.Fatal("expected Is to match Integrity")
	}
	if Is(e, Transport) {
		t.Fatal("expected Is to not match Transport")
	}
}

func TestIsThroughWrap(t *testing.T) {
	e := New(Candidate, "fetch.find", "fd", nil)
	wrapped := fmt.Errorf("wrapped: %w", e)
	if !Is(wrapped, Candidate) {
		t.Fatal("expected Is to see through fmt.Errorf wrapping")
	}
}

func TestErrorMessageShapes(t *testing.T) {
	cases := []struct {
		err  *Error
		want string
	}{
		{New(Configuration, "parse", "", nil), "configuration: parse"},
		{New(Resolution, "resolve", "fd", nil), "resolution: resolve (fd)"},
	}
	for _, c := range cases {
		if got := c.err.Error(); got != c.want {
			t.Errorf("got %q want %q", got, c.want)
		}
	}
}
