package apperr

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"
)

func TestIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("approve: %w", NotFound("request not found"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found")
	}
	if errors.Is(err, ErrValidation) {
		t.Fatalf("did not expect validation")
	}
	if KindOf(err) != KindNotFound {
		t.Fatalf("unexpected kind %s", KindOf(err))
	}
	if MessageOf(err) != "request not found" {
		t.Fatalf("unexpected message %q", MessageOf(err))
	}
}

func TestWrapKeepsCause(t *testing.T) {
	err := StorageIO(io.ErrUnexpectedEOF, "write raster")
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected cause in chain")
	}
	if !errors.Is(err, ErrStorageIO) {
		t.Fatalf("expected storage kind")
	}
}

func TestKindOfPlainError(t *testing.T) {
	err := errors.New("boom")
	if KindOf(err) != KindInternal {
		t.Fatalf("unexpected kind %s", KindOf(err))
	}
	if MessageOf(err) != "Unexpected server error" {
		t.Fatalf("unexpected message %q", MessageOf(err))
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:        http.StatusBadRequest,
		KindNotFound:          http.StatusNotFound,
		KindAuthorization:     http.StatusForbidden,
		KindInvalidTransition: http.StatusConflict,
		KindDuplicate:         http.StatusConflict,
		KindStorageIO:         http.StatusServiceUnavailable,
		KindInternal:          http.StatusInternalServerError,
	}
	for kind, want := range cases {
		if got := HTTPStatus(kind); got != want {
			t.Fatalf("%s: expected %d, got %d", kind, want, got)
		}
	}
}
