package simdjson

import (
	"errors"
	"testing"
)

func TestCode_String(t *testing.T) {
	if got := SUCCESS.String(); got != "no error" {
		t.Errorf("SUCCESS.String() = %q", got)
	}
	if got := Code(-1).String(); got != "unknown error code" {
		t.Errorf("Code(-1).String() = %q", got)
	}
	if got := NUM_ERROR_CODES.String(); got != "unknown error code" {
		t.Errorf("NUM_ERROR_CODES.String() = %q", got)
	}
}

func TestParseError_Is(t *testing.T) {
	err := errc(CAPACITY)
	if !errors.Is(err, errc(CAPACITY)) {
		t.Errorf("errors.Is(err, errc(CAPACITY)) = false")
	}
	if errors.Is(err, errc(TAPE_ERROR)) {
		t.Errorf("errors.Is(err, errc(TAPE_ERROR)) = true, want false")
	}
	other := errc(CAPACITY)
	if !errors.Is(err, other) {
		t.Errorf("errors.Is(err, other *ParseError) with equal code = false")
	}
}

func TestParseError_Error(t *testing.T) {
	bare := errc(UTF8_ERROR)
	if bare.Error() != UTF8_ERROR.String() {
		t.Errorf("bare.Error() = %q, want %q", bare.Error(), UTF8_ERROR.String())
	}
	withMsg := errf(UTF8_ERROR, "while decoding field %q", "name")
	want := `while decoding field "name": ` + UTF8_ERROR.String()
	if withMsg.Error() != want {
		t.Errorf("withMsg.Error() = %q, want %q", withMsg.Error(), want)
	}
}
