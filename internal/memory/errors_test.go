package memory

import (
	"errors"
	"testing"
)

func TestErrorIsComparesByKind(t *testing.T) {
	err := &Error{Kind: KindProcessEnded, Addr: 0x1234, Err: errors.New("wrapped")}
	if !errors.Is(err, ProcessEnded) {
		t.Error("errors.Is should match on Kind alone, ignoring Addr/Err")
	}
	if errors.Is(err, PermissionDenied) {
		t.Error("errors.Is should not match a different Kind")
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("eio")
	err := &Error{Kind: KindOther, Err: cause}
	if !errors.Is(err, cause) {
		t.Error("Unwrap should expose the underlying cause")
	}
}

func TestIsInvalidAddress(t *testing.T) {
	err := addrError(KindInvalidAddress, 0x4000)
	if !IsInvalidAddress(err, 0x4000) {
		t.Error("IsInvalidAddress should match same Kind and Addr")
	}
	if IsInvalidAddress(err, 0x5000) {
		t.Error("IsInvalidAddress should not match a different Addr")
	}
	if IsInvalidAddress(ProcessEnded, 0x4000) {
		t.Error("IsInvalidAddress should not match a different Kind")
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		err  *Error
		want string
	}{
		{ProcessEnded, "process isn't running"},
		{&Error{Kind: KindTornRead, Msg: "cfp outside stack span"}, "torn read: cfp outside stack span"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}
