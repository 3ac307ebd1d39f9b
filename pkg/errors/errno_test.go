package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"google.golang.org/grpc/codes"
)

func TestMakeCode(t *testing.T) {
	tests := []struct {
		service, category, sequence int
		want                        int
	}{
		{0, 0, 0, 0},
		{ServiceCommon, CategoryRequest, 1, 1001},
		{ServiceHelpdesk, CategoryResource, 2, 2004002},
		{ServiceHelpdesk, CategoryConflict, 1, 2005001},
		{99, 12, 999, 9912999},
	}
	for _, tt := range tests {
		if got := MakeCode(tt.service, tt.category, tt.sequence); got != tt.want {
			t.Errorf("MakeCode(%d, %d, %d) = %d, want %d", tt.service, tt.category, tt.sequence, got, tt.want)
		}
	}
}

func TestParseCode(t *testing.T) {
	svc, cat, seq := ParseCode(2004002)
	if svc != ServiceHelpdesk || cat != CategoryResource || seq != 2 {
		t.Errorf("ParseCode(2004002) = (%d, %d, %d), want (20, 4, 2)", svc, cat, seq)
	}
}

func TestHelpdeskErrnos(t *testing.T) {
	tests := []struct {
		errno    *Errno
		http     int
		grpcCode codes.Code
	}{
		{ErrSessionNotFound, http.StatusNotFound, codes.NotFound},
		{ErrIncidentNotFound, http.StatusNotFound, codes.NotFound},
		{ErrKBEntryNotFound, http.StatusNotFound, codes.NotFound},
		{ErrInvalidTransition, http.StatusConflict, codes.FailedPrecondition},
		{ErrValidation, http.StatusBadRequest, codes.InvalidArgument},
		{ErrUpstreamTimeout, http.StatusGatewayTimeout, codes.DeadlineExceeded},
		{ErrSyncInconsistency, http.StatusInternalServerError, codes.Internal},
	}
	for _, tt := range tests {
		if tt.errno.HTTPStatus() != tt.http {
			t.Errorf("%s: HTTPStatus() = %d, want %d", tt.errno.MessageEN, tt.errno.HTTPStatus(), tt.http)
		}
		if tt.errno.GRPCStatus() != tt.grpcCode {
			t.Errorf("%s: GRPCStatus() = %s, want %s", tt.errno.MessageEN, tt.errno.GRPCStatus(), tt.grpcCode)
		}
		if GetService(tt.errno.Code) != ServiceHelpdesk {
			t.Errorf("%s: service = %d, want %d", tt.errno.MessageEN, GetService(tt.errno.Code), ServiceHelpdesk)
		}
	}
}

func TestWithCausePreservesCode(t *testing.T) {
	cause := fmt.Errorf("dial tcp: connection refused")
	err := ErrVectorStore.WithCause(cause)

	if err.Code != ErrVectorStore.Code {
		t.Errorf("code = %d, want %d", err.Code, ErrVectorStore.Code)
	}
	if !errors.Is(err, ErrVectorStore) {
		t.Error("errors.Is(err, ErrVectorStore) = false, want true")
	}
	if errors.Unwrap(err) != cause {
		t.Error("Unwrap did not return the cause")
	}
	// The original must stay untouched.
	if ErrVectorStore.cause != nil {
		t.Error("WithCause mutated the registered errno")
	}
}

func TestWithMessage(t *testing.T) {
	err := ErrInvalidTransition.WithMessagef("cannot move %s -> %s", "open", "pending_info")
	if err.MessageEN != "cannot move open -> pending_info" {
		t.Errorf("MessageEN = %q", err.MessageEN)
	}
	if !errors.Is(err, ErrInvalidTransition) {
		t.Error("custom message broke code equality")
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil) != nil {
		t.Error("FromError(nil) should be nil")
	}
	if e := FromError(ErrSessionNotFound); e != ErrSessionNotFound {
		t.Error("FromError should pass an Errno through")
	}
	plain := fmt.Errorf("boom")
	e := FromError(plain)
	if e.Code != ErrInternal.Code {
		t.Errorf("plain errors should map to ErrInternal, got code %d", e.Code)
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("registering a duplicate code should panic")
		}
	}()
	Register(&Errno{Code: ErrSessionNotFound.Code, MessageEN: "dup"})
}

func TestBuilder(t *testing.T) {
	e := NewBuilder(80, CategoryRequest, 900).
		HTTP(http.StatusBadRequest).
		GRPC(codes.InvalidArgument).
		Message("Test error", "测试错误").
		MustBuild()

	if e.Code != MakeCode(80, CategoryRequest, 900) {
		t.Errorf("code = %d", e.Code)
	}
	if _, ok := Lookup(e.Code); !ok {
		t.Error("builder did not register the errno")
	}
	if _, err := NewBuilder(80, CategoryRequest, 900).Message("again", "").Build(); err == nil {
		t.Error("duplicate Build should fail")
	}
}

func TestBuilderPresets(t *testing.T) {
	e := NewNotFoundError(80, 901).Message("Widget not found", "部件不存在").MustBuild()
	if e.HTTP != http.StatusNotFound {
		t.Errorf("preset HTTP = %d", e.HTTP)
	}
	if e.GRPCCode != codes.NotFound {
		t.Errorf("preset GRPC = %v", e.GRPCCode)
	}

	e = NewTimeoutError(80, 902).Message("Widget timeout", "部件超时").MustBuild()
	if e.HTTP != http.StatusGatewayTimeout {
		t.Errorf("preset HTTP = %d", e.HTTP)
	}
}

func TestServiceRegistry(t *testing.T) {
	name, ok := GetServiceName(ServiceHelpdesk)
	if !ok || name != "helpdesk" {
		t.Errorf("GetServiceName(ServiceHelpdesk) = %q, %v", name, ok)
	}

	// 同名重复注册是幂等的
	RegisterService(ServiceHelpdesk, "helpdesk")

	defer func() {
		if recover() == nil {
			t.Error("conflicting service registration should panic")
		}
	}()
	RegisterService(ServiceHelpdesk, "other-service")
}

func TestClientServerClassification(t *testing.T) {
	if !IsClientError(ErrValidation.Code) {
		t.Error("ErrValidation should be a client error")
	}
	if !IsServerError(ErrSyncInconsistency.Code) {
		t.Error("ErrSyncInconsistency should be a server error")
	}
	if !IsSuccess(OK.Code) {
		t.Error("OK should be success")
	}
}
