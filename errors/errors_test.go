package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestSyncError_Error(t *testing.T) {
	tests := []struct {
		name      string
		op        Operation
		component string
		code      ErrorCode
		err       error
		want      string
	}{
		{
			name:      "with component and code",
			op:        OpPersist,
			component: "store",
			code:      ErrCodeStorageFailure,
			err:       fmt.Errorf("failed to connect"),
			want:      "persist operation failed in store component [STORAGE_FAILURE]: failed to connect",
		},
		{
			name:      "with component no code",
			op:        OpDrain,
			component: "synckit",
			err:       fmt.Errorf("queue locked"),
			want:      "drain operation failed in synckit component: queue locked",
		},
		{
			name: "without component with code",
			op:   OpCreate,
			code: ErrCodeNetworkFailure,
			err:  fmt.Errorf("network error"),
			want: "create operation failed [NETWORK_FAILURE]: network error",
		},
		{
			name: "without cause",
			op:   OpClose,
			want: "close operation failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &SyncError{
				Op:        tt.op,
				Component: tt.component,
				Err:       tt.err,
				Code:      tt.code,
			}

			if got := e.Error(); got != tt.want {
				t.Errorf("SyncError.Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestE_BuildsStructuredError(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := E(Op("http.CreateProduct"), Component("transport/http"), KindTransient, cause, "post /products")

	var syncErr *SyncError
	if !errors.As(err, &syncErr) {
		t.Fatalf("expected *SyncError, got %T", err)
	}
	if syncErr.Op != "http.CreateProduct" {
		t.Errorf("unexpected op %q", syncErr.Op)
	}
	if syncErr.Component != "transport/http" {
		t.Errorf("unexpected component %q", syncErr.Component)
	}
	if !syncErr.Retryable {
		t.Error("transient errors must be retryable")
	}
	if !errors.Is(err, cause) {
		t.Error("cause must stay reachable through Unwrap")
	}
}

func TestE_InheritsKindFromWrappedError(t *testing.T) {
	inner := NewRejectedError(OpDelete, fmt.Errorf("product is referenced by an active order"))
	outer := E(Op("products.Delete"), Component("inventory"), inner)

	if got := KindOf(outer); got != KindRejected {
		t.Errorf("KindOf() = %s, want %s", got, KindRejected)
	}
	if IsRetryable(outer) {
		t.Error("rejections are not retryable")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"plain error", fmt.Errorf("boom"), KindInternal},
		{"validation", NewValidationError(OpValidate, fmt.Errorf("bad quantity")), KindInvalid},
		{"network", NewNetworkError(OpUpdate, fmt.Errorf("dial tcp")), KindTransient},
		{"wrapped by fmt", fmt.Errorf("outer: %w", E(KindNotFound, "missing")), KindNotFound},
		{"kindless wrapper", NewWithComponent(OpDrain, "synckit", E(KindUnsupported, "bad op")), KindUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %s, want %s", got, tt.want)
			}
			if !Is(tt.err, tt.want) {
				t.Errorf("Is(err, %s) = false", tt.want)
			}
		})
	}
}

func TestWrapOpComponent(t *testing.T) {
	if WrapOpComponent(nil, "sqlite.Save", "storage/sqlite") != nil {
		t.Fatal("nil error must stay nil")
	}

	err := WrapOpComponentKind(fmt.Errorf("disk full"), "sqlite.Save", "storage/sqlite", KindInternal)
	var syncErr *SyncError
	if !errors.As(err, &syncErr) {
		t.Fatalf("expected *SyncError, got %T", err)
	}
	if syncErr.Op != "sqlite.Save" || syncErr.Component != "storage/sqlite" || syncErr.Kind != KindInternal {
		t.Errorf("unexpected error fields: %+v", syncErr)
	}
}
