package retry_test

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"snapshot-matcher/internal/retry"
	"testing"
)

type temporaryError struct{}

func (temporaryError) Error() string   { return "temporary" }
func (temporaryError) Temporary() bool { return true }

func TestParsePolicy(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"", "5xx", "gateway-error,connect-failure", "retriable-4xx, 429"} {
		if _, err := retry.ParsePolicy(s); err != nil {
			t.Errorf("ParsePolicy(%q) returned error: %v", s, err)
		}
	}
	for _, s := range []string{"fake", "5xx,unknown", "42", "600"} {
		if _, err := retry.ParsePolicy(s); err == nil {
			t.Errorf("ParsePolicy(%q) expected error", s)
		}
	}
}

func TestPolicyRetryResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		conditions string
		code       int
		want       bool
	}{
		{"", http.StatusServiceUnavailable, false},
		{"5xx", http.StatusInternalServerError, true},
		{"5xx", http.StatusNotFound, false},
		{"gateway-error", http.StatusBadGateway, true},
		{"gateway-error", http.StatusGatewayTimeout, true},
		{"gateway-error", http.StatusInternalServerError, false},
		{"retriable-4xx", http.StatusConflict, true},
		{"retriable-4xx", http.StatusBadRequest, false},
		{"429", http.StatusTooManyRequests, true},
		{"429", http.StatusOK, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%d", tt.conditions, tt.code), func(t *testing.T) {
			policy, err := retry.ParsePolicy(tt.conditions)
			if err != nil {
				t.Fatal(err)
			}
			if got := policy.RetryResponse(&http.Response{StatusCode: tt.code}); got != tt.want {
				t.Errorf("RetryResponse(%d) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestPolicyRetryError(t *testing.T) {
	t.Parallel()

	connect, _ := retry.ParsePolicy("connect-failure")
	gateway, _ := retry.ParsePolicy("gateway-error")

	if !connect.RetryError(temporaryError{}) {
		t.Error("temporary error should be retried on connect-failure")
	}
	if !connect.RetryError(fmt.Errorf("read: %w", io.EOF)) {
		t.Error("wrapped EOF should be retried on connect-failure")
	}
	if connect.RetryError(errors.New("permanent")) {
		t.Error("permanent error should not be retried")
	}
	if gateway.RetryError(temporaryError{}) {
		t.Error("gateway-error alone should not retry transport errors")
	}
	if !retry.DefaultPolicy().RetryResponse(&http.Response{StatusCode: http.StatusTooManyRequests}) {
		t.Error("default policy should retry 429")
	}
}
