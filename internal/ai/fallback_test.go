package ai

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"google.golang.org/api/googleapi"
)

func TestIsQuotaExhausted(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"googleapi 429", &googleapi.Error{Code: http.StatusTooManyRequests}, true},
		{"wrapped googleapi 429", fmt.Errorf("send: %w", &googleapi.Error{Code: http.StatusTooManyRequests}), true},
		{"googleapi 500", &googleapi.Error{Code: http.StatusInternalServerError}, false},
		{"429 substring", errors.New("got HTTP 429 from upstream"), true},
		{"quota substring", errors.New("per-minute quota exceeded"), true},
		{"resource exhausted", errors.New("rpc error: code = RESOURCE_EXHAUSTED"), true},
		{"network timeout", errors.New("network timeout"), false},
	}
	for _, tc := range cases {
		if got := IsQuotaExhausted(tc.err); got != tc.want {
			t.Errorf("%s: IsQuotaExhausted = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestFallbackResponseDrawsFromPool(t *testing.T) {
	pool := make(map[string]bool, len(FallbackResponses))
	for _, f := range FallbackResponses {
		pool[f] = true
	}
	for i := 0; i < 50; i++ {
		if !pool[FallbackResponse()] {
			t.Fatalf("fallback response not from the pool")
		}
	}
}
