package provider

import (
	"errors"
	"testing"
)

func TestClassifyHTTPStatus(t *testing.T) {
	base := errors.New("boom")

	tests := []struct {
		name   string
		status int
		check  func(error) bool
	}{
		{"429 is rate limited", 429, IsRateLimited},
		{"500 is transient", 500, IsTransient},
		{"0 (no status) is transient", 0, IsTransient},
		{"404 is permanent", 404, IsPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyHTTPStatus(tt.status, base)
			if !tt.check(got) {
				t.Errorf("ClassifyHTTPStatus(%d) = %v, not classified as expected", tt.status, got)
			}
			if !errors.Is(got, base) {
				t.Errorf("ClassifyHTTPStatus(%d) lost the underlying error", tt.status)
			}
		})
	}
}
