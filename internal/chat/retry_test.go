package chat

import (
	"errors"
	"testing"
)

func TestRetryableError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "rate limit", err: errors.New("rate limit exceeded"), want: true},
		{name: "quota exceeded", err: errors.New("quota exceeded for project"), want: true},
		{name: "429", err: errors.New("HTTP 429: Too Many Requests"), want: true},
		{name: "500", err: errors.New("HTTP 500 Internal Server Error"), want: true},
		{name: "503", err: errors.New("503 Service Unavailable"), want: true},
		{name: "connection reset", err: errors.New("connection reset by peer"), want: true},
		{name: "timeout", err: errors.New("request timeout"), want: true},
		{name: "case insensitive", err: errors.New("RATE LIMIT reached"), want: true},
		{name: "bad api key", err: errors.New("invalid API key"), want: false},
		{name: "400", err: errors.New("HTTP 400 Bad Request"), want: false},
		{name: "403", err: errors.New("HTTP 403 Forbidden"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := retryableError(tt.err); got != tt.want {
				t.Errorf("retryableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestContainsAny(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		s       string
		substrs []string
		want    bool
	}{
		{name: "empty string", s: "", substrs: []string{"foo"}, want: false},
		{name: "empty substrs", s: "foo bar", substrs: nil, want: false},
		{name: "first matches", s: "foo bar baz", substrs: []string{"foo", "qux"}, want: true},
		{name: "last matches", s: "foo bar baz", substrs: []string{"qux", "baz"}, want: true},
		{name: "case insensitive", s: "FOO BAR", substrs: []string{"foo"}, want: true},
		{name: "no match", s: "foo bar", substrs: []string{"qux"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := containsAny(tt.s, tt.substrs...); got != tt.want {
				t.Errorf("containsAny(%q, %v) = %v, want %v", tt.s, tt.substrs, got, tt.want)
			}
		})
	}
}
