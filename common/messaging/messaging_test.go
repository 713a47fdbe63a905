package messaging

import (
	"testing"
)

func TestApplyPublishOptions(t *testing.T) {
	tests := []struct {
		name     string
		opts     []PublishOption
		expected map[string]string
	}{
		{
			name:     "no options",
			opts:     nil,
			expected: nil,
		},
		{
			name:     "single header",
			opts:     []PublishOption{WithHeader("X-Custom", "test")},
			expected: map[string]string{"X-Custom": "test"},
		},
		{
			name: "multiple headers",
			opts: []PublishOption{
				WithHeader("X-First", "first"),
				WithHeader("X-Second", "second"),
			},
			expected: map[string]string{"X-First": "first", "X-Second": "second"},
		},
		{
			name: "overwrite header",
			opts: []PublishOption{
				WithHeader("X-Key", "original"),
				WithHeader("X-Key", "updated"),
			},
			expected: map[string]string{"X-Key": "updated"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyPublishOptions(tt.opts...)
			if len(got.Headers) != len(tt.expected) {
				t.Fatalf("expected %d headers, got %d", len(tt.expected), len(got.Headers))
			}
			for k, v := range tt.expected {
				if got.Headers[k] != v {
					t.Errorf("header %q = %q, want %q", k, got.Headers[k], v)
				}
			}
		})
	}
}
