package cmd

import (
	"context"
	"testing"

	"github.com/pipwatch/pipwatch/internal/resolver"
)

func TestPadToWidth(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		width    int
		expected string
	}{
		{
			name:     "no padding when width is 0",
			input:    "Pause",
			width:    0,
			expected: "Pause",
		},
		{
			name:     "no padding when width is negative",
			input:    "Pause",
			width:    -1,
			expected: "Pause",
		},
		{
			name:     "pad short text with spaces",
			input:    "Play",
			width:    10,
			expected: "Play      ",
		},
		{
			name:     "exact width unchanged",
			input:    "Pause",
			width:    5,
			expected: "Pause",
		},
		{
			name:     "truncate long text with ellipsis",
			input:    "A very long custom action label",
			width:    20,
			expected: "A very long custo...",
		},
		{
			name:     "handle emoji correctly",
			input:    "▶ Play",
			width:    10,
			expected: "▶ Play    ",
		},
		{
			name:     "empty string padding",
			input:    "",
			width:    5,
			expected: "     ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := padToWidth(tt.input, tt.width)
			if got != tt.expected {
				t.Errorf("padToWidth(%q, %d) = %q, want %q", tt.input, tt.width, got, tt.expected)
			}
		})
	}
}

func TestFormatAction(t *testing.T) {
	action := resolver.MediaAction{
		Kind:     resolver.KindPause,
		Label:    "Pause",
		IconName: "media-playback-pause",
		Trigger:  func(ctx context.Context) error { return nil },
	}

	tests := []struct {
		name     string
		template string
		expected string
	}{
		{
			name:     "default label template",
			template: "{{.Label}}",
			expected: "Pause",
		},
		{
			name:     "kind and icon",
			template: "{{.Kind}} ({{.IconName}})",
			expected: "pause (media-playback-pause)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := formatAction(action, tt.template)
			if err != nil {
				t.Fatalf("formatAction: %v", err)
			}
			if got != tt.expected {
				t.Errorf("formatAction(%q) = %q, want %q", tt.template, got, tt.expected)
			}
		})
	}
}

func TestFormatAction_InvalidTemplate(t *testing.T) {
	action := resolver.MediaAction{Kind: resolver.KindPlay, Label: "Play"}

	if _, err := formatAction(action, "{{.Label"); err == nil {
		t.Error("expected error for invalid template")
	}
}
