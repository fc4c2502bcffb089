// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package halcyon

import "testing"

func TestLevelField(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelTrace, "TRACE "},
		{LevelDebug, "DEBUG "},
		{LevelInfo, "INFO  "},
		{LevelWarn, "WARN  "},
		{LevelError, "ERROR "},
		{LevelFatal, "FATAL "},
	}
	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			got := tt.level.field()
			if got != tt.want {
				t.Fatalf("field() = %q, want %q", got, tt.want)
			}
			if len(got) != 6 {
				t.Fatalf("field() length = %d, want 6", len(got))
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
		ok   bool
	}{
		{"info", LevelInfo, true},
		{"INFO", LevelInfo, true},
		{"warning", LevelWarn, true},
		{"FATAL", LevelFatal, true},
		{"nonsense", LevelInfo, false},
	}
	for _, tt := range tests {
		got, ok := ParseLevel(tt.in)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Fatalf("ParseLevel(%q) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
