package main

import (
	"testing"
)

func TestParseLevelAssignments(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		want    map[string]string
		wantErr bool
	}{
		{
			name:  "nil input",
			input: nil,
			want:  nil,
		},
		{
			name:  "single assignment",
			input: []string{"maintenance=auto_notice"},
			want:  map[string]string{"maintenance": "auto_notice"},
		},
		{
			name:  "multiple assignments",
			input: []string{"maintenance=auto_notice", "compliance=suggest"},
			want:  map[string]string{"maintenance": "auto_notice", "compliance": "suggest"},
		},
		{
			name:  "whitespace trimmed",
			input: []string{" rent_collection = draft_approve "},
			want:  map[string]string{"rent_collection": "draft_approve"},
		},
		{
			name:    "missing separator",
			input:   []string{"maintenance"},
			wantErr: true,
		},
		{
			name:    "empty category",
			input:   []string{"=suggest"},
			wantErr: true,
		},
		{
			name:    "empty level",
			input:   []string{"maintenance="},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLevelAssignments(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseLevelAssignments(%v) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("parseLevelAssignments(%v) = %v, want %v", tt.input, got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("parseLevelAssignments(%v)[%q] = %q, want %q", tt.input, k, got[k], v)
				}
			}
		})
	}
}
