package domain

import (
	"strings"
	"testing"
)

func TestAssignmentValidate(t *testing.T) {
	ids := []string{"a", "b", "c"}
	cases := []struct {
		name    string
		in      Assignment
		wantErr string
	}{
		{"valid cycle", Assignment{"a": "b", "b": "c", "c": "a"}, ""},
		{"missing giver", Assignment{"a": "b", "b": "a"}, "covers 2"},
		{"fixed point", Assignment{"a": "a", "b": "c", "c": "b"}, "themselves"},
		{"unknown target", Assignment{"a": "b", "b": "x", "c": "a"}, "unknown"},
		{"double receive", Assignment{"a": "b", "b": "a", "c": "a"}, "receives from both"},
		{"foreign giver", Assignment{"a": "b", "b": "a", "x": "c"}, "no recipient"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.in.Validate(ids)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestAssignmentFromProfilesSkipsUnassigned(t *testing.T) {
	b := "b"
	empty := ""
	got := AssignmentFromProfiles([]Profile{
		{Base: Base{ID: "a"}, AssignedTargetID: &b},
		{Base: Base{ID: "b"}},
		{Base: Base{ID: "c"}, AssignedTargetID: &empty},
	})
	if len(got) != 1 || got["a"] != "b" {
		t.Fatalf("unexpected assignment %v", got)
	}
	if givers := got.Givers(); len(givers) != 1 || givers[0] != "a" {
		t.Fatalf("unexpected givers %v", givers)
	}
}
