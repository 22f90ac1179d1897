package domain

import (
	"encoding/json"
	"testing"
)

func TestProfileCloneIsDeep(t *testing.T) {
	target := "bia"
	orig := Profile{
		Base:             Base{ID: "ana"},
		QuizAnswers:      map[int]string{0: "hiking"},
		Suggestion:       &GiftSuggestion{GiftName: "Mug"},
		AssignedTargetID: &target,
	}
	cp := orig.Clone()
	cp.QuizAnswers[0] = "sleeping"
	cp.Suggestion.GiftName = "Socks"
	*cp.AssignedTargetID = "caio"
	if orig.QuizAnswers[0] != "hiking" || orig.Suggestion.GiftName != "Mug" || orig.Target() != "bia" {
		t.Fatalf("clone shares state with original: %+v", orig)
	}
}

func TestProfileTargetHelpers(t *testing.T) {
	var p Profile
	if p.HasTarget() || p.Target() != "" {
		t.Fatalf("zero profile must not have a target")
	}
	empty := ""
	p.AssignedTargetID = &empty
	if p.HasTarget() {
		t.Fatalf("empty target id must not count as assigned")
	}
	p.Status = StatusReady
	if !p.IsReady() {
		t.Fatalf("expected ready")
	}
}

func TestSnapshotJSONKeepsQuizAnswerKeys(t *testing.T) {
	snap := Snapshot{Revision: 3, Profiles: map[string]Profile{
		"ana": {Base: Base{ID: "ana"}, Status: StatusReady, QuizAnswers: map[int]string{0: "hiking", 9: "cozy"}},
		"bia": {Base: Base{ID: "bia"}, Status: StatusPending},
	}}
	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Snapshot
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Profiles["ana"].QuizAnswers[9] != "cozy" || decoded.Revision != 3 {
		t.Fatalf("unexpected decoded snapshot %+v", decoded)
	}
	sorted := decoded.Sorted()
	if len(sorted) != 2 || sorted[0].ID != "ana" || sorted[1].ID != "bia" {
		t.Fatalf("expected id ordering, got %+v", sorted)
	}
}

func TestProfileChangeExtractsTypedValues(t *testing.T) {
	before, after := ProfileChange(Change{Entity: EntityProfile, Before: Profile{Base: Base{ID: "a"}}, After: Profile{Base: Base{ID: "a"}, Status: StatusReady}})
	if before == nil || after == nil || !after.IsReady() {
		t.Fatalf("expected typed before/after")
	}
	if b, a := ProfileChange(Change{Entity: "other"}); b != nil || a != nil {
		t.Fatalf("expected nil for foreign entity")
	}
	if b, a := ProfileChange(Change{Entity: EntityProfile, After: Profile{}}); b != nil || a == nil {
		t.Fatalf("create change has no before value")
	}
}
