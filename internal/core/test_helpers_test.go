package core

import (
	"context"
	"testing"

	"secretsanta/pkg/domain"
)

func testRoster() Roster {
	return domain.MustRoster(
		domain.Participant{ID: "a", Name: "Alice", Avatar: "https://img/a"},
		domain.Participant{ID: "b", Name: "Beto", Avatar: "https://img/b"},
		domain.Participant{ID: "c", Name: "Cris", Avatar: "https://img/c"},
		domain.Participant{ID: "p", Name: "Paçoca", Avatar: "https://img/p", Kind: domain.KindPet},
	)
}

func submission(gift string) Submission {
	answers := make(map[int]string, domain.QuizSize)
	for i := 0; i < domain.QuizSize; i++ {
		answers[i] = "answer"
	}
	return Submission{ManualGift: gift, QuizAnswers: answers}
}

func mustSubmit(t *testing.T, svc *Service, ids ...string) {
	t.Helper()
	for _, id := range ids {
		if _, _, err := svc.SubmitProfile(context.Background(), id, submission("gift for "+id)); err != nil {
			t.Fatalf("submit %s: %v", id, err)
		}
	}
}

func strPtr(s string) *string { return &s }
