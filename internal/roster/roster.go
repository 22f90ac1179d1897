// Package roster holds the compiled-in participant list and quiz questions.
package roster

import "secretsanta/pkg/domain"

const avatarBase = "https://api.dicebear.com/9.x/adventurer/svg?seed="

// Default returns the compiled-in participant roster.
func Default() domain.Roster {
	return domain.MustRoster(
		domain.Participant{ID: "ana", Name: "Ana", ContactChannel: "5511900000001", Avatar: avatarBase + "Ana"},
		domain.Participant{ID: "bruno", Name: "Bruno", ContactChannel: "5511900000002", Avatar: avatarBase + "Bruno"},
		domain.Participant{ID: "carla", Name: "Carla", ContactChannel: "5511900000003", Avatar: avatarBase + "Carla"},
		domain.Participant{ID: "diego", Name: "Diego", ContactChannel: "5511900000004", Avatar: avatarBase + "Diego"},
		domain.Participant{ID: "elisa", Name: "Elisa", ContactChannel: "5511900000005", Avatar: avatarBase + "Elisa"},
		domain.Participant{ID: "pipoca", Name: "Pipoca", Avatar: avatarBase + "Pipoca", Kind: domain.KindPet},
	)
}

// Questions is the ordered quiz. Answers are stored by index.
var Questions = [domain.QuizSize]string{
	"How do you like to spend a lazy Sunday?",
	"What is your favorite color?",
	"Do you prefer useful things or decorative things?",
	"Which movie or book genre do you enjoy most?",
	"Sweets, savory snacks, or drinks?",
	"Are you more of a homebody or an adventurer?",
	"What hobby could you talk about for hours?",
	"Would you rather receive an experience or an object?",
	"Which scent do you like best?",
	"Describe your style in one word.",
}

// Question returns the question text for index i, or "" when out of range.
func Question(i int) string {
	if i < 0 || i >= len(Questions) {
		return ""
	}
	return Questions[i]
}
