// Package wizard models the profile editing flow as an explicit state machine:
// manual wish, quiz, suggestion generation, suggestion selection, review.
package wizard

import (
	"fmt"
	"strings"

	"secretsanta/internal/core"
	"secretsanta/pkg/domain"
)

// State names a wizard step.
type State string

// Wizard steps.
const (
	StateManual     State = "manual"
	StateQuiz       State = "quiz"
	StateGenerating State = "generating"
	StateSelection  State = "selection"
	StateReview     State = "review"
)

// TransitionError reports an event that the current state does not accept.
type TransitionError struct {
	From   State
	Event  string
	Reason string
}

func (e TransitionError) Error() string {
	return fmt.Sprintf("wizard: cannot %s from %s: %s", e.Event, e.From, e.Reason)
}

// Wizard holds the in-progress profile of one participant.
type Wizard struct {
	state      State
	manualGift string
	answers    map[int]string
	question   int
	candidates []domain.GiftSuggestion
	chosen     *domain.GiftSuggestion
	skipped    bool
}

// New starts a wizard. A ready profile resumes at review with its content;
// anything else starts at manual.
func New(existing *domain.Profile) *Wizard {
	w := &Wizard{state: StateManual, answers: make(map[int]string, domain.QuizSize)}
	if existing == nil || !existing.IsReady() {
		return w
	}
	w.state = StateReview
	w.manualGift = existing.ManualGift
	for k, v := range existing.QuizAnswers {
		w.answers[k] = v
	}
	w.question = domain.QuizSize
	if existing.Suggestion != nil {
		sg := *existing.Suggestion
		w.chosen = &sg
	} else {
		w.skipped = true
	}
	return w
}

// State returns the current step.
func (w *Wizard) State() State { return w.state }

// Question returns the index of the quiz question awaiting an answer.
func (w *Wizard) Question() int { return w.question }

// ManualGift returns the typed wish.
func (w *Wizard) ManualGift() string { return w.manualGift }

// Answers returns a copy of the answers given so far.
func (w *Wizard) Answers() map[int]string {
	out := make(map[int]string, len(w.answers))
	for k, v := range w.answers {
		out[k] = v
	}
	return out
}

// Candidates returns the suggestions offered in selection.
func (w *Wizard) Candidates() []domain.GiftSuggestion {
	return append([]domain.GiftSuggestion(nil), w.candidates...)
}

func (w *Wizard) reject(event, reason string) error {
	return TransitionError{From: w.state, Event: event, Reason: reason}
}

// SetManualGift records the free-text wish.
func (w *Wizard) SetManualGift(gift string) error {
	if w.state != StateManual {
		return w.reject("set manual gift", "only editable in manual")
	}
	w.manualGift = strings.TrimSpace(gift)
	return nil
}

// StartQuiz moves from manual to quiz once the wish is filled.
func (w *Wizard) StartQuiz() error {
	if w.state != StateManual {
		return w.reject("start quiz", "quiz starts from manual")
	}
	if w.manualGift == "" {
		return w.reject("start quiz", "manual gift is empty")
	}
	w.state = StateQuiz
	if w.question >= domain.QuizSize {
		w.question = 0
	}
	return nil
}

// Answer records the answer to the current question and advances.
func (w *Wizard) Answer(text string) error {
	if w.state != StateQuiz {
		return w.reject("answer", "not in quiz")
	}
	if w.question >= domain.QuizSize {
		return w.reject("answer", "all questions answered")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return w.reject("answer", "answer is empty")
	}
	w.answers[w.question] = text
	w.question++
	return nil
}

// Back steps to the previous question, or to manual from the first one.
func (w *Wizard) Back() error {
	if w.state != StateQuiz {
		return w.reject("go back", "not in quiz")
	}
	if w.question == 0 {
		w.state = StateManual
		return nil
	}
	w.question--
	return nil
}

// BeginGenerating moves from quiz to generating once every question is answered.
func (w *Wizard) BeginGenerating() error {
	if w.state != StateQuiz {
		return w.reject("generate", "not in quiz")
	}
	if len(w.answers) < domain.QuizSize {
		return w.reject("generate", fmt.Sprintf("%d of %d questions answered", len(w.answers), domain.QuizSize))
	}
	w.state = StateGenerating
	return nil
}

// Offer presents generated candidates and moves to selection.
func (w *Wizard) Offer(candidates []domain.GiftSuggestion) error {
	if w.state != StateGenerating {
		return w.reject("offer", "not generating")
	}
	if len(candidates) == 0 {
		return w.reject("offer", "no candidates")
	}
	w.candidates = append([]domain.GiftSuggestion(nil), candidates...)
	w.state = StateSelection
	return nil
}

// Choose picks candidate i and moves to review.
func (w *Wizard) Choose(i int) error {
	if w.state != StateSelection {
		return w.reject("choose", "not selecting")
	}
	if i < 0 || i >= len(w.candidates) {
		return w.reject("choose", fmt.Sprintf("candidate %d out of range", i))
	}
	sg := w.candidates[i]
	w.chosen = &sg
	w.skipped = false
	w.state = StateReview
	return nil
}

// Skip moves to review without a suggestion.
func (w *Wizard) Skip() error {
	if w.state != StateGenerating && w.state != StateSelection {
		return w.reject("skip", "suggestions are not being offered")
	}
	w.chosen = nil
	w.skipped = true
	w.state = StateReview
	return nil
}

// Edit returns from review to manual with the content kept.
func (w *Wizard) Edit() error {
	if w.state != StateReview {
		return w.reject("edit", "not in review")
	}
	w.state = StateManual
	w.candidates = nil
	return nil
}

// Submission produces the payload for core.Service.SubmitProfile.
func (w *Wizard) Submission() (core.Submission, error) {
	if w.state != StateReview {
		return core.Submission{}, w.reject("submit", "not in review")
	}
	if w.chosen == nil && !w.skipped {
		return core.Submission{}, w.reject("submit", "no suggestion chosen")
	}
	sub := core.Submission{ManualGift: w.manualGift, QuizAnswers: w.Answers()}
	if w.chosen != nil {
		sg := *w.chosen
		sub.Suggestion = &sg
	}
	return sub, nil
}
