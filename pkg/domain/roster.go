package domain

import (
	"fmt"
	"strings"
)

// Participant is a compiled-in roster entry.
type Participant struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	ContactChannel string          `json:"contact_channel,omitempty"`
	Avatar         string          `json:"avatar,omitempty"`
	Kind           ParticipantKind `json:"kind"`
}

// IsPet reports whether the participant is a pet.
func (p Participant) IsPet() bool { return p.Kind == KindPet }

// Roster is the immutable, ordered participant list of a draw cycle.
type Roster struct {
	participants []Participant
	index        map[string]int
}

// NewRoster validates and freezes the supplied participants. Ids must be
// non-empty and unique; an empty kind defaults to human.
func NewRoster(participants ...Participant) (Roster, error) {
	r := Roster{
		participants: make([]Participant, 0, len(participants)),
		index:        make(map[string]int, len(participants)),
	}
	for _, p := range participants {
		p.ID = strings.TrimSpace(p.ID)
		if p.ID == "" {
			return Roster{}, fmt.Errorf("roster: participant %q has empty id", p.Name)
		}
		if _, dup := r.index[p.ID]; dup {
			return Roster{}, fmt.Errorf("roster: duplicate participant id %q", p.ID)
		}
		switch p.Kind {
		case "":
			p.Kind = KindHuman
		case KindHuman, KindPet:
		default:
			return Roster{}, fmt.Errorf("roster: participant %q has unknown kind %q", p.ID, p.Kind)
		}
		r.index[p.ID] = len(r.participants)
		r.participants = append(r.participants, p)
	}
	return r, nil
}

// MustRoster is NewRoster for compiled-in literals.
func MustRoster(participants ...Participant) Roster {
	r, err := NewRoster(participants...)
	if err != nil {
		panic(err)
	}
	return r
}

// Len returns the number of participants.
func (r Roster) Len() int { return len(r.participants) }

// Participants returns a copy of the roster in declaration order.
func (r Roster) Participants() []Participant {
	return append([]Participant(nil), r.participants...)
}

// IDs returns participant ids in declaration order.
func (r Roster) IDs() []string {
	ids := make([]string, len(r.participants))
	for i, p := range r.participants {
		ids[i] = p.ID
	}
	return ids
}

// Find looks up a participant by id.
func (r Roster) Find(id string) (Participant, bool) {
	i, ok := r.index[id]
	if !ok {
		return Participant{}, false
	}
	return r.participants[i], true
}

// Contains reports whether id belongs to the roster.
func (r Roster) Contains(id string) bool {
	_, ok := r.index[id]
	return ok
}

// Humans returns the participants that count towards the readiness gate.
func (r Roster) Humans() []Participant {
	out := make([]Participant, 0, len(r.participants))
	for _, p := range r.participants {
		if !p.IsPet() {
			out = append(out, p)
		}
	}
	return out
}
