package messaging

import (
	"net/url"
	"strings"
	"testing"

	"secretsanta/pkg/domain"
)

func decodeText(t *testing.T, link string) (string, string) {
	t.Helper()
	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse %q: %v", link, err)
	}
	if u.Scheme != "https" || u.Host != "wa.me" {
		t.Fatalf("unexpected base in %q", link)
	}
	return strings.TrimPrefix(u.Path, "/"), u.Query().Get("text")
}

func TestLinkWithAndWithoutPhone(t *testing.T) {
	if got := Link("+55 (11) 90000-0001", "a b&c"); got != "https://wa.me/5511900000001?text=a%20b%26c" {
		t.Fatalf("unexpected link %q", got)
	}
	if got := Link("", "hi"); got != "https://wa.me?text=hi" {
		t.Fatalf("unexpected link %q", got)
	}
}

func TestReminderWording(t *testing.T) {
	phone, text := decodeText(t, Reminder(domain.Participant{ID: "ana", Name: "Ana", ContactChannel: "5511900000001"}))
	if phone != "5511900000001" || !strings.Contains(text, "Hey Ana") {
		t.Fatalf("unexpected human reminder phone=%q text=%q", phone, text)
	}
	phone, text = decodeText(t, Reminder(domain.Participant{ID: "pipoca", Name: "Pipoca", Kind: domain.KindPet}))
	if phone != "" || !strings.Contains(text, "Pipoca the pet") {
		t.Fatalf("unexpected pet reminder phone=%q text=%q", phone, text)
	}
}

func TestDrawAnnouncementHasNoPhone(t *testing.T) {
	phone, text := decodeText(t, DrawAnnouncement())
	if phone != "" || !strings.Contains(text, "THE DRAW IS DONE") {
		t.Fatalf("unexpected announcement phone=%q text=%q", phone, text)
	}
}

func TestShareResultUsesSuggestionThenManual(t *testing.T) {
	target := domain.Profile{Name: "Bruno", ManualGift: "Socks", Suggestion: &domain.GiftSuggestion{
		GiftName: "Wool scarf", EstimatedPrice: "R$ 45,00", PurchaseLink: "https://shop.example/scarf",
	}}
	_, text := decodeText(t, ShareResult("", ShareDetailsFor(target)))
	for _, want := range []string{"*Bruno*", "*Wool scarf*", "R$ 45,00", "https://shop.example/scarf", "manual wish: Socks"} {
		if !strings.Contains(text, want) {
			t.Fatalf("share text missing %q: %s", want, text)
		}
	}

	_, text = decodeText(t, ShareResult("", ShareDetailsFor(domain.Profile{Name: "Carla", ManualGift: "Book"})))
	if !strings.Contains(text, "*Book*") || !strings.Contains(text, "n/a") {
		t.Fatalf("expected manual gift fallback: %s", text)
	}
}
