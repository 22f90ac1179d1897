// Package messaging builds WhatsApp deep links for the reminders and
// announcements participants send each other.
package messaging

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"secretsanta/pkg/domain"
)

const baseURL = "https://wa.me"

// Kind identifies a message template.
type Kind string

const (
	KindReminder     Kind = "reminder"
	KindPetReminder  Kind = "pet_reminder"
	KindDrawAnnounce Kind = "draw_announce"
	KindShareResult  Kind = "share_result"
)

// ShareDetails carries what a giver shares about the recipient they drew.
type ShareDetails struct {
	TargetName string
	Gift       string
	Price      string
	Link       string
	ManualGift string
}

// Link returns https://wa.me[/<phone>]?text=<escaped text>. Without a phone the
// link lets the sender pick a chat.
func Link(phone, text string) string {
	phone = digits(phone)
	var b strings.Builder
	b.WriteString(baseURL)
	if phone != "" {
		b.WriteByte('/')
		b.WriteString(phone)
	}
	b.WriteString("?text=")
	b.WriteString(strings.ReplaceAll(url.QueryEscape(text), "+", "%20"))
	return b.String()
}

// Reminder nudges a participant who has not completed their profile. Pets get
// the pet wording and a link without phone, since their owner fills it in.
func Reminder(p domain.Participant) string {
	if p.IsPet() {
		return Link("", fmt.Sprintf("Hey, don't forget to fill in the Secret Santa profile for %s the pet! 🐾", p.Name))
	}
	return Link(p.ContactChannel, fmt.Sprintf("Hey %s, we are waiting for you to fill in the Secret Santa! 🎁", p.Name))
}

// DrawAnnouncement tells the group that assignments are available.
func DrawAnnouncement() string {
	return Link("", "📣 THE DRAW IS DONE! 🎁\n\nOpen the app now and see who you got! Just tap \"SEE MY MATCH\".\n\nGood luck! 🤫")
}

// ShareResult lets a giver forward their recipient and chosen gift.
func ShareResult(phone string, d ShareDetails) string {
	gift := d.Gift
	if gift == "" {
		gift = d.ManualGift
	}
	price := d.Price
	if price == "" {
		price = "n/a"
	}
	link := d.Link
	if link == "" {
		link = "n/a"
	}
	msg := fmt.Sprintf("🎁 I drew my Secret Santa: *%s*!\n\n🤖 Suggested gift: *%s*\n💰 Est. price: %s\n🔗 Buy it here: %s\n\n(Or the manual wish: %s)",
		d.TargetName, gift, price, link, d.ManualGift)
	return Link(phone, msg)
}

// ShareDetailsFor assembles ShareDetails from the recipient's record.
func ShareDetailsFor(target domain.Profile) ShareDetails {
	d := ShareDetails{TargetName: target.Name, ManualGift: target.ManualGift}
	if target.Suggestion != nil {
		d.Gift = target.Suggestion.GiftName
		d.Price = target.Suggestion.EstimatedPrice
		d.Link = target.Suggestion.PurchaseLink
	}
	return d
}

func digits(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}
