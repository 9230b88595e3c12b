package notify

import (
	"fmt"
	"html"
	"strings"
)

func greetingName(name string) string {
	if name = strings.TrimSpace(name); name == "" {
		return "Hallo"
	}
	return "Hallo " + name
}

func renderConfirmation(email ConfirmationEmail) (string, string) {
	subject := fmt.Sprintf("Deine Bestellung %s ist bestätigt", email.OrderNumber)
	var b strings.Builder
	fmt.Fprintf(&b, "%s,\n\n", greetingName(email.CustomerName))
	fmt.Fprintf(&b, "vielen Dank für deine Bestellung bei Melodie Moment! Wir schreiben jetzt den Song für %s.\n\n", email.RecipientName)
	fmt.Fprintf(&b, "Bestellnummer: %s\n", email.OrderNumber)
	if email.PackageLabel != "" {
		fmt.Fprintf(&b, "Paket: %s\n", email.PackageLabel)
	}
	fmt.Fprintf(&b, "Gesamtbetrag: %d €\n\n", email.Total)
	if email.Rush {
		b.WriteString("Du hast die Express-Lieferung gebucht. Dein Song ist innerhalb von 24 Stunden fertig.\n\n")
	} else {
		b.WriteString("Dein Song ist in der Regel innerhalb von 48 Stunden fertig.\n\n")
	}
	b.WriteString("Herzliche Grüße\nDein Melodie Moment Team")
	return subject, b.String()
}

func renderDelivery(email DeliveryEmail) (string, string) {
	subject := fmt.Sprintf("Dein Song für %s ist fertig", email.RecipientName)
	var b strings.Builder
	fmt.Fprintf(&b, "%s,\n\n", greetingName(email.CustomerName))
	fmt.Fprintf(&b, "der persönliche Song für %s ist fertig! Hier kannst du ihn anhören und herunterladen:\n\n", email.RecipientName)
	fmt.Fprintf(&b, "%s\n\n", email.DeliveryURL)
	if email.ReferralCode != "" {
		fmt.Fprintf(&b, "Teile deinen Empfehlungscode %s mit Freunden", email.ReferralCode)
		if email.ReferralURL != "" {
			fmt.Fprintf(&b, " (%s)", email.ReferralURL)
		}
		b.WriteString(" und schenke ihnen 10 % Rabatt auf ihren ersten Song.\n\n")
	}
	fmt.Fprintf(&b, "Bestellnummer: %s\n\n", email.OrderNumber)
	b.WriteString("Herzliche Grüße\nDein Melodie Moment Team")
	return subject, b.String()
}

// textToHTML wraps escaped paragraphs for mail clients that prefer HTML.
func textToHTML(text string) string {
	paragraphs := strings.Split(strings.TrimSpace(text), "\n\n")
	var b strings.Builder
	for _, p := range paragraphs {
		escaped := html.EscapeString(p)
		escaped = strings.ReplaceAll(escaped, "\n", "<br>")
		b.WriteString("<p>")
		b.WriteString(escaped)
		b.WriteString("</p>")
	}
	return b.String()
}
