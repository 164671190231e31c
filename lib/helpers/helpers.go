package helpers

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// EscapeHTML makes text safe inside a Telegram HTML message
func EscapeHTML(text string) string {
	return html.EscapeString(text)
}

func FormatPriceUS(price float64) string {
	decimals := 6

	if price >= 1000 {
		decimals = 0
	} else if price > 1.2 {
		decimals = 2
	} else if price < 0.00001 {
		decimals = 10
	}

	p := message.NewPrinter(language.English)
	return p.Sprintf("%.*f", decimals, price)
}

// FormatPercent renders a signed percentage with two decimals, e.g. "+12.50%"
func FormatPercent(pct float64) string {
	return fmt.Sprintf("%+.2f%%", pct)
}

// FormatAge renders how long ago t was, e.g. "3 hours ago"
func FormatAge(t time.Time) string {
	return humanize.Time(t)
}

// ShortAddress keeps the first and last four characters of a token address
func ShortAddress(address string) string {
	if len(address) <= 12 {
		return address
	}
	return address[:4] + "…" + address[len(address)-4:]
}

// Code wraps text in an HTML code span
func Code(text string) string {
	var b strings.Builder
	b.WriteString("<code>")
	b.WriteString(EscapeHTML(text))
	b.WriteString("</code>")
	return b.String()
}
