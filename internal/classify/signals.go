package classify

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Structural signal names used as evidence when no phrase matched.
const (
	SignalPrice    = "price pattern"
	SignalCartForm = "cart form"
)

// pricePattern matches currency amounts in the common symbol-prefix form
// ($19.99, €1.299,00) and the suffix form used by several European locales
// (199 kr, 49,99 zł).
var pricePattern = regexp.MustCompile(
	`(?:[$€£¥₹]\s?\d[\d.,]*)|(?:\d[\d.,]*\s?(?:kr|zł|eur|usd|gbp)\b)`,
)

// cartInputSelector finds quantity fields inside forms; cartControlSelector
// finds recognizable add-to-cart controls by id, name, or class.
const (
	cartInputSelector   = `form input[name*="qty"], form input[name*="quantity"], form select[name*="qty"], form select[name*="quantity"]`
	cartControlSelector = `form [id*="add-to-cart"], form [name*="add-to-cart"], form [class*="add-to-cart"], form [id*="addtocart"], form [name*="addtocart"]`
)

// structuralSignal scans for purchase-related markup once every phrase tier
// has come up empty. The price scan runs first; the cart-form scan only
// parses the document when needed.
func structuralSignal(lower string) (string, bool) {
	if pricePattern.MatchString(lower) {
		return SignalPrice, true
	}
	if hasCartForm(lower) {
		return SignalCartForm, true
	}
	return "", false
}

func hasCartForm(html string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}
	if doc.Find(cartInputSelector).Length() > 0 {
		return true
	}
	return doc.Find(cartControlSelector).Length() > 0
}
