// Package classify implements the heuristic stock-status classifier. The
// classifier is a pure function over page text and source URL: no I/O, no
// hidden state, identical inputs always yield identical verdicts.
//
// Matching is plain case-insensitive substring search over the full page
// text, not tag-aware. A negative phrase buried in unrelated page furniture
// can therefore false-positive; that trade-off is deliberate and must not be
// "fixed" by scoping matches to DOM regions, which would change observable
// behavior.
package classify

import (
	"net/url"
	"strings"

	"github.com/restockd/restockd/internal/watch"
)

// NoIndicatorsEvidence is the evidence recorded when nothing matched.
const NoIndicatorsEvidence = "no indicators"

// StockClassifier evaluates the tiered phrase rules in a fixed sequence:
// retailer overrides, generic high-confidence phrases, generic medium
// phrases, structural price/cart signals, then a conservative out-of-stock
// default. Out-of-stock is checked before in-stock at every tier so that a
// page carrying both a disabled "add to cart" button and a "sold out" label
// resolves to out-of-stock.
type StockClassifier struct {
	rules     []phraseRule
	retailers []retailerRule
}

// New constructs a classifier with the built-in rule tables.
func New() *StockClassifier {
	return &StockClassifier{
		rules:     genericRules,
		retailers: retailerRules,
	}
}

// Classify produces exactly one verdict for the given page text and URL.
// Empty or whitespace-only input degrades to the low-confidence out-of-stock
// default rather than an error.
func (c *StockClassifier) Classify(text, rawURL string) watch.Classification {
	lower := strings.ToLower(text)
	if strings.TrimSpace(lower) == "" {
		return noIndicators()
	}

	if retailer, ok := c.retailerFor(rawURL); ok {
		if verdict, ok := matchRetailer(retailer, lower); ok {
			return verdict
		}
	}

	for _, rule := range c.rules {
		for _, phrase := range rule.phrases {
			if strings.Contains(lower, phrase) {
				return watch.Classification{
					InStock:    rule.inStock,
					Confidence: rule.tier,
					Evidence:   []string{phrase},
				}
			}
		}
	}

	if signal, ok := structuralSignal(lower); ok {
		return watch.Classification{
			InStock:    true,
			Confidence: watch.ConfidenceMedium,
			Evidence:   []string{signal},
		}
	}

	return noIndicators()
}

// retailerFor resolves the first retailer whose host fragment appears in the
// URL host. An unparsable URL disables overrides but never fails the check.
func (c *StockClassifier) retailerFor(rawURL string) (retailerRule, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return retailerRule{}, false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return retailerRule{}, false
	}
	for _, r := range c.retailers {
		for _, fragment := range r.hosts {
			if strings.Contains(host, fragment) {
				return r, true
			}
		}
	}
	return retailerRule{}, false
}

func matchRetailer(r retailerRule, lower string) (watch.Classification, bool) {
	for _, phrase := range r.outOfStock {
		if strings.Contains(lower, phrase) {
			return watch.Classification{
				InStock:    false,
				Confidence: watch.ConfidenceHigh,
				Evidence:   []string{r.name + " out of stock"},
			}, true
		}
	}
	for _, phrase := range r.inStock {
		if strings.Contains(lower, phrase) {
			return watch.Classification{
				InStock:    true,
				Confidence: watch.ConfidenceHigh,
				Evidence:   []string{r.name + " in stock"},
			}, true
		}
	}
	return watch.Classification{}, false
}

// noIndicators is the conservative default: absence of evidence reads as out
// of stock to avoid false restock alerts.
func noIndicators() watch.Classification {
	return watch.Classification{
		InStock:    false,
		Confidence: watch.ConfidenceLow,
		Evidence:   []string{NoIndicatorsEvidence},
	}
}
