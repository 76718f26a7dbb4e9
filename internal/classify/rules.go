package classify

import "github.com/restockd/restockd/internal/watch"

// phraseRule is one tier of the generic phrase scan. Rules are evaluated in
// slice order and the first phrase found in the page text wins, so negative
// rules must precede positive rules within each tier.
type phraseRule struct {
	tier    watch.Confidence
	inStock bool
	phrases []string
}

// genericRules holds the tiered phrase sets scanned after retailer overrides.
// Order within each phrase list is fixed and meaningful: the first substring
// present in the text becomes the evidence phrase.
var genericRules = []phraseRule{
	{
		tier:    watch.ConfidenceHigh,
		inStock: false,
		phrases: []string{
			"out of stock",
			"sold out",
			"currently unavailable",
			"notify me when available",
			"notify when available",
			"email me when available",
			"back in stock soon",
			"join waitlist",
			"join the waitlist",
			"temporarily out of stock",
			"no longer available",
			"agotado",
			"ausverkauft",
			"nicht verfügbar",
			"épuisé",
		},
	},
	{
		tier:    watch.ConfidenceHigh,
		inStock: true,
		phrases: []string{
			"add to cart",
			"add to basket",
			"add to bag",
			"buy now",
			"in stock",
			"ready to ship",
			"ships today",
			"order now",
		},
	},
	{
		tier:    watch.ConfidenceMedium,
		inStock: false,
		phrases: []string{
			"unavailable",
			"coming soon",
			"pre-order",
			"preorder",
			"waitlist",
		},
	},
	{
		tier:    watch.ConfidenceMedium,
		inStock: true,
		phrases: []string{
			"available",
			"select options",
			"choose options",
			"order today",
		},
	},
}

// retailerRule is a hand-picked override set for one retailer. A host match
// takes absolute priority over the generic tiers; the evidence is a stable
// label rather than the raw phrase so downstream display stays uniform.
type retailerRule struct {
	name       string
	hosts      []string
	outOfStock []string
	inStock    []string
}

var retailerRules = []retailerRule{
	{
		name:  "amazon",
		hosts: []string{"amazon."},
		outOfStock: []string{
			"currently unavailable",
			"we don't know when or if this item will be back in stock",
			"temporarily out of stock",
		},
		inStock: []string{"add to cart", "buy now", "in stock"},
	},
	{
		name:       "bestbuy",
		hosts:      []string{"bestbuy."},
		outOfStock: []string{"sold out", "coming soon"},
		inStock:    []string{"add to cart"},
	},
	{
		name:       "walmart",
		hosts:      []string{"walmart."},
		outOfStock: []string{"out of stock", "get in-stock alert"},
		inStock:    []string{"add to cart"},
	},
	{
		name:       "target",
		hosts:      []string{"target."},
		outOfStock: []string{"out of stock", "sold out"},
		inStock:    []string{"add to cart", "ship it"},
	},
	{
		name:       "nike",
		hosts:      []string{"nike."},
		outOfStock: []string{"sold out", "notify me"},
		inStock:    []string{"add to bag"},
	},
}
