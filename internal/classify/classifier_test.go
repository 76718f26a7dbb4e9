package classify

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/restockd/restockd/internal/watch"
)

func TestClassifyHighConfidencePhrases(t *testing.T) {
	t.Parallel()

	c := New()

	tests := []struct {
		name     string
		text     string
		inStock  bool
		evidence string
	}{
		{"sold out", "<p>This item is SOLD OUT for the season</p>", false, "sold out"},
		{"out of stock", "sorry, out of stock right now", false, "out of stock"},
		{"waitlist", "Join Waitlist to be notified", false, "join waitlist"},
		{"add to cart", "<button>Add to Cart</button>", true, "add to cart"},
		{"buy now", "click Buy Now for fast delivery", true, "buy now"},
		{"ready to ship", "Ready to Ship from our warehouse", true, "ready to ship"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := c.Classify(tt.text, "https://shop.example.com/item/1")
			require.Equal(t, tt.inStock, got.InStock)
			require.Equal(t, watch.ConfidenceHigh, got.Confidence)
			require.Equal(t, []string{tt.evidence}, got.Evidence)
		})
	}
}

func TestClassifyMediumConfidencePhrases(t *testing.T) {
	t.Parallel()

	c := New()

	got := c.Classify("this colorway is coming soon", "https://shop.example.com/item/2")
	require.False(t, got.InStock)
	require.Equal(t, watch.ConfidenceMedium, got.Confidence)
	require.Equal(t, []string{"coming soon"}, got.Evidence)

	got = c.Classify("item is widely AVAILABLE online", "https://shop.example.com/item/2")
	require.True(t, got.InStock)
	require.Equal(t, watch.ConfidenceMedium, got.Confidence)
	require.Equal(t, []string{"available"}, got.Evidence)
}

func TestClassifyNegativeWinsTieAtEqualTier(t *testing.T) {
	t.Parallel()

	c := New()

	// Disabled add-to-cart button next to a sold-out label: absence of
	// stock must win the tie.
	text := `<button disabled>Add to Cart</button><span class="badge">Sold Out</span>`
	got := c.Classify(text, "https://shop.example.com/item/3")
	require.False(t, got.InStock)
	require.Equal(t, watch.ConfidenceHigh, got.Confidence)
	require.Equal(t, []string{"sold out"}, got.Evidence)
}

func TestClassifyRetailerOverridePrecedence(t *testing.T) {
	t.Parallel()

	c := New()

	text := "Currently unavailable. We don't know when this will be back. Add to Cart"
	got := c.Classify(text, "https://www.amazon.com/dp/B0TEST")
	require.False(t, got.InStock)
	require.Equal(t, watch.ConfidenceHigh, got.Confidence)
	require.Equal(t, []string{"amazon out of stock"}, got.Evidence)
}

func TestClassifyRetailerPositiveOverride(t *testing.T) {
	t.Parallel()

	c := New()

	got := c.Classify("In Stock. Ships from Amazon.", "https://amazon.co.uk/dp/B0TEST")
	require.True(t, got.InStock)
	require.Equal(t, watch.ConfidenceHigh, got.Confidence)
	require.Equal(t, []string{"amazon in stock"}, got.Evidence)
}

func TestClassifyRetailerFallsThroughToGenericTiers(t *testing.T) {
	t.Parallel()

	c := New()

	// Host matches a retailer but none of its hand-picked phrases appear;
	// the generic tiers still apply.
	got := c.Classify("this item is on a waitlist", "https://www.nike.com/t/shoe")
	require.False(t, got.InStock)
	require.Equal(t, watch.ConfidenceMedium, got.Confidence)
	require.Equal(t, []string{"waitlist"}, got.Evidence)
}

func TestClassifyStructuralPriceSignal(t *testing.T) {
	t.Parallel()

	c := New()

	got := c.Classify("<div>Special price: $49.99 today only</div>", "https://shop.example.com/item/4")
	require.True(t, got.InStock)
	require.Equal(t, watch.ConfidenceMedium, got.Confidence)
	require.Equal(t, []string{SignalPrice}, got.Evidence)
}

func TestClassifyStructuralCartFormSignal(t *testing.T) {
	t.Parallel()

	c := New()

	html := `<form action="/basket"><select name="quantity"><option>1</option></select><input type="submit"></form>`
	got := c.Classify(html, "https://shop.example.com/item/5")
	require.True(t, got.InStock)
	require.Equal(t, watch.ConfidenceMedium, got.Confidence)
	require.Equal(t, []string{SignalCartForm}, got.Evidence)
}

func TestClassifyDefaultSafeOnNoSignals(t *testing.T) {
	t.Parallel()

	c := New()

	got := c.Classify("<html><body>welcome to our homepage</body></html>", "https://shop.example.com/item/6")
	require.False(t, got.InStock)
	require.Equal(t, watch.ConfidenceLow, got.Confidence)
	require.Equal(t, []string{NoIndicatorsEvidence}, got.Evidence)
}

func TestClassifyEmptyInput(t *testing.T) {
	t.Parallel()

	c := New()

	for _, text := range []string{"", "   \n\t "} {
		got := c.Classify(text, "https://shop.example.com/item/7")
		require.False(t, got.InStock)
		require.Equal(t, watch.ConfidenceLow, got.Confidence)
		require.Equal(t, []string{NoIndicatorsEvidence}, got.Evidence)
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	t.Parallel()

	c := New()

	text := "<span>Sold Out</span><button>Buy Now</button> $10.00"
	url := "https://www.target.com/p/item"
	first := c.Classify(text, url)
	second := c.Classify(text, url)
	require.Equal(t, first, second)
}

func TestClassifyConfidenceDomainAndEvidence(t *testing.T) {
	t.Parallel()

	c := New()

	inputs := []string{
		"",
		"sold out",
		"available",
		"price starts at €12,50",
		"nothing relevant here",
		"Currently unavailable",
	}
	for _, text := range inputs {
		got := c.Classify(text, "https://www.amazon.de/dp/B0TEST")
		require.Contains(t,
			[]watch.Confidence{watch.ConfidenceLow, watch.ConfidenceMedium, watch.ConfidenceHigh},
			got.Confidence,
		)
		if got.Confidence != watch.ConfidenceLow {
			require.NotEmpty(t, got.Evidence)
		}
	}
}

func TestClassifyBadURLDisablesOverridesOnly(t *testing.T) {
	t.Parallel()

	c := New()

	got := c.Classify("sold out everywhere", "://not-a-url")
	require.False(t, got.InStock)
	require.Equal(t, watch.ConfidenceHigh, got.Confidence)
	require.Equal(t, []string{"sold out"}, got.Evidence)
}
