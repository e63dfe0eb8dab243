// Package classifier decides whether a product page shows the item as purchasable.
package classifier

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Storefront templates churn, so classification layers a precise button check
// with looser structural and text fallbacks. The rules are OR'd: any match
// forces out-of-stock, and nothing overrides a match back to in-stock. A false
// out-of-stock just gets corrected on a later sweep; a false in-stock sends a
// bogus restock alert, so ambiguity resolves toward out-of-stock.

// Rule is a single out-of-stock predicate over a parsed product page.
type Rule struct {
	Match func(doc *goquery.Document) bool
	Name  string
}

// Classifier applies an ordered chain of out-of-stock rules.
type Classifier struct {
	rules []Rule
}

// New creates a classifier from an ordered rule chain.
func New(rules ...Rule) *Classifier {
	return &Classifier{rules: rules}
}

// Classify returns whether the page shows the item in stock, along with the
// name of the first rule that matched (empty when in stock). It never fails:
// markup the selectors don't recognize simply matches no rule.
func (c *Classifier) Classify(doc *goquery.Document) (inStock bool, rule string) {
	for _, r := range c.rules {
		if r.Match(doc) {
			return false, r.Name
		}
	}
	return true, ""
}

// Phrases that storefronts show in place of a purchase control when an item
// is gone. Matched against lower-cased text.
var (
	buttonPhrases = []string{"sold out", "out of stock", "unavailable"}

	waitlistPhrases = []string{
		"enter your email address below to be notified when we have this item in stock",
		"you will receive an email as soon as",
		"back in stock",
		"sold out",
	}
)

// CartButton matches when the page's purchase control carries sold-out text.
func CartButton() Rule {
	return Rule{
		Name: "cart-button",
		Match: func(doc *goquery.Document) bool {
			button := doc.Find("button[type=submit], .product-form__cart-submit").First()
			text := strings.ToLower(strings.TrimSpace(button.Text()))
			if text == "" {
				return false
			}
			for _, phrase := range buttonPhrases {
				if strings.Contains(text, phrase) {
					return true
				}
			}
			return false
		},
	}
}

// SoldOutMarkers matches generic structural sold-out indicators: dedicated
// classes, disabled purchase controls, and buttons whose whole text is a
// known sold-out phrasing.
func SoldOutMarkers() Rule {
	return Rule{
		Name: "sold-out-markers",
		Match: func(doc *goquery.Document) bool {
			if doc.Find(".sold-out, .out-of-stock").Length() > 0 {
				return true
			}
			if doc.Find("button[disabled], .product-form__cart-submit[disabled]").Length() > 0 {
				return true
			}
			matched := false
			doc.Find("button, .btn").EachWithBreak(func(_ int, s *goquery.Selection) bool {
				text := strings.ToLower(strings.TrimSpace(s.Text()))
				for _, phrase := range buttonPhrases {
					if text == phrase {
						matched = true
						return false
					}
				}
				return true
			})
			return matched
		},
	}
}

// PageText matches waitlist and sold-out phrases anywhere in the page body.
// Broadest rule in the chain: it catches storefronts that swap the purchase
// control for an email-me form, at the cost of tripping on marketing copy
// that happens to say "sold out".
func PageText() Rule {
	return Rule{
		Name: "page-text",
		Match: func(doc *goquery.Document) bool {
			body := strings.ToLower(doc.Find("body").Text())
			if body == "" {
				return false
			}
			for _, phrase := range waitlistPhrases {
				if strings.Contains(body, phrase) {
					return true
				}
			}
			return false
		},
	}
}

// DefaultRules is the relaxed chain: button check, structural markers, then
// the full-page phrase scan.
func DefaultRules() []Rule {
	return []Rule{CartButton(), SoldOutMarkers(), PageText()}
}

// ButtonRules is the strict chain for storefronts whose purchase control is
// reliable enough that the page-wide scan only adds false positives.
func ButtonRules() []Rule {
	return []Rule{CartButton(), SoldOutMarkers()}
}
