package extract

import "strings"

// Field identifies which record field a selector rule fills.
type Field string

const (
	FieldName  Field = "name"
	FieldPrice Field = "price"
	FieldImage Field = "image"
)

// Rule binds one CSS selector to a record field. Attr selects an attribute
// value instead of text content ("" means text). Rules are evaluated in
// order; the first match with visible, non-empty content wins, so order
// encodes markup-variant priority per platform, not recency.
type Rule struct {
	Field    Field
	Selector string
	Attr     string
}

// RuleSet is the ordered selector table for one platform.
type RuleSet struct {
	Platform string
	// WaitSelector gates the rendering strategy: extraction waits until any
	// of these appear before reading fields.
	WaitSelector string
	Rules        []Rule
}

// Adding a marketplace is a data change: add a RuleSet and a host entry in
// RulesFor.
var (
	amazonRules = RuleSet{
		Platform:     "Amazon",
		WaitSelector: "span#productTitle, span.a-price, img#landingImage",
		Rules: []Rule{
			{FieldName, "span#productTitle", ""},
			{FieldName, "h1#title", ""},
			{FieldPrice, "span.a-price span.a-offscreen", ""},
			{FieldPrice, "span#priceblock_ourprice", ""},
			{FieldPrice, "span#priceblock_dealprice", ""},
			{FieldPrice, "span.a-price-whole", ""},
			{FieldImage, "img#landingImage", "src"},
			{FieldImage, "img#imgBlkFront", "src"},
			{FieldImage, "div#imgTagWrapperId img", "src"},
		},
	}

	flipkartRules = RuleSet{
		Platform:     "Flipkart",
		WaitSelector: "span.B_NuCI, div._30jeq3, img._396cs4",
		Rules: []Rule{
			{FieldName, "span.B_NuCI", ""},
			{FieldName, "h1.yhB1nd", ""},
			{FieldPrice, "div.Nx9bqj", ""},
			{FieldPrice, "div._30jeq3", ""},
			{FieldPrice, "div._16Jk6d", ""},
			{FieldPrice, "div._25b18c", ""},
			{FieldImage, "img._396cs4", "src"},
			{FieldImage, "img.DByuf4", "src"},
			{FieldImage, "img._2r_T1I", "src"},
		},
	}

	meeshoRules = RuleSet{
		Platform:     "Meesho",
		WaitSelector: "span.sc-eDvSVe, h1",
		Rules: []Rule{
			{FieldName, "span.sc-eDvSVe", ""},
			{FieldName, "h1", ""},
			{FieldPrice, "h4.sc-eDvSVe", ""},
			{FieldPrice, "span.FinalPrice", ""},
			{FieldPrice, "span.SellingPrice", ""},
			{FieldImage, "div.ProductCarousel img", "src"},
			{FieldImage, "img", "src"},
		},
	}

	// genericRules serves unknown hosts with semantic and OpenGraph markup.
	genericRules = RuleSet{
		Platform:     "",
		WaitSelector: "h1",
		Rules: []Rule{
			{FieldName, "meta[property=og:title]", "content"},
			{FieldName, "h1", ""},
			{FieldPrice, "meta[property=product:price:amount]", "content"},
			{FieldPrice, "span.price", ""},
			{FieldPrice, "div.price", ""},
			{FieldImage, "meta[property=og:image]", "content"},
			{FieldImage, "img", "src"},
		},
	}
)

// RulesFor returns the selector table for a product URL's marketplace.
func RulesFor(url string) RuleSet {
	host := strings.ToLower(url)
	switch {
	case strings.Contains(host, "amazon."):
		return amazonRules
	case strings.Contains(host, "flipkart.com"):
		return flipkartRules
	case strings.Contains(host, "meesho.com"), strings.Contains(host, "meesho.in"):
		return meeshoRules
	default:
		return genericRules
	}
}

// rulesByField filters a table down to one field, preserving order.
func rulesByField(rs RuleSet, f Field) []Rule {
	var out []Rule
	for _, r := range rs.Rules {
		if r.Field == f {
			out = append(out, r)
		}
	}
	return out
}
