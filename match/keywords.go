package match

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// Keyworder condenses a product title into a short search phrase. It is
// best-effort: any error or unusable output sends the caller to the local
// rule-based fallback.
type Keyworder interface {
	Extract(ctx context.Context, title string) (string, error)
}

// KeywordClient calls an external keyword extraction service over HTTP.
type KeywordClient struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewKeywordClient creates a client for the keyword service.
func NewKeywordClient(endpoint, apiKey string, timeout time.Duration) *KeywordClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &KeywordClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
	}
}

// Extract posts the title and returns the service's keyword phrase. Short
// or overlong answers are rejected so garbage never reaches the search
// provider.
func (c *KeywordClient) Extract(ctx context.Context, title string) (string, error) {
	payload, err := json.Marshal(map[string]string{"title": title})
	if err != nil {
		return "", fmt.Errorf("match: marshal keyword request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("match: keyword request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("match: keyword service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("match: keyword service: HTTP %d", resp.StatusCode)
	}

	var out struct {
		Keywords string `json:"keywords"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("match: decode keyword response: %w", err)
	}

	kw := strings.TrimSpace(out.Keywords)
	low := strings.ToLower(kw)
	if low == "" || low == "none" || low == "unknown" || len(strings.Fields(kw)) < 2 || len(kw) > 100 {
		return "", fmt.Errorf("match: keyword service returned unusable phrase %q", kw)
	}
	return kw, nil
}

var brandPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(Samsung|Apple|Xiaomi|Redmi|OnePlus|Vivo|Oppo|Realme|Motorola|Nokia|Honor|Huawei)\b`),
	regexp.MustCompile(`(?i)\b(boAt|JBL|Sony|Bose|Sennheiser|Audio-Technica|Skullcandy)\b`),
	regexp.MustCompile(`(?i)\b(HP|Dell|Lenovo|Asus|Acer|MSI)\b`),
	regexp.MustCompile(`(?i)\b(Nike|Adidas|Puma|Reebok|Under Armour|New Balance)\b`),
	regexp.MustCompile(`(?i)\b(LG|Whirlpool|IFB|Bosch|Godrej|Haier|Panasonic|Voltas)\b`),
}

var modelPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b([A-Z0-9]{2,}[-\s]?[A-Z0-9]+)\b`),
	regexp.MustCompile(`(?i)\b(Galaxy|iPhone|Redmi|Note|Pro|Max|Plus|Mini|Air|Studio)\s+([A-Z0-9]+)\b`),
	regexp.MustCompile(`(?i)\b([0-9]+GB|[0-9]+TB|[0-9]+MP|[0-9]+mAh)\b`),
}

var categoryPattern = regexp.MustCompile(`(?i)\b(smartphone|phone|mobile|tablet|laptop|earbuds|headphones|watch|tv|camera|` +
	`shoes|shirt|jacket|dress|jeans|t-shirt|hoodie|` +
	`refrigerator|washing machine|air conditioner|microwave)\b`)

// extractWithRules derives brand + model + category from a title without
// calling the external service. Returns "" when fewer than two usable
// tokens are found.
func extractWithRules(title string) string {
	var brand string
	for _, p := range brandPatterns {
		if m := p.FindStringSubmatch(title); m != nil {
			brand = m[1]
			break
		}
	}

	var models []string
	for _, p := range modelPatterns {
		for _, m := range p.FindAllStringSubmatch(title, -1) {
			for _, g := range m[1:] {
				if g != "" {
					models = append(models, g)
				}
			}
		}
	}

	var category string
	if m := categoryPattern.FindStringSubmatch(title); m != nil {
		category = m[1]
	}

	var keywords []string
	if brand != "" {
		keywords = append(keywords, brand)
	}
	if len(models) > 2 {
		models = models[:2]
	}
	keywords = append(keywords, models...)
	if category != "" && !strings.Contains(strings.ToLower(strings.Join(keywords, " ")), strings.ToLower(category)) {
		keywords = append(keywords, category)
	}

	if len(keywords) < 2 {
		return ""
	}
	return strings.Join(keywords, " ")
}

var noiseWords = map[string]bool{
	"buy": true, "online": true, "best": true, "price": true, "offer": true,
	"sale": true, "discount": true, "deal": true, "free": true, "shipping": true,
	"delivery": true, "india": true, "original": true, "genuine": true,
	"pack": true, "combo": true, "set": true, "piece": true, "pcs": true,
	"units": true, "box": true, "with": true, "and": true, "for": true,
	"the": true, "was": true, "were": true, "been": true, "being": true,
	"have": true, "has": true, "had": true, "does": true, "did": true,
	"will": true, "would": true, "could": true, "should": true,
}

var nonWord = regexp.MustCompile(`[^\w\s]`)

// cleanTitleFallback is the last resort: strip punctuation and noise words
// from the raw title and keep the first five meaningful tokens.
func cleanTitleFallback(title string) string {
	cleaned := nonWord.ReplaceAllString(title, " ")

	var kept []string
	for _, w := range strings.Fields(cleaned) {
		if len(w) <= 2 {
			continue
		}
		if noiseWords[strings.ToLower(w)] {
			continue
		}
		kept = append(kept, w)
		if len(kept) == 5 {
			break
		}
	}

	if len(kept) == 0 {
		if len(title) > 50 {
			return title[:50]
		}
		return title
	}
	return strings.Join(kept, " ")
}

// deriveKeywords runs the three-tier derivation: external service, then
// rule-based extraction, then title cleanup. Never returns "".
func deriveKeywords(ctx context.Context, kw Keyworder, log *slog.Logger, title string) string {
	if kw != nil {
		phrase, err := kw.Extract(ctx, title)
		if err == nil {
			return phrase
		}
		log.Debug("match: keyword service fallback", "error", err)
	}

	if phrase := extractWithRules(title); phrase != "" {
		return phrase
	}
	return cleanTitleFallback(title)
}

// SearchVariants expands a keyword phrase into 3 to 5 query variants:
// the phrase itself, a quoted exact match, commerce-qualified forms, and
// word-subset splits for longer phrases.
func SearchVariants(keywords string) []string {
	variants := []string{
		keywords,
		`"` + keywords + `"`,
		keywords + " buy online",
		keywords + " price india",
	}

	words := strings.Fields(keywords)
	if len(words) > 2 {
		variants = append(variants, strings.Join(words[:2], " "))
	}

	if len(variants) > 5 {
		variants = variants[:5]
	}
	return variants
}
