package enrichment

import (
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// SiteInfo is what we learn from a company homepage.
type SiteInfo struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
	Industry    string   `json:"industry,omitempty"`
}

// Summary is a one-line description suitable for the lead record.
func (s SiteInfo) Summary() string {
	switch {
	case s.Title != "" && s.Description != "":
		return s.Title + " - " + s.Description
	case s.Description != "":
		return s.Description
	default:
		return s.Title
	}
}

// industryKeywords maps an industry to terms that suggest it. Checked in
// sorted industry order so the guess is stable.
var industryKeywords = map[string][]string{
	"Technology":    {"software", "saas", "cloud", "platform", "api", "developer", "ai ", "machine learning", "cybersecurity"},
	"Finance":       {"bank", "banking", "fintech", "payments", "lending", "insurance", "investment", "wealth"},
	"Healthcare":    {"health", "clinic", "patient", "medical", "pharma", "biotech", "hospital"},
	"Retail":        {"shop", "store", "e-commerce", "ecommerce", "retail", "fashion"},
	"Manufacturing": {"manufactur", "factory", "industrial", "machining", "supply chain"},
	"Education":     {"university", "school", "learning", "course", "education"},
}

// Parser extracts SiteInfo from HTML documents.
type Parser struct {
	maxDescription int
}

// NewParser creates a parser that trims descriptions to 300 characters.
func NewParser() *Parser {
	return &Parser{maxDescription: 300}
}

// Parse reads title, meta description and keywords and guesses an industry.
func (p *Parser) Parse(doc *goquery.Document) SiteInfo {
	info := SiteInfo{
		Title: cleanText(doc.Find("title").First().Text()),
	}
	if info.Title == "" {
		info.Title = metaContent(doc, `meta[property="og:title"]`)
	}

	info.Description = metaContent(doc, `meta[name="description"]`)
	if info.Description == "" {
		info.Description = metaContent(doc, `meta[property="og:description"]`)
	}
	if info.Description == "" {
		info.Description = cleanText(doc.Find("main p, body p").First().Text())
	}
	info.Description = truncate(info.Description, p.maxDescription)

	if kw := metaContent(doc, `meta[name="keywords"]`); kw != "" {
		for _, k := range strings.Split(kw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				info.Keywords = append(info.Keywords, k)
			}
		}
	}

	corpus := strings.ToLower(strings.Join(append([]string{info.Title, info.Description}, info.Keywords...), " "))
	info.Industry = GuessIndustry(corpus)
	return info
}

// GuessIndustry returns the industry whose keywords occur most often in
// text, or "" when none match.
func GuessIndustry(text string) string {
	text = strings.ToLower(text)

	industries := make([]string, 0, len(industryKeywords))
	for name := range industryKeywords {
		industries = append(industries, name)
	}
	sort.Strings(industries)

	best, bestHits := "", 0
	for _, name := range industries {
		hits := 0
		for _, kw := range industryKeywords[name] {
			hits += strings.Count(text, kw)
		}
		if hits > bestHits {
			best, bestHits = name, hits
		}
	}
	return best
}

func metaContent(doc *goquery.Document, selector string) string {
	v, _ := doc.Find(selector).First().Attr("content")
	return cleanText(v)
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "..."
}
