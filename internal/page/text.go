package page

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const noiseSelector = "script, style, noscript, template, svg, iframe, nav, footer, header, .cookie-banner, .popup"

var (
	urlPattern   = regexp.MustCompile(`https?://\S+|www\.\S+`)
	spacePattern = regexp.MustCompile(`[ \t\f\v\p{Zs}]+`)
)

// ExtractText parses HTML and returns the cleaned visible text of its body.
func ExtractText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	doc.Find(noiseSelector).Remove()

	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}

	// block elements would otherwise glue their texts together
	body.Find("p, div, li, h1, h2, h3, h4, h5, h6, br, tr, section, article").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	return CleanText(body.Text()), nil
}

// CleanText strips URLs and collapses whitespace, keeping one line per text block.
func CleanText(text string) string {
	text = urlPattern.ReplaceAllString(text, "")

	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(spacePattern.ReplaceAllString(line, " "))
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}

	return strings.Join(cleaned, "\n")
}
