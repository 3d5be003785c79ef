package parser

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"realestate_ai/jsonval"
	"realestate_ai/models"
)

const (
	organicSelector = `div[data-cy="search.listing.organic"]`
	cardSelector    = `article[data-sentry-component="AdvertCard"]`
	linkSelector    = `a[data-cy="listing-item-link"][href]`
	titleSelector   = `p[data-cy="listing-item-title"]`
	addressSelector = `[data-sentry-component="Address"]`
)

// ParseSearchParams reads the pagination block of a search results page.
func ParseSearchParams(html string) (*models.SearchParams, bool) {
	doc, err := loadDocument(strings.NewReader(html))
	if err != nil {
		return nil, false
	}
	next, ok := ReadNextData(doc)
	if !ok {
		return nil, false
	}
	listing := next.Search(trackingPath)
	return &models.SearchParams{
		PageCount:      countValue(listing.Get("page_count")),
		ResultCount:    countValue(listing.Get("result_count")),
		ResultsPerPage: countValue(listing.Get("results_per_page")),
	}, true
}

// ParseSearchPage returns the organic result cards of a search page in page
// order. Ad ids come from the page's impression tracking list by position.
// Relative links are resolved against baseURL.
func ParseSearchPage(html, baseURL string) []models.ListingSummary {
	doc, err := loadDocument(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var impressions []int64
	if next, ok := ReadNextData(doc); ok {
		impressions = adImpressions(next.Search(impressionsPath))
	}

	section := doc.Find(organicSelector).First()
	if section.Length() == 0 {
		return nil
	}

	base, _ := url.Parse(baseURL)

	var out []models.ListingSummary
	section.Find(cardSelector).Each(func(idx int, card *goquery.Selection) {
		link := card.Find(linkSelector).First()
		title := card.Find(titleSelector).First()
		if link.Length() == 0 || title.Length() == 0 {
			return
		}

		href, _ := link.Attr("href")
		full := strings.TrimSpace(href)
		if base != nil {
			if ref, err := url.Parse(full); err == nil {
				full = base.ResolveReference(ref).String()
			}
		}

		titleText := nodeText(title)
		address := ""
		if addr := card.Find(addressSelector).First(); addr.Length() > 0 {
			address = nodeText(addr)
		}

		summary := models.ListingSummary{
			OfferID: titleText + "_" + address,
			URL:     full,
			Title:   titleText,
			Address: address,
		}
		if idx < len(impressions) {
			id := impressions[idx]
			summary.AdID = &id
		}
		out = append(out, summary)
	})
	return out
}

// PageURL appends the page query parameter to a search URL.
func PageURL(searchURL string, page int) string {
	sep := "?"
	if strings.Contains(searchURL, "?") {
		sep = "&"
	}
	return searchURL + sep + "page=" + strconv.Itoa(page)
}

func adImpressions(v jsonval.Value) []int64 {
	items, _ := v.List()
	out := make([]int64, 0, len(items))
	for _, it := range items {
		if n, ok := it.Int(); ok && n >= 0 {
			out = append(out, n)
			continue
		}
		if s, ok := it.Str(); ok && isDigits(s) {
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				out = append(out, n)
			}
		}
	}
	return out
}

// nodeText joins the element's text nodes, in document order, with single spaces.
func nodeText(sel *goquery.Selection) string {
	var parts []string
	collectText(sel, &parts)
	return strings.Join(parts, " ")
}

func collectText(sel *goquery.Selection, parts *[]string) {
	sel.Contents().Each(func(_ int, c *goquery.Selection) {
		if goquery.NodeName(c) != "#text" {
			collectText(c, parts)
			return
		}
		if t := strings.Join(strings.Fields(c.Text()), " "); t != "" {
			*parts = append(*parts, t)
		}
	})
}

func countValue(v jsonval.Value) int {
	if n, ok := v.Int(); ok {
		return int(n)
	}
	return 0
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
