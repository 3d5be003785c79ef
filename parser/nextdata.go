package parser

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jmespath/go-jmespath"

	"realestate_ai/jsonval"
)

const nextDataSelector = `script#__NEXT_DATA__`

var (
	adPath          = jmespath.MustCompile("props.pageProps.ad")
	trackingPath    = jmespath.MustCompile("props.pageProps.tracking.listing")
	impressionsPath = jmespath.MustCompile("props.pageProps.tracking.listing.ad_impressions")
)

// NextData is the decoded __NEXT_DATA__ document of a page.
type NextData struct {
	root jsonval.Value
}

// ReadNextData locates and decodes the page's __NEXT_DATA__ script. It
// reports false when the script is missing, empty, not valid JSON or an
// empty object.
func ReadNextData(doc *goquery.Document) (*NextData, bool) {
	script := doc.Find(nextDataSelector).First()
	if script.Length() == 0 {
		return nil, false
	}
	body := strings.TrimSpace(script.Text())
	if body == "" {
		return nil, false
	}
	root, err := jsonval.Decode([]byte(body))
	if err != nil {
		return nil, false
	}
	if m, ok := root.Map(); root.IsNull() || (ok && len(m) == 0) {
		return nil, false
	}
	return &NextData{root: root}, true
}

func loadDocument(r io.Reader) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(r)
}

// Search evaluates a compiled expression against the document. Failures and
// misses both yield Null.
func (n *NextData) Search(expr *jmespath.JMESPath) jsonval.Value {
	if n == nil {
		return jsonval.Null
	}
	res, err := expr.Search(n.root.Interface())
	if err != nil {
		return jsonval.Null
	}
	return jsonval.FromAny(res)
}

func (n *NextData) Root() jsonval.Value {
	if n == nil {
		return jsonval.Null
	}
	return n.root
}
