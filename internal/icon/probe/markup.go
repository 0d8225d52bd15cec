package probe

import (
	"bytes"
	"context"
	"mime"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gabriel-vasile/mimetype"
	"github.com/saintfish/chardet"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"github.com/GriffinCanCode/kyvyrn/backend/internal/infrastructure/logging"
)

// Link relations in preference order
var linkPreference = [][]string{
	{"apple-touch-icon", "apple-touch-icon-precomposed"},
	{"icon"},
}

// MarkupLink reads icon link elements from the site's landing page
type MarkupLink struct {
	fetcher Fetcher
	logger  *zap.Logger
}

// NewMarkupLink creates the markup probe
func NewMarkupLink(f Fetcher, logger *zap.Logger) *MarkupLink {
	return &MarkupLink{fetcher: f, logger: logging.OrNop(logger)}
}

// Name implements Probe
func (p *MarkupLink) Name() string { return "markup-link" }

// Probe fetches base and scans its link elements
func (p *MarkupLink) Probe(ctx context.Context, base string) (string, bool) {
	u, err := NormalizeBase(base)
	if err != nil {
		p.logger.Debug("Invalid base url", zap.String("base", base), zap.Error(err))
		return "", false
	}

	page := u.String()
	resp, err := p.fetcher.Get(ctx, page)
	if err != nil {
		p.logger.Debug("Page unavailable", zap.String("url", page), zap.Error(err))
		return "", false
	}
	if !isHTML(resp.ContentType, resp.Body) {
		p.logger.Debug("Page is not HTML",
			zap.String("url", page),
			zap.String("content_type", resp.ContentType),
		)
		return "", false
	}

	doc, err := loadHTML(resp.Body, resp.ContentType)
	if err != nil {
		p.logger.Debug("Failed to parse page", zap.String("url", page), zap.Error(err))
		return "", false
	}

	href, ok := iconLink(doc)
	if !ok {
		p.logger.Debug("No icon link on page", zap.String("url", page))
		return "", false
	}
	return resolve(servedFrom(u, resp.URL), href)
}

// servedFrom returns the address the page was finally served from, so
// relative hrefs resolve the way a browser would after redirects
func servedFrom(requested *url.URL, final string) *url.URL {
	if final == "" {
		return requested
	}
	u, err := url.Parse(final)
	if err != nil || u.Host == "" {
		return requested
	}
	return u
}

// iconLink returns the href of the first link element of the most
// preferred relation present in doc
func iconLink(doc *goquery.Document) (string, bool) {
	links := doc.Find("link[rel][href]")
	for _, rels := range linkPreference {
		var href string
		links.EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if !hasRel(s.AttrOr("rel", ""), rels) {
				return true
			}
			if h := strings.TrimSpace(s.AttrOr("href", "")); h != "" {
				href = h
				return false
			}
			return true
		})
		if href != "" {
			return href, true
		}
	}
	return "", false
}

// hasRel reports whether the space separated rel list contains any of want
func hasRel(rel string, want []string) bool {
	for _, token := range strings.Fields(strings.ToLower(rel)) {
		for _, w := range want {
			if token == w {
				return true
			}
		}
	}
	return false
}

func isHTML(contentType string, body []byte) bool {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		switch mediaType {
		case "text/html", "application/xhtml+xml":
			return true
		}
	}
	return mimetype.Detect(body).Is("text/html")
}

// loadHTML decodes body to UTF-8, preferring a declared charset over a
// detected one, and parses it
func loadHTML(body []byte, contentType string) (*goquery.Document, error) {
	_, params, _ := mime.ParseMediaType(contentType)
	cs := params["charset"]
	if cs == "" {
		cs = detectCharset(body)
	}

	r, err := charset.NewReader(bytes.NewReader(body), "text/html; charset="+cs)
	if err != nil {
		return goquery.NewDocumentFromReader(bytes.NewReader(body))
	}
	return goquery.NewDocumentFromReader(r)
}

func detectCharset(data []byte) string {
	result, err := chardet.NewTextDetector().DetectBest(data)
	if err != nil || result == nil {
		return "utf-8"
	}
	return strings.ToLower(result.Charset)
}
