// Package extractor locates the embedded payload and the submission endpoint in rendered quiz pages.
package extractor

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"quizsolver/domain/entities"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// MinBase64Run is the shortest bare base64 run accepted as a payload.
const MinBase64Run = 100

// Strategy names reported in Match.Strategy
const (
	StrategyFormAction = "form_action"
	StrategySubmitURL  = "submit_url_field"
	StrategySubmitLink = "submit_link"
	StrategySubmitPath = "submit_path"
)

var (
	dataURIPattern     = regexp.MustCompile(`data:([^;,"'\s]+);base64,([A-Za-z0-9+/=]+)`)
	base64RunPattern   = regexp.MustCompile(fmt.Sprintf(`[A-Za-z0-9+/=]{%d,}`, MinBase64Run))
	submitFieldPattern = regexp.MustCompile(`"submit_url"\s*:\s*"(https?://[^"]+)"`)
	submitLinkPattern  = regexp.MustCompile(`https?://[^\s"'<>]+/submit\b[^\s"'<>]*`)
	submitPathPattern  = regexp.MustCompile(`(?:^|[^\w/.:-])(/submit(?:/[\w\-.~%]*)*(?:\?[^\s"'<>]*)?)(?:\W|$)`)
	formActionPattern  = regexp.MustCompile(`(?i)\baction\s*=\s*["'](https?://[^"'\s]+)["']`)
)

// Match is a resolved submission endpoint together with the strategy that found it
type Match struct {
	URL      string
	Strategy string
}

type endpointStrategy struct {
	name  string
	match func(html string, base *url.URL) (string, bool)
}

// Options configures an Extractor
type Options struct {
	// FallbackBaseURL resolves a bare "/submit" mention when the page URL is unknown.
	// Empty disables the fallback.
	FallbackBaseURL string
}

// Extractor runs the payload and endpoint strategies. It holds no per-page state.
type Extractor struct {
	fallback   *url.URL
	strategies []endpointStrategy
}

// New - creates extractor with strategies in precedence order
func New(opts Options) (*Extractor, error) {
	e := &Extractor{}

	if opts.FallbackBaseURL != "" {
		fallback, err := parseAbsolute(opts.FallbackBaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid fallback base URL: %w", err)
		}
		e.fallback = fallback
	}

	e.strategies = []endpointStrategy{
		{name: StrategyFormAction, match: matchFormAction},
		{name: StrategySubmitURL, match: matchSubmitField},
		{name: StrategySubmitLink, match: matchSubmitLink},
		{name: StrategySubmitPath, match: e.matchSubmitPath},
	}
	return e, nil
}

// Payload - finds a base64 block, data URIs first, then any long base64 run.
// Absence is reported with ok=false and is not an error.
func (e *Extractor) Payload(html string) (*entities.Payload, bool) {
	if m := dataURIPattern.FindStringSubmatch(html); m != nil {
		return &entities.Payload{
			Encoded:   m[2],
			MediaType: m[1],
			Decoded:   decodeBase64(m[2]),
		}, true
	}

	if run := base64RunPattern.FindString(html); run != "" {
		return &entities.Payload{
			Encoded: run,
			Decoded: decodeBase64(run),
		}, true
	}

	return nil, false
}

// Endpoint - resolves the submission URL of a page; first matching strategy wins.
// pageURL may be empty. Failure is an *entities.ExtractionError wrapping entities.ErrEndpointNotFound.
func (e *Extractor) Endpoint(html string, pageURL string) (Match, error) {
	var base *url.URL
	if pageURL != "" {
		if u, err := parseAbsolute(pageURL); err == nil {
			base = u
		}
	}

	for _, s := range e.strategies {
		candidate, ok := s.match(html, base)
		if !ok {
			continue
		}
		if _, err := parseAbsolute(candidate); err != nil {
			continue
		}
		return Match{URL: candidate, Strategy: s.name}, nil
	}

	return Match{}, &entities.ExtractionError{URL: pageURL, Err: entities.ErrEndpointNotFound}
}

// matchFormAction - absolute http(s) action of the first form carrying one.
// Forms the parser drops, such as nested ones, are caught by the raw attribute scan.
func matchFormAction(src string, _ *url.URL) (string, bool) {
	root, err := html.ParseWithOptions(strings.NewReader(src), html.ParseOptionEnableScripting(false))
	if err == nil {
		var found string
		goquery.NewDocumentFromNode(root).Find("form[action]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			action := strings.TrimSpace(s.AttrOr("action", ""))
			if isHTTPURL(action) {
				found = action
				return false
			}
			return true
		})
		if found != "" {
			return found, true
		}
	}

	for _, m := range formActionPattern.FindAllStringSubmatch(src, -1) {
		if isHTTPURL(m[1]) {
			return m[1], true
		}
	}
	return "", false
}

// matchSubmitField - quoted "submit_url": "https://..." in JSON-like text
func matchSubmitField(html string, _ *url.URL) (string, bool) {
	m := submitFieldPattern.FindStringSubmatch(html)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// matchSubmitLink - absolute http(s) URL with a /submit path mentioned in the text
func matchSubmitLink(html string, _ *url.URL) (string, bool) {
	for _, m := range submitLinkPattern.FindAllString(html, -1) {
		candidate := strings.TrimRight(m, ".,;:)")
		if isHTTPURL(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// matchSubmitPath - bare /submit mention joined to the page origin or the fallback origin
func (e *Extractor) matchSubmitPath(html string, base *url.URL) (string, bool) {
	m := submitPathPattern.FindStringSubmatch(html)
	if m == nil {
		return "", false
	}

	if base == nil {
		base = e.fallback
	}
	if base == nil {
		return "", false
	}

	ref, err := url.Parse(strings.TrimRight(m[1], ".?"))
	if err != nil {
		return "", false
	}
	origin := &url.URL{Scheme: base.Scheme, Host: base.Host}
	return origin.ResolveReference(ref).String(), true
}

func parseAbsolute(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("missing host in %q", raw)
	}
	return u, nil
}

func isHTTPURL(raw string) bool {
	lower := strings.ToLower(raw)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return false
	}
	_, err := parseAbsolute(raw)
	return err == nil
}

func decodeBase64(s string) []byte {
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b
	}
	if b, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "=")); err == nil {
		return b
	}
	return nil
}
