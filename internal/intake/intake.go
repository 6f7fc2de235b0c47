package intake

import (
	"bytes"
	"io"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"WaybackArchiver/internal/domain"
)

var urlExpr = regexp.MustCompile(`https?://[^\s"'<>\\)\]}]+`)

// Parse splits raw text on line boundaries and keeps only lines that are
// valid absolute http(s) URLs. Invalid lines are dropped silently; pasted
// lists are expected to be partially junk.
func Parse(raw string) []string {
	var addresses []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if IsValidAddress(line) {
			addresses = append(addresses, line)
		}
	}
	return addresses
}

// ExtractFromBlob pulls URL-shaped substrings out of unstructured file
// content (CSV, plain text, HTML bookmark exports), independent of line
// structure. Bytes are decoded to UTF-8 first; for HTML content the href
// attributes are collected as well. Order of first occurrence is preserved.
func ExtractFromBlob(content []byte) []string {
	decoded := decodeToUTF8(content)

	var candidates []string
	if looksLikeHTML(decoded) {
		candidates = append(candidates, extractHrefs(decoded)...)
	}
	candidates = append(candidates, urlExpr.FindAllString(decoded, -1)...)

	seen := map[string]struct{}{}
	var addresses []string
	for _, candidate := range candidates {
		candidate = strings.TrimRight(candidate, ".,;")
		if !IsValidAddress(candidate) {
			continue
		}
		if _, ok := seen[candidate]; ok {
			continue
		}
		seen[candidate] = struct{}{}
		addresses = append(addresses, candidate)
	}
	return addresses
}

// IsValidAddress reports whether s parses as an absolute URL with an
// explicit http or https scheme and a host.
func IsValidAddress(s string) bool {
	if s == "" {
		return false
	}
	parsed, err := url.Parse(s)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	return parsed.Host != ""
}

// NormalizedKey derives the comparison key of an address: lower-cased host,
// "www." prefix stripped, fragment dropped, trailing-slash-only path
// differences collapsed. Scheme, path, and query are retained. The key is
// used for deduplication and archive matching, never shown to the user.
func NormalizedKey(address string) string {
	parsed, err := url.Parse(address)
	if err != nil {
		return address
	}

	host := strings.ToLower(parsed.Host)
	host = strings.TrimPrefix(host, "www.")

	path := strings.TrimSuffix(parsed.EscapedPath(), "/")

	key := parsed.Scheme + "://" + host + path
	if parsed.RawQuery != "" {
		key += "?" + parsed.RawQuery
	}
	return key
}

// Deduplicate groups addresses by normalized key. The first occurrence in
// input order wins as canonical; later ones are reported as duplicates and
// excluded. The unique slice preserves original input order.
func Deduplicate(addresses []string) ([]string, []domain.Duplicate) {
	canonical := map[string]string{}
	var unique []string
	var duplicates []domain.Duplicate

	for _, address := range addresses {
		key := NormalizedKey(address)
		if first, ok := canonical[key]; ok {
			duplicates = append(duplicates, domain.Duplicate{Address: address, DuplicateOf: first})
			continue
		}
		canonical[key] = address
		unique = append(unique, address)
	}

	return unique, duplicates
}

func decodeToUTF8(content []byte) string {
	reader, err := charset.NewReader(bytes.NewReader(content), "")
	if err != nil {
		return string(content)
	}
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return string(content)
	}
	return string(decoded)
}

func looksLikeHTML(content string) bool {
	lower := strings.ToLower(content)
	return strings.Contains(lower, "<a ") || strings.Contains(lower, "<html")
}

func extractHrefs(content string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil
	}

	var links []string
	doc.Find("a[href]").Each(func(i int, sel *goquery.Selection) {
		if href, ok := sel.Attr("href"); ok {
			links = append(links, strings.TrimSpace(href))
		}
	})
	return links
}
