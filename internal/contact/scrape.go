package contact

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Paths worth following from the home page when it carries no address.
var contactLinkPatterns = []string{
	"/contact", "/about", "/team", "/company",
	"/hello", "/reach", "/get-in-touch", "/connect",
}

const maxPageBytes = 1 << 20 // 1 MiB is plenty for a contact page

// scrapeSite fetches the company root page plus up to maxLinks contact
// pages and returns every valid address found, deduplicated. Fetch
// failures are logged and skipped; an unreachable site just yields no
// addresses.
func (d *Discoverer) scrapeSite(ctx context.Context, apex string) []string {
	root := "https://" + apex
	seen := make(map[string]bool)
	var emails []string

	collect := func(pageURL string) *goquery.Document {
		doc, err := d.fetchPage(ctx, pageURL)
		if err != nil {
			log.Printf("Contact scrape: %v", err)
			return nil
		}
		for _, e := range pageEmails(doc, apex) {
			if !seen[e] {
				seen[e] = true
				emails = append(emails, e)
			}
		}
		return doc
	}

	doc := collect(root)
	if doc == nil {
		return nil
	}

	followed := 0
	for _, link := range contactLinks(doc, root) {
		if followed >= d.maxLinks {
			break
		}
		followed++
		collect(link)
	}

	return emails
}

func (d *Discoverer) fetchPage(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", pageURL, err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; sponsorscan/1.0)")

	resp, err := d.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s returned status %d", pageURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", pageURL, err)
	}
	return doc, nil
}

// pageEmails pulls addresses from mailto links and visible text.
func pageEmails(doc *goquery.Document, apex string) []string {
	var emails []string
	seen := make(map[string]bool)

	add := func(raw string) {
		e := CleanEmail(raw)
		if e == "" || seen[e] || !KeepEmail(e, apex) {
			return
		}
		seen[e] = true
		emails = append(emails, e)
	}

	doc.Find(`a[href^="mailto:"]`).Each(func(i int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		addr := strings.TrimPrefix(href, "mailto:")
		if q := strings.Index(addr, "?"); q >= 0 {
			addr = addr[:q]
		}
		add(addr)
	})

	for _, m := range emailRegex.FindAllString(doc.Text(), -1) {
		add(m)
	}

	return emails
}

// contactLinks returns absolute URLs of contact-ish pages linked from
// the document, in document order.
func contactLinks(doc *goquery.Document, base string) []string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil
	}

	var links []string
	seen := make(map[string]bool)

	doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		u, err := baseURL.Parse(href)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return
		}
		// Stay on the same site.
		if u.Hostname() != baseURL.Hostname() && !strings.HasSuffix(u.Hostname(), "."+baseURL.Hostname()) {
			return
		}
		path := strings.ToLower(strings.TrimSuffix(u.Path, "/"))
		for _, p := range contactLinkPatterns {
			if strings.HasSuffix(path, p) {
				abs := u.String()
				if !seen[abs] {
					seen[abs] = true
					links = append(links, abs)
				}
				return
			}
		}
	})

	return links
}

// bestEmail picks the highest-priority address for the domain.
func bestEmail(emails []string, apex string) string {
	best := ""
	bestScore := -1
	for _, e := range emails {
		if s := Priority(e, apex); s > bestScore {
			best, bestScore = e, s
		}
	}
	return best
}
