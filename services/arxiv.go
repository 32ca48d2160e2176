package services

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"knowledge-vault/utils"
)

// arXiv identifiers: modern "2301.04567" (optional version) or the
// old-style "archive.SC/0123456" form.
var arxivIDPattern = regexp.MustCompile(`^(\d{4}\.\d{4,5}(v\d+)?|[a-z-]+(\.[A-Z]{2})?/\d{7}(v\d+)?)$`)

// ParseArxivID extracts and validates the identifier from a raw id or
// an arxiv.org URL (abs/pdf links, with or without a .pdf suffix).
func ParseArxivID(idOrURL string) (string, error) {
	raw := strings.TrimSpace(idOrURL)
	if raw == "" {
		return "", utils.NewValidationError("arxiv_id is required", nil)
	}
	if strings.Contains(raw, "arxiv.org/") {
		if i := strings.Index(raw, "arxiv.org/"); i >= 0 {
			raw = raw[i+len("arxiv.org/"):]
		}
		raw = strings.TrimPrefix(raw, "abs/")
		raw = strings.TrimPrefix(raw, "pdf/")
	}
	raw = strings.TrimSuffix(raw, ".pdf")
	if !arxivIDPattern.MatchString(raw) {
		return "", utils.NewValidationError("'"+idOrURL+"' is not a valid arXiv identifier",
			map[string]interface{}{"arxiv_id": idOrURL})
	}
	return raw, nil
}

// SafeArxivFilename turns a paper title into a vault-safe pdf filename.
func SafeArxivFilename(title string) string {
	title = strings.Join(strings.Fields(title), " ")
	var sb strings.Builder
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case strings.ContainsRune(" .-_()", r):
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	name := strings.TrimSpace(sb.String())
	if name == "" {
		name = "arxiv_paper"
	}
	return name + ".pdf"
}

// ArxivClient fetches paper metadata and PDFs from the arXiv export
// API. One metadata query resolves the title, then the PDF is pulled
// from the listed link.
type ArxivClient struct {
	http    *http.Client
	apiBase string
	pdfBase string
}

func NewArxivClient(timeout time.Duration) *ArxivClient {
	return &ArxivClient{
		http:    &http.Client{Timeout: timeout},
		apiBase: "http://export.arxiv.org/api/query",
		pdfBase: "https://arxiv.org/pdf",
	}
}

type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID    string      `xml:"id"`
	Title string      `xml:"title"`
	Links []arxivLink `xml:"link"`
}

type arxivLink struct {
	Href string `xml:"href,attr"`
	Type string `xml:"type,attr"`
}

// Fetch resolves the paper's title and downloads its PDF. maxBytes
// bounds the download; zero means no bound.
func (c *ArxivClient) Fetch(ctx context.Context, arxivID string, maxBytes int64) (string, []byte, error) {
	entry, err := c.lookup(ctx, arxivID)
	if err != nil {
		return "", nil, err
	}

	pdfURL := c.pdfBase + "/" + arxivID + ".pdf"
	for _, l := range entry.Links {
		if l.Type == "application/pdf" && l.Href != "" {
			pdfURL = l.Href
			break
		}
	}

	data, err := c.download(ctx, pdfURL, maxBytes)
	if err != nil {
		return "", nil, err
	}
	return entry.Title, data, nil
}

func (c *ArxivClient) lookup(ctx context.Context, arxivID string) (*arxivEntry, error) {
	q := url.Values{"id_list": {arxivID}, "max_results": {"1"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arxiv metadata query failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv metadata query returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	var feed arxivFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("arxiv metadata parse failed: %w", err)
	}
	// An unknown id still yields a feed, just without a resolvable
	// entry title or links.
	for i := range feed.Entries {
		e := &feed.Entries[i]
		if strings.TrimSpace(e.Title) != "" && strings.Contains(e.ID, arxivID) {
			e.Title = strings.TrimSpace(e.Title)
			return e, nil
		}
	}
	return nil, utils.NewNotFoundError("arXiv paper '" + arxivID + "' not found")
}

func (c *ArxivClient) download(ctx context.Context, pdfURL string, maxBytes int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pdfURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arxiv pdf download failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv pdf download returned %d", resp.StatusCode)
	}

	reader := io.Reader(resp.Body)
	if maxBytes > 0 {
		reader = io.LimitReader(resp.Body, maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, utils.NewValidationError("arXiv PDF exceeds the maximum file size", nil)
	}
	return data, nil
}
