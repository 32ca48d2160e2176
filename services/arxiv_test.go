package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"knowledge-vault/utils"
)

func TestParseArxivID(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"2301.04567", "2301.04567"},
		{"2301.04567v2", "2301.04567v2"},
		{"  2301.04567 ", "2301.04567"},
		{"https://arxiv.org/abs/2301.04567", "2301.04567"},
		{"https://arxiv.org/pdf/2301.04567.pdf", "2301.04567"},
		{"arxiv.org/pdf/2301.04567v3", "2301.04567v3"},
		{"math/0211159", "math/0211159"},
		{"cs.LG/0123456v1", "cs.LG/0123456v1"},
	}
	for _, c := range cases {
		got, err := ParseArxivID(c.in)
		if err != nil {
			t.Errorf("ParseArxivID(%q) failed: %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseArxivID(%q) = %q, want %q", c.in, got, c.want)
		}
	}

	bad := []string{"", "  ", "not-an-id", "2301", "https://example.com/2301.04567", "12345.6"}
	for _, in := range bad {
		if _, err := ParseArxivID(in); err == nil {
			t.Errorf("expected rejection for %q", in)
		}
	}
}

func TestSafeArxivFilename(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Attention Is All You Need", "Attention Is All You Need.pdf"},
		{"Deep  Learning:\n A Survey?", "Deep Learning_ A Survey_.pdf"},
		{"", "arxiv_paper.pdf"},
		{"///", "arxiv_paper.pdf"},
	}
	for _, c := range cases {
		if got := SafeArxivFilename(c.in); got != c.want {
			t.Errorf("SafeArxivFilename(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

const arxivFeedXML = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/2301.04567v1</id>
    <title>  A Paper
  About Vectors  </title>
    <link href="%s" type="application/pdf"/>
  </entry>
</feed>`

func TestArxivFetch(t *testing.T) {
	pdfBody := []byte("%PDF-1.4 fake body")
	pdfSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(pdfBody)
	}))
	defer pdfSrv.Close()

	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("id_list"); got != "2301.04567" {
			t.Errorf("id_list = %q", got)
		}
		w.Write([]byte(fmt.Sprintf(arxivFeedXML, pdfSrv.URL)))
	}))
	defer apiSrv.Close()

	client := NewArxivClient(5 * time.Second)
	client.apiBase = apiSrv.URL
	client.pdfBase = pdfSrv.URL

	title, data, err := client.Fetch(context.Background(), "2301.04567", 0)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if title != "A Paper\n  About Vectors" {
		t.Fatalf("title = %q", title)
	}
	if string(data) != string(pdfBody) {
		t.Fatalf("pdf bytes mismatch: %q", data)
	}
}

func TestArxivFetchUnknownID(t *testing.T) {
	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<feed xmlns="http://www.w3.org/2005/Atom"><entry><title></title></entry></feed>`))
	}))
	defer apiSrv.Close()

	client := NewArxivClient(5 * time.Second)
	client.apiBase = apiSrv.URL

	_, _, err := client.Fetch(context.Background(), "2301.99999", 0)
	if err == nil {
		t.Fatal("expected not-found for an unresolvable id")
	}
	if !utils.IsNotFound(err) {
		t.Fatalf("expected a not-found error, got %v", err)
	}
}

func TestArxivFetchSizeBound(t *testing.T) {
	pdfSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 2048))
	}))
	defer pdfSrv.Close()

	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(fmt.Sprintf(arxivFeedXML, pdfSrv.URL)))
	}))
	defer apiSrv.Close()

	client := NewArxivClient(5 * time.Second)
	client.apiBase = apiSrv.URL
	client.pdfBase = pdfSrv.URL

	_, _, err := client.Fetch(context.Background(), "2301.04567", 1024)
	if err == nil {
		t.Fatal("expected rejection for an oversized download")
	}
	if !utils.IsValidation(err) {
		t.Fatalf("expected a validation error, got %v", err)
	}
}
