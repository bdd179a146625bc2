// internal/tools/brand.go
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

const maxBrandPageChars = 50000

// BrandLookup fetches a brand's homepage and converts it to markdown so
// the model can read what the company does during brand discovery.
type BrandLookup struct {
	client *http.Client
}

// NewBrandLookup creates a new BrandLookup tool.
func NewBrandLookup() *BrandLookup {
	return &BrandLookup{
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (b *BrandLookup) Name() string { return "brand_lookup" }
func (b *BrandLookup) Description() string {
	return "Fetch a brand's website and return its content as markdown"
}
func (b *BrandLookup) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"domain": {"type": "string", "description": "The brand's domain, e.g. acme.com"}
		},
		"required": ["domain"]
	}`)
}

func (b *BrandLookup) Execute(ctx context.Context, inv *Invocation) (string, error) {
	var params struct {
		Domain string `json:"domain"`
	}
	if err := json.Unmarshal(inv.Args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	if params.Domain == "" {
		return "", fmt.Errorf("domain is required")
	}

	target := params.Domain
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = "https://" + target
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Eve/1.0")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch site: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP error: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	md, err := htmltomarkdown.ConvertString(string(body))
	if err != nil {
		return "", fmt.Errorf("convert to markdown: %w", err)
	}

	if len(md) > maxBrandPageChars {
		md = md[:maxBrandPageChars] + "\n\n[Content truncated]"
	}

	return md, nil
}
