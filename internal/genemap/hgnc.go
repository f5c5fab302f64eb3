// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package genemap

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pdiddy/repurpose-engine/internal/httputil"
)

// hgncAPIBase is the HGNC REST endpoint. Declared as a var so tests can
// substitute an httptest server.
var hgncAPIBase = "https://rest.genenames.org"

// AliasSource returns alternative symbols for a gene symbol, most
// authoritative first.
type AliasSource interface {
	Aliases(ctx context.Context, symbol string) ([]string, error)
}

// HGNCClient looks up previous and alias symbols through the HGNC REST
// fetch endpoint.
type HGNCClient struct {
	Client     *http.Client
	UserAgent  string
	MaxRetries int
}

type hgncResponse struct {
	Response struct {
		NumFound int `json:"numFound"`
		Docs     []struct {
			Symbol      string   `json:"symbol"`
			PrevSymbol  []string `json:"prev_symbol"`
			AliasSymbol []string `json:"alias_symbol"`
		} `json:"docs"`
	} `json:"response"`
}

// Aliases returns the approved symbol, previous symbols and alias symbols
// of the first HGNC record matching symbol. A symbol HGNC does not know
// yields no aliases and no error.
func (c *HGNCClient) Aliases(ctx context.Context, symbol string) ([]string, error) {
	u := fmt.Sprintf("%s/fetch/symbol/%s", hgncAPIBase, url.PathEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, c.Client, req, c.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("HGNC request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, httputil.ReadError(resp, "HGNC")
	}

	var body hgncResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("parsing HGNC response: %w", err)
	}
	if body.Response.NumFound == 0 || len(body.Response.Docs) == 0 {
		return nil, nil
	}

	doc := body.Response.Docs[0]
	var out []string
	if doc.Symbol != "" && doc.Symbol != symbol {
		out = append(out, doc.Symbol)
	}
	out = append(out, doc.PrevSymbol...)
	out = append(out, doc.AliasSymbol...)
	return out, nil
}
