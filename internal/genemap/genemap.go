// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package genemap translates gene symbols into the Entrez identifiers the
// scoring service accepts. The dictionary comes from the LINCS gene_info
// table; symbols missing from it can be resolved through previous and
// alias symbols published by HGNC.
package genemap

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"

	"github.com/pdiddy/repurpose-engine/internal/httputil"
	"github.com/pdiddy/repurpose-engine/pkg/types"
)

// Gene-info columns.
const (
	colGeneID     = "pr_gene_id"
	colGeneSymbol = "pr_gene_symbol"
	colIsBing     = "pr_is_bing"
)

// Mapper resolves a gene symbol to an Entrez identifier. Implementations
// are read-only and safe for concurrent use.
type Mapper interface {
	Lookup(symbol string) (string, bool)
}

// Map is an in-memory symbol to Entrez dictionary.
type Map map[string]string

// Lookup implements Mapper.
func (m Map) Lookup(symbol string) (string, bool) {
	id, ok := m[symbol]
	return id, ok
}

// LoadGeneInfo reads a gene_info table from path. Gzip-compressed files
// are detected by their magic bytes.
func LoadGeneInfo(path string) (Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening gene info: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	var r io.Reader = br
	if magic, _ := br.Peek(2); bytes.Equal(magic, []byte{0x1f, 0x8b}) {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("opening gzip stream: %w", err)
		}
		defer zr.Close()
		r = zr
	}

	m, err := ParseGeneInfo(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// ParseGeneInfo parses a tab-separated gene_info table. Only rows with
// pr_is_bing equal to 1 are kept when that column is present. The first
// occurrence of a symbol wins.
func ParseGeneInfo(r io.Reader) (Map, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading gene info header: %w", err)
	}
	idCol, symCol, bingCol := -1, -1, -1
	for i, h := range header {
		switch strings.TrimSpace(h) {
		case colGeneID:
			idCol = i
		case colGeneSymbol:
			symCol = i
		case colIsBing:
			bingCol = i
		}
	}
	if idCol < 0 || symCol < 0 {
		return nil, fmt.Errorf("gene info header lacks %s or %s", colGeneID, colGeneSymbol)
	}

	m := make(Map)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading gene info: %w", err)
		}
		if idCol >= len(rec) || symCol >= len(rec) {
			continue
		}
		if bingCol >= 0 && (bingCol >= len(rec) || strings.TrimSpace(rec[bingCol]) != "1") {
			continue
		}
		sym, id := strings.TrimSpace(rec[symCol]), strings.TrimSpace(rec[idCol])
		if sym == "" || id == "" {
			continue
		}
		if _, dup := m[sym]; !dup {
			m[sym] = id
		}
	}
	return m, nil
}

// EnsureGeneInfo downloads the gene_info table to cfg.GeneInfoPath when
// the file does not exist yet. It reports whether a download happened.
func EnsureGeneInfo(ctx context.Context, client *http.Client, cfg types.ScoringConfig, w io.Writer) (bool, error) {
	if _, err := os.Stat(cfg.GeneInfoPath); err == nil {
		return false, nil
	}
	if cfg.GeneInfoURL == "" {
		return false, fmt.Errorf("gene info %s missing and no download URL configured", cfg.GeneInfoPath)
	}

	fmt.Fprintf(w, "downloading: %s\n", cfg.GeneInfoURL)
	n, err := httputil.Download(ctx, client, cfg.GeneInfoURL, cfg.GeneInfoPath, cfg.UserAgent, cfg.MaxRetries)
	if err != nil {
		return false, fmt.Errorf("downloading gene info: %w", err)
	}
	fmt.Fprintf(w, "saved: %s (%d bytes)\n", cfg.GeneInfoPath, n)
	return true, nil
}

// Translator converts symbol lists into Entrez identifier lists.
type Translator struct {
	Mapper  Mapper
	Aliases AliasSource // optional
	Logger  zerolog.Logger
}

// Translate maps symbols in order. Symbols without a direct mapping are
// retried through Aliases when one is configured; anything still
// unresolved is returned in unmapped. Identifiers are deduplicated, first
// occurrence wins. Alias lookup errors are logged and count as unmapped;
// a cancelled context stops translation.
func (t *Translator) Translate(ctx context.Context, symbols []string) (ids, unmapped []string, err error) {
	seen := make(map[string]bool, len(symbols))
	for _, sym := range symbols {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		id, ok := t.Mapper.Lookup(sym)
		if !ok && t.Aliases != nil {
			id, ok = t.viaAlias(ctx, sym)
		}
		if !ok {
			unmapped = append(unmapped, sym)
			continue
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, unmapped, nil
}

func (t *Translator) viaAlias(ctx context.Context, sym string) (string, bool) {
	aliases, err := t.Aliases.Aliases(ctx, sym)
	if err != nil {
		t.Logger.Warn().Err(err).Str("symbol", sym).Msg("alias lookup failed")
		return "", false
	}
	for _, a := range aliases {
		if id, ok := t.Mapper.Lookup(a); ok {
			t.Logger.Debug().Str("symbol", sym).Str("alias", a).Str("entrez", id).Msg("resolved through alias")
			return id, true
		}
	}
	return "", false
}
