// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package chembl looks up compound metadata in the ChEMBL web services:
// molecule search by name and structural similarity search by SMILES.
package chembl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pdiddy/repurpose-engine/internal/httputil"
	"github.com/pdiddy/repurpose-engine/pkg/types"
)

// chemblAPIBase is the ChEMBL data API root. Declared as a var so tests
// can substitute an httptest server.
var chemblAPIBase = "https://www.ebi.ac.uk/chembl/api/data"

// Client queries the ChEMBL API.
type Client struct {
	Client     *http.Client
	UserAgent  string
	MaxRetries int
}

// flexFloat decodes numbers ChEMBL sends either as JSON numbers or as
// numeric strings. Null and empty strings decode to nil.
type flexFloat struct {
	v *float64
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	s := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("decoding number %s: %w", data, err)
	}
	f.v = &v
	return nil
}

type molecule struct {
	ChEMBLID           string    `json:"molecule_chembl_id"`
	PrefName           *string   `json:"pref_name"`
	Score              flexFloat `json:"score"`
	MaxPhase           flexFloat `json:"max_phase"`
	TherapeuticFlag    bool      `json:"therapeutic_flag"`
	ATCClassifications []string  `json:"atc_classifications"`
	Similarity         flexFloat `json:"similarity"`
	Structures         *struct {
		CanonicalSMILES  string `json:"canonical_smiles"`
		StandardInChIKey string `json:"standard_inchi_key"`
	} `json:"molecule_structures"`
}

type moleculeList struct {
	Molecules []molecule `json:"molecules"`
}

func (m molecule) record() types.CompoundRecord {
	r := types.CompoundRecord{
		ChEMBLID:           m.ChEMBLID,
		SearchScore:        m.Score.v,
		MaxPhase:           m.MaxPhase.v,
		TherapeuticFlag:    m.TherapeuticFlag,
		ATCClassifications: m.ATCClassifications,
	}
	if m.PrefName != nil {
		r.PrefName = *m.PrefName
	}
	if m.Structures != nil {
		r.SMILES = m.Structures.CanonicalSMILES
		r.StandardInChIKey = m.Structures.StandardInChIKey
	}
	return r
}

// LookupByName returns the best molecule search hit for name, or nil when
// ChEMBL has none.
func (c *Client) LookupByName(ctx context.Context, name string) (*types.CompoundRecord, error) {
	u := fmt.Sprintf("%s/molecule/search.json?q=%s&limit=1", chemblAPIBase, url.QueryEscape(name))
	var out moleculeList
	if err := c.getJSON(ctx, u, &out); err != nil {
		return nil, fmt.Errorf("ChEMBL search %q: %w", name, err)
	}
	if len(out.Molecules) == 0 {
		return nil, nil
	}
	r := out.Molecules[0].record()
	return &r, nil
}

// SimilarByStructure returns molecules at least threshold percent similar
// to smiles, at most limit of them, in ChEMBL's order.
func (c *Client) SimilarByStructure(ctx context.Context, smiles string, threshold, limit int) ([]types.SimilarCompound, error) {
	u := fmt.Sprintf("%s/similarity/%s/%d.json?limit=%d", chemblAPIBase, url.PathEscape(smiles), threshold, limit)
	var out moleculeList
	if err := c.getJSON(ctx, u, &out); err != nil {
		return nil, fmt.Errorf("ChEMBL similarity: %w", err)
	}

	sims := make([]types.SimilarCompound, 0, len(out.Molecules))
	for _, m := range out.Molecules {
		s := types.SimilarCompound{CompoundRecord: m.record()}
		if m.Similarity.v != nil {
			s.Similarity = *m.Similarity.v
		}
		sims = append(sims, s)
	}
	return sims, nil
}

func (c *Client) getJSON(ctx context.Context, u string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, c.Client, req, c.MaxRetries)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return httputil.ReadError(resp, "ChEMBL")
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}
