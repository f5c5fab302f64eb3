// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package chembl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSearch = `{
  "molecules": [
    {
      "molecule_chembl_id": "CHEMBL25",
      "pref_name": "ASPIRIN",
      "score": 18.0,
      "max_phase": "4.0",
      "therapeutic_flag": true,
      "atc_classifications": ["A01AD05", "N02BA01"],
      "molecule_structures": {
        "canonical_smiles": "CC(=O)Oc1ccccc1C(=O)O",
        "standard_inchi_key": "BSYNRYMUTXBXSQ-UHFFFAOYSA-N"
      }
    },
    {"molecule_chembl_id": "CHEMBL2", "pref_name": null}
  ],
  "page_meta": {"total_count": 2}
}`

const sampleSimilarity = `{
  "molecules": [
    {"molecule_chembl_id": "CHEMBL25", "pref_name": "ASPIRIN", "max_phase": 4, "similarity": "100"},
    {"molecule_chembl_id": "CHEMBL350343", "pref_name": null, "max_phase": null, "similarity": "72.5",
     "molecule_structures": null}
  ]
}`

func withServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)

	orig := chemblAPIBase
	chemblAPIBase = ts.URL
	t.Cleanup(func() { chemblAPIBase = orig })
	return &Client{Client: ts.Client(), MaxRetries: 1}
}

func TestLookupByName(t *testing.T) {
	c := withServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/molecule/search.json", r.URL.Path)
		assert.Equal(t, "acetylsalicylic acid", r.URL.Query().Get("q"))
		w.Write([]byte(sampleSearch))
	})

	rec, err := c.LookupByName(context.Background(), "acetylsalicylic acid")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "CHEMBL25", rec.ChEMBLID)
	assert.Equal(t, "ASPIRIN", rec.PrefName)
	require.NotNil(t, rec.MaxPhase)
	assert.Equal(t, 4.0, *rec.MaxPhase)
	require.NotNil(t, rec.SearchScore)
	assert.Equal(t, 18.0, *rec.SearchScore)
	assert.True(t, rec.TherapeuticFlag)
	assert.Equal(t, []string{"A01AD05", "N02BA01"}, rec.ATCClassifications)
	assert.Equal(t, "CC(=O)Oc1ccccc1C(=O)O", rec.SMILES)
	assert.Equal(t, "BSYNRYMUTXBXSQ-UHFFFAOYSA-N", rec.StandardInChIKey)
}

func TestLookupByName_NoHit(t *testing.T) {
	c := withServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"molecules": []}`))
	})
	rec, err := c.LookupByName(context.Background(), "nothing")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestLookupByName_Error(t *testing.T) {
	c := withServer(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "maintenance", http.StatusInternalServerError)
	})
	_, err := c.LookupByName(context.Background(), "aspirin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 500")
}

func TestSimilarByStructure(t *testing.T) {
	const smiles = "CC(=O)Oc1ccccc1C(=O)O"
	c := withServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/similarity/"+smiles+"/60.json", r.URL.Path)
		assert.Equal(t, "20", r.URL.Query().Get("limit"))
		w.Write([]byte(sampleSimilarity))
	})

	sims, err := c.SimilarByStructure(context.Background(), smiles, 60, 20)
	require.NoError(t, err)
	require.Len(t, sims, 2)

	assert.Equal(t, "CHEMBL25", sims[0].ChEMBLID)
	assert.Equal(t, 100.0, sims[0].Similarity)
	require.NotNil(t, sims[0].MaxPhase)
	assert.Equal(t, 4.0, *sims[0].MaxPhase)

	assert.Equal(t, "CHEMBL350343", sims[1].ChEMBLID)
	assert.Equal(t, 72.5, sims[1].Similarity)
	assert.Nil(t, sims[1].MaxPhase)
	assert.Empty(t, sims[1].PrefName)
}

func TestFlexFloat(t *testing.T) {
	var f flexFloat
	require.NoError(t, f.UnmarshalJSON([]byte(`""`)))
	assert.Nil(t, f.v)
	assert.Error(t, f.UnmarshalJSON([]byte(`"abc"`)))
}
