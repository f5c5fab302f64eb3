// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package genemap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleHGNC = `{
  "responseHeader": {"status": 0},
  "response": {
    "numFound": 1,
    "docs": [{
      "symbol": "CDKN2A",
      "prev_symbol": ["CDKN2", "MLM"],
      "alias_symbol": ["p16", "INK4a"]
    }]
  }
}`

const sampleHGNCEmpty = `{"response": {"numFound": 0, "docs": []}}`

func TestHGNCAliases(t *testing.T) {
	tests := []struct {
		name       string
		symbol     string
		response   string
		statusCode int
		want       []string
		wantErr    bool
	}{
		{
			name:       "found",
			symbol:     "CDKN2A",
			response:   sampleHGNC,
			statusCode: http.StatusOK,
			want:       []string{"CDKN2", "MLM", "p16", "INK4a"},
		},
		{
			name:       "unknown symbol",
			symbol:     "NOPE",
			response:   sampleHGNCEmpty,
			statusCode: http.StatusOK,
		},
		{
			name:       "server error",
			symbol:     "CDKN2A",
			response:   "oops",
			statusCode: http.StatusInternalServerError,
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/fetch/symbol/"+tt.symbol, r.URL.Path)
				assert.Equal(t, "application/json", r.Header.Get("Accept"))
				w.WriteHeader(tt.statusCode)
				w.Write([]byte(tt.response))
			}))
			defer ts.Close()

			orig := hgncAPIBase
			hgncAPIBase = ts.URL
			defer func() { hgncAPIBase = orig }()

			c := &HGNCClient{Client: ts.Client(), MaxRetries: 1}
			got, err := c.Aliases(context.Background(), tt.symbol)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHGNCAliases_ApprovedSymbolFirst(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"response":{"numFound":1,"docs":[{"symbol":"TP53","alias_symbol":["LFS1"]}]}}`))
	}))
	defer ts.Close()

	orig := hgncAPIBase
	hgncAPIBase = ts.URL
	defer func() { hgncAPIBase = orig }()

	c := &HGNCClient{Client: ts.Client()}
	got, err := c.Aliases(context.Background(), "P53")
	require.NoError(t, err)
	assert.Equal(t, []string{"TP53", "LFS1"}, got)
}
