package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/samibismar/calmclinic.health-sub001/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchRelevantContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/fetch", r.URL.Path)

		var req models.FetchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 7, req.TenantID)
		assert.Equal(t, []string{"https://a.test", "https://b.test"}, req.URLs)

		json.NewEncoder(w).Encode(models.FetchResult{
			Summaries:  []models.PageSummary{{URL: "https://a.test", Title: "A", Summary: "about a"}},
			NewFetches: 1,
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/")
	res, err := c.FetchRelevantContent(context.Background(), models.FetchRequest{
		Query:    "q",
		TenantID: 7,
		MaxPages: 2,
		URLs:     []string{"https://a.test", "https://b.test"},
	})
	require.NoError(t, err)
	require.Len(t, res.Summaries, 1)
	assert.Equal(t, "about a", res.Summaries[0].Summary)
	assert.Equal(t, 1, res.NewFetches)
}

func TestFetchRelevantContent_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream crawler down", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).FetchRelevantContent(context.Background(), models.FetchRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "upstream crawler down")
}

func TestFetchRelevantContent_RespectsDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := NewClient(srv.URL).FetchRelevantContent(ctx, models.FetchRequest{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
