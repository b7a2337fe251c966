// Command fetchstub serves canned page summaries on POST /fetch for local
// development without a live content-fetch service.
package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/samibismar/calmclinic.health-sub001/internal/logger"
	"github.com/samibismar/calmclinic.health-sub001/internal/models"
)

func main() {
	if err := logger.Init("info", "console"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	port := os.Getenv("FETCHSTUB_PORT")
	if port == "" {
		port = "9000"
	}

	r := mux.NewRouter()
	r.HandleFunc("/fetch", handleFetch).Methods(http.MethodPost)

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info().Str("port", port).Msg("🚀 fetch stub starting")
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("fetch stub stopped")
	}
}

func handleFetch(w http.ResponseWriter, r *http.Request) {
	var req models.FetchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result := models.FetchResult{Summaries: []models.PageSummary{}, Errors: []string{}}
	for i, url := range req.URLs {
		if req.MaxPages > 0 && i >= req.MaxPages {
			break
		}
		result.Summaries = append(result.Summaries, models.PageSummary{
			URL:     url,
			Title:   "Stub page",
			Summary: fmt.Sprintf("Stub content from %s relevant to %q.", url, req.Query),
		})
		result.NewFetches++
	}

	log.Info().
		Int("clinic_id", req.TenantID).
		Int("pages", len(result.Summaries)).
		Int("cache_ttl_hours", req.CacheTTLHours).
		Msg("Received fetch request")

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}
