package api

import (
	"log"
	"net/http"
	"strconv"
)

const defaultHistoryLimit = 50

// getLimitParam reads the "limit" query parameter, falling back to the default.
func getLimitParam(r *http.Request) int {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 500 {
		limit = defaultHistoryLimit
	}
	return limit
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.app.Store().ListRuns(getLimitParam(r))
	if err != nil {
		log.Printf("Failed to list runs: %v", err)
		RespondWithError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}
	RespondWithJSON(w, http.StatusOK, runs)
}

func (s *Server) handleListUploads(w http.ResponseWriter, r *http.Request) {
	uploads, err := s.app.Store().ListUploads(getLimitParam(r))
	if err != nil {
		log.Printf("Failed to list uploads: %v", err)
		RespondWithError(w, http.StatusInternalServerError, "Failed to list uploads")
		return
	}
	RespondWithJSON(w, http.StatusOK, uploads)
}
