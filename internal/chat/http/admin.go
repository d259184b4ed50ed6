package http

import (
	"net/http"

	"github.com/vtype/vtype/internal/chat/service"
	"github.com/vtype/vtype/pkg/httpx"
	"github.com/vtype/vtype/pkg/slogx"
)

// CleanupHandler runs every cleanup sweep concurrently and reports before and
// after key counts.
type CleanupHandler struct {
	CleanupService *service.CleanupService
}

func (h *CleanupHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	report, err := h.CleanupService.RunAll(ctx)
	if err != nil {
		log.Error("manual cleanup failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Cleanup failed", "")
		return
	}

	log.Info("manual cleanup completed",
		"access_cleaned", report.AccessTokensCleaned,
		"refresh_cleaned", report.RefreshTokensCleaned,
		"sessions_cleaned", report.SessionsCleaned,
	)
	httpx.WriteJSON(w, http.StatusOK, report)
}

// StoreStatsHandler reports per-category key counts without sweeping.
type StoreStatsHandler struct {
	CleanupService *service.CleanupService
}

func (h *StoreStatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	stats, err := h.CleanupService.Stats(r.Context())
	if err != nil {
		slogx.FromContext(r.Context()).Error("failed to read store stats", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to read stats", "")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, stats)
}
