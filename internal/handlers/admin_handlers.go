package handlers

import (
	"net/http"
	"time"
)

// TriggerSweep runs one on-demand scheduler sweep at the current wall-clock
// time. Safe to call at any moment: transitions are at-most-once regardless
// of how often sweeps run, and a sweep overlapping the ticker is skipped.
func (h *Handlers) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	claims := getClaims(r)
	if claims == nil || claims.Role != "admin" {
		writeError(w, http.StatusForbidden, "Admin access required")
		return
	}

	report := h.scheduler.Sweep(r.Context(), time.Now().UTC())

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"skipped":     report.Skipped,
		"examined":    report.Examined,
		"checked_in":  report.CheckedIn,
		"checked_out": report.CheckedOut,
		"conflicts":   report.Conflicts,
		"errors":      report.Errors,
	})
}
