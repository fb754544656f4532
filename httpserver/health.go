package httpserver

import (
	"net/http"
	"time"
)

// healthStatus is the body of the health and drain endpoints.
type healthStatus struct {
	Status  string `json:"status"`
	Records int    `json:"records"`
	Ledger  string `json:"ledger"`
	Storage string `json:"storage"`
}

func (srv *Server) status(r *http.Request, status string) (healthStatus, bool) {
	storeName, storeUp := srv.handler.registry.StoreStatus(r.Context())
	return healthStatus{
		Status:  status,
		Records: srv.handler.registry.Count(),
		Ledger:  srv.handler.ledger.Name(),
		Storage: storeName,
	}, storeUp
}

func (srv *Server) handleLivenessCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthStatus{Status: "alive"})
}

// handleReadinessCheck fails while draining or while the state store is
// unreachable, since every write would be refused with state_unavailable.
func (srv *Server) handleReadinessCheck(w http.ResponseWriter, r *http.Request) {
	status, storeUp := srv.status(r, "ready")
	switch {
	case !srv.isReady.Load():
		status.Status = "draining"
	case !storeUp:
		status.Status = "state storage unavailable"
		srv.log.Warn("Readiness check failed", "storage", status.Storage)
	default:
		writeJSON(w, http.StatusOK, status)
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, status)
}

func (srv *Server) handleDrain(w http.ResponseWriter, r *http.Request) {
	status, _ := srv.status(r, "draining")
	if !srv.isReady.Swap(false) {
		status.Status = "already draining"
		writeJSON(w, http.StatusOK, status)
		return
	}

	srv.log.Info("Server marked as not ready", "records", status.Records)

	srv.drainMu.Lock()
	srv.drainTimer = time.AfterFunc(srv.cfg.DrainDuration, func() {
		srv.log.Info("Drain period completed")
	})
	srv.drainMu.Unlock()

	writeJSON(w, http.StatusOK, status)
}

func (srv *Server) handleUndrain(w http.ResponseWriter, r *http.Request) {
	status, _ := srv.status(r, "ready")
	if srv.isReady.Swap(true) {
		status.Status = "already ready"
		writeJSON(w, http.StatusOK, status)
		return
	}

	srv.drainMu.Lock()
	if srv.drainTimer != nil {
		srv.drainTimer.Stop()
		srv.drainTimer = nil
	}
	srv.drainMu.Unlock()

	srv.log.Info("Server marked as ready")
	writeJSON(w, http.StatusOK, status)
}
