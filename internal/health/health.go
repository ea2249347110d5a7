package health

import (
	"context"
	"net/http"
	"time"

	"dchome/internal/wire"

	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type status struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// RegisterRoutes — только /healthz (процесс жив).
func RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		wire.Write(w, req, http.StatusOK, status{Status: "ok"})
	}).Methods(http.MethodGet)
}

// RegisterRoutesWithDB — /healthz и /readyz (ping БД).
func RegisterRoutesWithDB(r *mux.Router, db *gorm.DB) {
	RegisterRoutes(r)
	r.HandleFunc("/readyz", func(w http.ResponseWriter, req *http.Request) {
		if err := ping(req.Context(), db); err != nil {
			wire.Write(w, req, http.StatusServiceUnavailable, status{Status: "unavailable", Error: err.Error()})
			return
		}
		wire.Write(w, req, http.StatusOK, status{Status: "ready"})
	}).Methods(http.MethodGet)
}

func ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}
