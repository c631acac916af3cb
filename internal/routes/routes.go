package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/smartkubik/import-api/internal/handlers"
)

// NewRouter wires the import API. auth guards everything except /health.
func NewRouter(
	auth func(http.Handler) http.Handler,
	health http.HandlerFunc,
	imports *handlers.ImportHandler,
	notifications *handlers.NotificationHandler,
	ws *handlers.WebsocketHandler,
) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", health).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(auth)

	// Entity routes come first so "entities" is never taken for a job id.
	api.HandleFunc("/imports/entities/{entityType}/fields", imports.Fields).Methods(http.MethodGet)
	api.HandleFunc("/imports/entities/{entityType}/template", imports.Template).Methods(http.MethodGet)
	api.HandleFunc("/imports/entities/{entityType}/presets", imports.Presets).Methods(http.MethodGet)

	api.HandleFunc("/imports", imports.Upload).Methods(http.MethodPost)
	api.HandleFunc("/imports", imports.List).Methods(http.MethodGet)
	api.HandleFunc("/imports/{id}", imports.Get).Methods(http.MethodGet)
	api.HandleFunc("/imports/{id}", imports.Delete).Methods(http.MethodDelete)
	api.HandleFunc("/imports/{id}/mapping", imports.UpdateMapping).Methods(http.MethodPut)
	api.HandleFunc("/imports/{id}/validate", imports.Validate).Methods(http.MethodPost)
	api.HandleFunc("/imports/{id}/execute", imports.Execute).Methods(http.MethodPost)
	api.HandleFunc("/imports/{id}/errors", imports.Errors).Methods(http.MethodGet)
	api.HandleFunc("/imports/{id}/errors/export", imports.ExportErrors).Methods(http.MethodGet)
	api.HandleFunc("/imports/{id}/rollback", imports.Rollback).Methods(http.MethodPost)

	api.HandleFunc("/notifications", notifications.List).Methods(http.MethodGet)
	api.HandleFunc("/notifications/read-all", notifications.MarkAllRead).Methods(http.MethodPost)
	api.HandleFunc("/notifications/{notificationID}/read", notifications.MarkRead).Methods(http.MethodPost)

	router.Handle("/ws", auth(http.HandlerFunc(ws.Serve))).Methods(http.MethodGet)

	return router
}
