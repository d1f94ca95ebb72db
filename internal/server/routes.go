package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket routes
	mux.HandleFunc("/ws/broadcast", s.app.WSHandler.HandleBroadcast)
	mux.HandleFunc("/ws/user/", s.app.WSHandler.HandleUser)

	// API routes - Groups
	mux.HandleFunc("/api/groups", s.handleGroupsRoute)
	mux.HandleFunc("/api/groups/", s.handleGroupRoutes) // GET/DELETE /{id}, GET /{id}/download, GET /active

	// API routes - Maintenance
	mux.HandleFunc("/api/maintenance/cleanup", s.app.MaintenanceHandler.CleanupHandler)

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleGroupsRoute routes /api/groups requests (list and submit)
func (s *Server) handleGroupsRoute(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		s.app.GroupHandler.ListHandler(w, r)
	case "POST":
		s.app.GroupHandler.SubmitHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleGroupRoutes routes /api/groups/{id} requests and subpaths
func (s *Server) handleGroupRoutes(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/groups/")
	path = strings.Trim(path, "/")

	// GET /api/groups/active
	if path == "active" {
		s.app.GroupHandler.ActiveHandler(w, r)
		return
	}

	// GET /api/groups/{id}/download
	if groupID, ok := strings.CutSuffix(path, "/download"); ok {
		if r.Method != "GET" {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.app.GroupHandler.DownloadHandler(w, r, groupID)
		return
	}

	if path == "" || strings.Contains(path, "/") {
		s.app.APIHandler.NotFoundHandler(w, r)
		return
	}

	switch r.Method {
	case "GET":
		s.app.GroupHandler.GetHandler(w, r, path)
	case "DELETE":
		s.app.GroupHandler.DeleteHandler(w, r, path)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
