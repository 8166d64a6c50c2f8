package handler

import "net/http"

// HandleHealth answers the root path with a liveness message, so a browser
// or load balancer hitting the bare host sees the API is up.
//
// HTTP: GET /
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "API is running...",
	})
}
