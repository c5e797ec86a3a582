package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/skillcast/skillcast/pkg/api"
)

// writeError отправляет JSON ответ вида {"error": "..."}
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: message})
}
