// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/chat"
	"github.com/pdiddy/research-assistant/internal/logging"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Get().Warn("encoding response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError maps chat.ErrNotFound to 404 and anything else to 500.
func writeStoreError(w http.ResponseWriter, err error, notFound string) {
	if errors.Is(err, chat.ErrNotFound) {
		writeError(w, http.StatusNotFound, notFound)
		return
	}
	logging.Get().Error("store error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, err.Error())
}

// pathID returns the {id} route variable. Routes only match digits.
func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}
