package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"pcapfile/internal/engine"
)

const maxUploadSize = 100 << 20 // 100 MB

// RegisterRoutes sets up all HTTP routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, eng *engine.Engine, defaultLayers int) {
	// WebSocket endpoint
	mux.HandleFunc("/ws", HandleWebSocket(eng))

	// Savefile upload
	mux.HandleFunc("/api/upload", handleUpload(eng, defaultLayers))

	mux.HandleFunc("/api/summary", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, eng.Summary())
	})
	mux.HandleFunc("/api/flows", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, eng.Flows())
	})
}

func handleUpload(eng *engine.Engine, defaultLayers int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST only", http.StatusMethodNotAllowed)
			return
		}

		layers := defaultLayers
		if v := r.URL.Query().Get("layers"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				http.Error(w, "layers must be a non-negative integer", http.StatusBadRequest)
				return
			}
			layers = n
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			http.Error(w, "File too large (max 100MB)", http.StatusBadRequest)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "Missing file", http.StatusBadRequest)
			return
		}
		defer file.Close()

		summary, err := eng.LoadCapture(r.Context(), header.Filename, file, layers)
		if err != nil {
			logrus.WithError(err).WithField("file", header.Filename).Warn("Rejected upload")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(summary)
			return
		}

		writeJSON(w, summary)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Warn("Failed to write response")
	}
}
