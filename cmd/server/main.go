package main

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/hkacimi/studymate/internal/api"
	"github.com/hkacimi/studymate/internal/backend"
	"github.com/hkacimi/studymate/internal/config"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	// Initialize backend client and proxy handler
	client := backend.NewClient(cfg.BackendURL)
	handler := api.NewHandler(client, logger)

	// Set up routes
	http.HandleFunc("/api/chat", handler.HandleChat)
	http.HandleFunc("/api/qcm", handler.HandleQuiz)
	http.HandleFunc("/api/list-files", handler.HandleListFiles)
	http.HandleFunc("/api/suggest", handler.HandleSuggest)
	http.HandleFunc("/api/documents", handler.HandleDocuments)

	// Serve static files
	fs := http.FileServer(http.Dir("web"))
	http.Handle("/", fs)

	// Start server
	logger.Info("Starting server",
		zap.String("addr", cfg.ListenAddr),
		zap.String("backend", cfg.BackendURL))
	if err := http.ListenAndServe(cfg.ListenAddr, nil); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
}
