package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/hkacimi/studymate/internal/backend"
	"github.com/hkacimi/studymate/internal/models"
)

// maxUploadBytes caps the in-memory portion of a parsed multipart form.
const maxUploadBytes = 32 << 20

// Handler exposes the same-origin proxy routes consumed by the web UI.
// Each route forwards form data to the backend and returns its response,
// streaming where the backend streams.
type Handler struct {
	backend *backend.Client
	logger  *zap.Logger
}

func NewHandler(client *backend.Client, logger *zap.Logger) *Handler {
	return &Handler{
		backend: client,
		logger:  logger,
	}
}

// HandleChat forwards a chat query and streams the backend's plain-text
// answer through with per-chunk flushes.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	query := r.FormValue("query")
	if query == "" {
		http.Error(w, "Query is required", http.StatusBadRequest)
		return
	}

	files, err := formAttachments(r)
	if err != nil {
		h.logger.Error("Failed to read uploaded files", zap.Error(err))
		http.Error(w, "Invalid file upload", http.StatusBadRequest)
		return
	}

	body, err := h.backend.Ask(r.Context(), backend.AskRequest{
		Query:  query,
		UserID: r.FormValue("userId"),
		Locale: r.FormValue("locale"),
		Files:  files,
	})
	if err != nil {
		// Backend error bodies pass through verbatim with their status.
		var statusErr *backend.StatusError
		if errors.As(err, &statusErr) {
			http.Error(w, statusErr.Body, statusErr.Code)
			return
		}
		h.logger.Error("Failed to reach backend", zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 4096)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				h.logger.Debug("Client went away mid-stream", zap.Error(err))
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr == io.EOF {
			return
		}
		if readErr != nil {
			h.logger.Error("Backend stream failed", zap.Error(readErr))
			return
		}
	}
}

// HandleQuiz forwards a quiz-generation request. When the backend is
// unreachable a fixed sample quiz is returned so the UI stays usable.
func (h *Handler) HandleQuiz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	query := r.FormValue("query")
	if query == "" {
		writeJSONError(w, "Query is required", http.StatusBadRequest)
		return
	}
	userID := r.FormValue("userId")
	if userID == "" {
		writeJSONError(w, "User ID is required", http.StatusBadRequest)
		return
	}

	files, err := formAttachments(r)
	if err != nil {
		h.logger.Error("Failed to read uploaded files", zap.Error(err))
		writeJSONError(w, "Invalid file upload", http.StatusBadRequest)
		return
	}

	quiz, err := h.backend.GenerateQuiz(r.Context(), backend.QuizRequest{
		Query:  query,
		UserID: userID,
		Files:  files,
	})
	if err != nil {
		var statusErr *backend.StatusError
		if errors.As(err, &statusErr) {
			writeJSONError(w, statusErr.Body, statusErr.Code)
			return
		}
		h.logger.Warn("Backend unreachable, serving sample quiz", zap.Error(err))
		h.writeJSON(w, mockQuiz(query))
		return
	}

	h.writeJSON(w, quiz)
}

func (h *Handler) HandleListFiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeJSONError(w, "Missing user_id", http.StatusBadRequest)
		return
	}

	files, err := h.backend.ListFiles(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list files",
			zap.Error(err),
			zap.String("user_id", userID))
		h.forwardError(w, err)
		return
	}

	h.writeJSON(w, files)
}

func (h *Handler) HandleSuggest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeJSONError(w, "Missing user_id", http.StatusBadRequest)
		return
	}

	data, err := h.backend.Suggestions(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to fetch suggestions",
			zap.Error(err),
			zap.String("user_id", userID))
		h.forwardError(w, err)
		return
	}

	h.writeJSON(w, map[string]json.RawMessage{"data": data})
}

// HandleDocuments routes document operations (upload, process, delete,
// list) to the matching backend endpoint.
func (h *Handler) HandleDocuments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleDocumentsPost(w, r)
	case http.MethodGet:
		h.handleDocumentsGet(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleDocumentsPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	userID := r.FormValue("userId")
	if userID == "" {
		writeJSONError(w, "User ID is required", http.StatusBadRequest)
		return
	}

	action := backend.DocumentAction(r.FormValue("action"))
	if action == "" {
		action = backend.DocumentUpload
	}

	files, err := formAttachments(r)
	if err != nil {
		h.logger.Error("Failed to read uploaded files", zap.Error(err))
		writeJSONError(w, "Invalid file upload", http.StatusBadRequest)
		return
	}
	if action == backend.DocumentUpload && len(files) == 0 {
		writeJSONError(w, "At least one file is required for upload", http.StatusBadRequest)
		return
	}

	result, err := h.backend.Documents(r.Context(), backend.DocumentRequest{
		UserID:   userID,
		Action:   action,
		Metadata: r.FormValue("metadata"),
		Files:    files,
	})
	if err != nil {
		h.logger.Error("Document operation failed",
			zap.Error(err),
			zap.String("action", string(action)),
			zap.String("user_id", userID))
		h.forwardError(w, err)
		return
	}

	h.writeRawJSON(w, result)
}

func (h *Handler) handleDocumentsGet(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeJSONError(w, "User ID is required", http.StatusBadRequest)
		return
	}

	result, err := h.backend.ListDocuments(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list documents",
			zap.Error(err),
			zap.String("user_id", userID))
		h.forwardError(w, err)
		return
	}

	h.writeRawJSON(w, result)
}

// forwardError passes backend status errors through verbatim and hides
// everything else behind a generic 500.
func (h *Handler) forwardError(w http.ResponseWriter, err error) {
	var statusErr *backend.StatusError
	if errors.As(err, &statusErr) {
		http.Error(w, statusErr.Body, statusErr.Code)
		return
	}
	writeJSONError(w, "Internal Server Error", http.StatusInternalServerError)
}

func (h *Handler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (h *Handler) writeRawJSON(w http.ResponseWriter, raw json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(raw); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func formAttachments(r *http.Request) ([]models.Attachment, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	var out []models.Attachment
	for _, header := range r.MultipartForm.File["file"] {
		f, err := header.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, err
		}
		out = append(out, models.Attachment{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return out, nil
}

// mockQuiz is the sample quiz served when the backend cannot be reached.
func mockQuiz(query string) *models.Quiz {
	return &models.Quiz{
		Title:       "Sample Quiz",
		Description: `Generated quiz for: "` + query + `"`,
		Questions: []models.QuizQuestion{
			{
				ID:          1,
				Question:    "What is the main topic discussed?",
				Options:     []string{"Option A", "Option B", "Option C", "Option D"},
				Correct:     0,
				Explanation: "This is a sample explanation for demonstration purposes.",
			},
			{
				ID:          2,
				Question:    "Which of the following is correct?",
				Options:     []string{"First choice", "Second choice", "Third choice", "Fourth choice"},
				Correct:     1,
				Explanation: "This is another sample explanation.",
			},
		},
	}
}
