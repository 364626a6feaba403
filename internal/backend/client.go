package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/hkacimi/studymate/internal/models"
)

// StatusError reports a non-success response from the backend. The body is
// kept verbatim so proxy routes can pass it through unchanged.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned status %d: %s", e.Code, e.Body)
}

// Client talks to the inference backend. Buffered JSON endpoints go through
// resty; the streaming /ask endpoint uses a plain http.Client so chunks can
// be consumed as they arrive.
type Client struct {
	rest    *resty.Client
	httpc   *http.Client
	baseURL string
}

func NewClient(baseURL string) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	return &Client{
		rest: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(60 * time.Second),
		httpc:   &http.Client{},
		baseURL: baseURL,
	}
}

// AskRequest is the multipart form posted to /ask.
type AskRequest struct {
	Query  string
	UserID string
	Locale string
	Files  []models.Attachment
}

// Ask posts the query and returns the raw response body for incremental
// consumption. A non-2xx status is drained into a StatusError before any
// stream is handed to the caller.
func (c *Client) Ask(ctx context.Context, req AskRequest) (io.ReadCloser, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	if err := form.WriteField("query", req.Query); err != nil {
		return nil, err
	}
	if err := form.WriteField("userId", req.UserID); err != nil {
		return nil, err
	}
	if req.Locale != "" {
		if err := form.WriteField("locale", req.Locale); err != nil {
			return nil, err
		}
	}
	for _, f := range req.Files {
		part, err := form.CreatePart(fileHeader(f))
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, err
		}
	}
	if err := form.Close(); err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ask", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
	}
	return resp.Body, nil
}

func fileHeader(f models.Attachment) textproto.MIMEHeader {
	contentType := f.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, f.Name))
	h.Set("Content-Type", contentType)
	return h
}

// QuizRequest is the multipart form posted to /generate-qcm.
type QuizRequest struct {
	Query  string
	UserID string
	Files  []models.Attachment
}

func (c *Client) GenerateQuiz(ctx context.Context, req QuizRequest) (*models.Quiz, error) {
	var quiz models.Quiz
	r := c.rest.R().
		SetContext(ctx).
		SetResult(&quiz).
		SetMultipartFormData(map[string]string{
			"query":   req.Query,
			"user_id": req.UserID,
		})
	for _, f := range req.Files {
		r.SetMultipartField("file", f.Name, f.ContentType, bytes.NewReader(f.Data))
	}

	resp, err := r.Post("/generate-qcm")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		return nil, &StatusError{Code: resp.StatusCode(), Body: strings.TrimSpace(resp.String())}
	}
	return &quiz, nil
}

func (c *Client) ListFiles(ctx context.Context, userID string) (*models.FileList, error) {
	var files models.FileList
	resp, err := c.rest.R().
		SetContext(ctx).
		SetQueryParam("user_id", userID).
		SetResult(&files).
		Get("/list_files")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		return nil, &StatusError{Code: resp.StatusCode(), Body: strings.TrimSpace(resp.String())}
	}
	return &files, nil
}

// Suggestions returns the backend's revision suggestions for a user,
// passed through as raw JSON.
func (c *Client) Suggestions(ctx context.Context, userID string) (json.RawMessage, error) {
	resp, err := c.rest.R().
		SetContext(ctx).
		SetQueryParam("user_id", userID).
		Get("/search")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		return nil, &StatusError{Code: resp.StatusCode(), Body: strings.TrimSpace(resp.String())}
	}
	return json.RawMessage(resp.Body()), nil
}

type DocumentAction string

const (
	DocumentUpload  DocumentAction = "upload"
	DocumentProcess DocumentAction = "process"
	DocumentDelete  DocumentAction = "delete"
	DocumentList    DocumentAction = "list"
)

// DocumentRequest is an action-routed call against the backend's document
// endpoints. The backend uses the user id to locate the embedding folder.
type DocumentRequest struct {
	UserID   string
	Action   DocumentAction
	Metadata string
	Files    []models.Attachment
}

func (c *Client) Documents(ctx context.Context, req DocumentRequest) (json.RawMessage, error) {
	action := req.Action
	if action == "" {
		action = DocumentUpload
	}

	fields := map[string]string{
		"user_id": req.UserID,
		"action":  string(action),
	}
	if req.Metadata != "" {
		fields["metadata"] = req.Metadata
	}

	r := c.rest.R().
		SetContext(ctx).
		SetMultipartFormData(fields)
	for _, f := range req.Files {
		r.SetMultipartField("file", f.Name, f.ContentType, bytes.NewReader(f.Data))
	}

	resp, err := r.Post("/documents/" + string(action))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		return nil, &StatusError{Code: resp.StatusCode(), Body: strings.TrimSpace(resp.String())}
	}
	return json.RawMessage(resp.Body()), nil
}

func (c *Client) ListDocuments(ctx context.Context, userID string) (json.RawMessage, error) {
	resp, err := c.rest.R().
		SetContext(ctx).
		SetQueryParam("user_id", userID).
		Get("/documents/list")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		return nil, &StatusError{Code: resp.StatusCode(), Body: strings.TrimSpace(resp.String())}
	}
	return json.RawMessage(resp.Body()), nil
}
