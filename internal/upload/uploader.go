// Package upload sends image files to the asset host and returns the URL
// the host serves them from.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path"
	"strings"

	"atelier/internal/config"
)

var (
	// ErrDisabled is returned when no asset host is configured.
	ErrDisabled = errors.New("uploads are not configured")
	// ErrTooLarge is returned when a file exceeds the configured limit.
	ErrTooLarge = errors.New("file too large")
	// ErrEmptyFile is returned for a file with no content.
	ErrEmptyFile = errors.New("file is empty")
)

// File is one file to upload.
type File struct {
	Name        string
	ContentType string
	Body        io.Reader
}

// Uploader stores a file and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, f File) (string, error)
}

// HTTPUploader posts files as multipart forms to an asset host.
type HTTPUploader struct {
	endpoint   string
	apiKey     string
	preset     string
	field      string
	maxBytes   int64
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPUploader creates an uploader for cfg. It fails with ErrDisabled
// when cfg has no endpoint.
func NewHTTPUploader(cfg config.UploadConfig) (*HTTPUploader, error) {
	cfg.ApplyDefaults()
	if !cfg.Enabled() {
		return nil, ErrDisabled
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &HTTPUploader{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		preset:     cfg.Preset,
		field:      cfg.FileField,
		maxBytes:   cfg.MaxBytes,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     slog.Default().With("component", "upload"),
	}, nil
}

// MaxBytes returns the size limit of one file.
func (u *HTTPUploader) MaxBytes() int64 {
	return u.maxBytes
}

// Upload implements Uploader.
func (u *HTTPUploader) Upload(ctx context.Context, f File) (string, error) {
	body, contentType, err := u.encode(f)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(respBody)}
	}

	var result struct {
		SecureURL string `json:"secure_url"`
		URL       string `json:"url"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	url := result.SecureURL
	if url == "" {
		url = result.URL
	}
	if url == "" {
		return "", fmt.Errorf("asset host returned no url")
	}
	u.logger.Info("File uploaded", "name", f.Name, "url", url)
	return url, nil
}

// encode buffers the multipart form so the size limit is enforced before
// anything is sent.
func (u *HTTPUploader) encode(f File) (io.Reader, string, error) {
	if f.Body == nil {
		return nil, "", ErrEmptyFile
	}
	data, err := io.ReadAll(io.LimitReader(f.Body, u.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read file: %w", err)
	}
	if len(data) == 0 {
		return nil, "", ErrEmptyFile
	}
	if int64(len(data)) > u.maxBytes {
		return nil, "", fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, u.maxBytes)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	name := path.Base(strings.ReplaceAll(f.Name, "\\", "/"))
	if name == "." || name == "/" {
		name = "upload"
	}
	contentType := f.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, u.field, name))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}
	if u.preset != "" {
		if err := w.WriteField("upload_preset", u.preset); err != nil {
			return nil, "", err
		}
	}
	if u.apiKey != "" {
		if err := w.WriteField("api_key", u.apiKey); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// HTTPError is a non-2xx answer of the asset host.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d %s: %s", e.StatusCode, e.Status, e.Body)
}
