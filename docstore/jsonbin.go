package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultJSONBinURL is the JSONBin v3 API root.
const DefaultJSONBinURL = "https://api.jsonbin.io/v3"

// StatusError reports a non-2xx response from a document backend.
type StatusError struct {
	Op   string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d", e.Op, e.Code)
}

// Temporary reports whether retrying the request might succeed.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// JSONBin stores the document in a single JSONBin bin.
type JSONBin struct {
	client  *http.Client
	logger  *slog.Logger
	baseURL string
	binID   string
	apiKey  string
}

// NewJSONBin creates a JSONBin backend. A nil client gets a 30 second timeout.
func NewJSONBin(baseURL, binID, apiKey string, client *http.Client, logger *slog.Logger) *JSONBin {
	if baseURL == "" {
		baseURL = DefaultJSONBinURL
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &JSONBin{
		client:  client,
		logger:  logger,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		binID:   binID,
		apiKey:  apiKey,
	}
}

type jsonbinRecord struct {
	Record Document `json:"record"`
}

// Get reads the latest version of the bin.
func (j *JSONBin) Get(ctx context.Context) (Document, error) {
	url := j.baseURL + "/b/" + j.binID + "/latest"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Master-Key", j.apiKey)

	body, err := j.do(req, "get bin")
	if err != nil {
		return nil, err
	}

	var rec jsonbinRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("decode bin: %w", err)
	}
	if rec.Record == nil {
		return Document{}, nil
	}
	return rec.Record, nil
}

// Put replaces the whole bin with doc. Versioning is disabled so the bin
// holds only the latest document.
func (j *JSONBin) Put(ctx context.Context, doc Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	url := j.baseURL + "/b/" + j.binID
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Master-Key", j.apiKey)
	req.Header.Set("X-Bin-Versioning", "false")

	_, err = j.do(req, "put bin")
	return err
}

func (j *JSONBin) do(req *http.Request, op string) ([]byte, error) {
	startTime := time.Now()
	resp, err := j.client.Do(req)
	duration := time.Since(startTime)
	if err != nil {
		j.logger.Warn("JSONBin request failed",
			"method", req.Method,
			"duration_ms", duration.Milliseconds(),
			"error", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			j.logger.Warn("Failed to close response body", "error", closeErr)
		}
	}()

	j.logger.Debug("JSONBin request completed",
		"method", req.Method,
		"status_code", resp.StatusCode,
		"duration_ms", duration.Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Op: op, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", op, err)
	}
	return body, nil
}
