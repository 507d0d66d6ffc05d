package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/felixgeelhaar/champ/internal/domain"
)

// HTTPClient calls a remote exercise generation API
type HTTPClient struct {
	baseURL    string
	apiKey     string
	chunkSize  int
	httpClient *http.Client
	// noBatch is set once the server answers 404 on the batch endpoint
	noBatch atomic.Bool
}

var _ Generator = (*HTTPClient)(nil)

// HTTPConfig configures the remote API client
type HTTPConfig struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	ChunkSize int
}

// NewHTTPClient creates a client for the generation API at cfg.BaseURL
func NewHTTPClient(cfg HTTPConfig) *HTTPClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		chunkSize:  cfg.ChunkSize,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type exerciseResponse struct {
	Success  bool             `json:"success"`
	Exercise *domain.Exercise `json:"exercise,omitempty"`
	Error    string           `json:"error,omitempty"`
}

func (c *HTTPClient) GenerateExercise(ctx context.Context, req ExerciseRequest) (*domain.Exercise, error) {
	var resp exerciseResponse
	if err := c.post(ctx, "/api/generate-exercise", req, &resp); err != nil {
		return nil, err
	}
	return resp.result()
}

type batchResponse struct {
	Success   bool               `json:"success"`
	Exercises []*domain.Exercise `json:"exercises"`
	Error     string             `json:"error,omitempty"`
}

// errNoEndpoint marks a 404 from the generation API
var errNoEndpoint = errors.New("endpoint not found")

// GenerateExerciseBatch requests every slot in one call to the batch
// endpoint. Servers without it get one request per slot in bounded chunks.
func (c *HTTPClient) GenerateExerciseBatch(ctx context.Context, req BatchRequest) ([]*domain.Exercise, error) {
	if req.Count <= 0 {
		return []*domain.Exercise{}, nil
	}
	if !c.noBatch.Load() {
		var resp batchResponse
		err := c.post(ctx, "/api/generate-exercise-batch", req, &resp)
		if err == nil {
			return resp.slots(req.Count)
		}
		if !errors.Is(err, errNoEndpoint) {
			return make([]*domain.Exercise, req.Count), err
		}
		c.noBatch.Store(true)
	}
	return fanOut(ctx, req.Count, c.chunkSize, func(ctx context.Context, i int) (*domain.Exercise, error) {
		return c.GenerateExercise(ctx, req.Slot(i))
	})
}

// slots aligns the response to count slots. Missing or null entries are
// failed slots; extra entries are ignored.
func (r *batchResponse) slots(count int) ([]*domain.Exercise, error) {
	out := make([]*domain.Exercise, count)
	if !r.Success {
		msg := r.Error
		if msg == "" {
			msg = "unsuccessful response"
		}
		return out, fmt.Errorf("%w: %s", domain.ErrGenerationFailed, msg)
	}
	n := copy(out, r.Exercises)
	for _, ex := range out[:n] {
		if ex != nil {
			return out, nil
		}
	}
	return out, fmt.Errorf("%w: %w", domain.ErrGenerationFailed, ErrEmptyResponse)
}

func (c *HTTPClient) GenerateRecap(ctx context.Context, req RecapRequest) (*domain.Exercise, error) {
	var resp exerciseResponse
	if err := c.post(ctx, "/api/generate-recap", req, &resp); err != nil {
		return nil, err
	}
	return resp.result()
}

func (r *exerciseResponse) result() (*domain.Exercise, error) {
	if !r.Success {
		msg := r.Error
		if msg == "" {
			msg = "unsuccessful response"
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrGenerationFailed, msg)
	}
	if r.Exercise == nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrGenerationFailed, ErrEmptyResponse)
	}
	return r.Exercise, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrGenerationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %w: %s", domain.ErrGenerationFailed, errNoEndpoint, path)
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("%w: API error (status %d): %s", domain.ErrGenerationFailed, resp.StatusCode, strings.TrimSpace(string(b)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %w", domain.ErrGenerationFailed, err)
	}
	return nil
}
