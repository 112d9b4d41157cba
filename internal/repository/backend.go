package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"gamelend/internal/domain"
	"gamelend/internal/pkg/apperr"
)

const maxErrorBody = 4 << 10

// BackendClient performs authenticated JSON calls against the REST backend.
// It is safe for concurrent use; pollers and actions share one instance.
type BackendClient struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.SugaredLogger
}

func NewBackendClient(baseURL string, timeout time.Duration, log *zap.SugaredLogger) *BackendClient {
	return &BackendClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

type call struct {
	op             string
	method         string
	path           string
	body           any
	out            any
	idempotencyKey string
}

func (b *BackendClient) do(ctx context.Context, sess *domain.Session, c call) error {
	if !sess.Authenticated() {
		return apperr.New(apperr.KindAuthorization, c.op, "no session token")
	}

	var reader io.Reader
	if c.body != nil {
		raw, err := json.Marshal(c.body)
		if err != nil {
			return apperr.Wrap(apperr.KindInternal, c.op, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, c.method, b.baseURL+c.path, reader)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, c.op, err)
	}
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	req.Header.Set("Accept", "application/json")
	if c.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", c.idempotencyKey)
	}

	start := time.Now()
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.KindNetwork, c.op, err)
	}
	defer resp.Body.Close()

	b.log.Debugw("backend call",
		"op", c.op,
		"method", c.method,
		"path", c.path,
		"status", resp.StatusCode,
		"latency", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return apperr.Wrap(kindForStatus(resp.StatusCode), c.op,
			fmt.Errorf("http=%d body=%s", resp.StatusCode, bytes.TrimSpace(raw)))
	}

	if c.out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(c.out); err != nil {
		return apperr.Wrap(apperr.KindInternal, c.op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func kindForStatus(status int) apperr.Kind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperr.KindAuthorization
	case http.StatusConflict:
		return apperr.KindConflict
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return apperr.KindValidation
	case http.StatusNotFound:
		return apperr.KindNotFound
	default:
		return apperr.KindInternal
	}
}
