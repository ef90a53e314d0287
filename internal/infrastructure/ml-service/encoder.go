package ml_service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/DRSN-tech/recommender/internal/cfg"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/jitter"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/sync/errgroup"
)

const embedPath = "/api/embed"

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

// errPermanent — ответ сервиса, который бессмысленно повторять.
type errPermanent struct{ err error }

func (p errPermanent) Error() string { return p.err.Error() }
func (p errPermanent) Unwrap() error { return p.err }

// EmbeddingService — клиент внешнего сервиса эмбеддингов с Ollama-совместимым API.
// Батчи отправляются параллельно, каждый с повторами и через общий circuit breaker.
type EmbeddingService struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[[][]float32]
	cfg        *cfg.EncoderCfg
	baseURL    string
	logger     logger.Logger
	baseDelay  time.Duration
}

func NewEmbeddingService(cfg *cfg.EncoderCfg, logger logger.Logger) *EmbeddingService {
	s := &EmbeddingService{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		logger:     logger,
		baseDelay:  time.Second,
	}

	s.breaker = gobreaker.NewCircuitBreaker[[][]float32](gobreaker.Settings{
		Name:        "embedding-service",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		IsSuccessful: func(err error) bool {
			var p errPermanent
			return err == nil || errors.As(err, &p) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warnf("circuit breaker %s: %s -> %s", name, from, to)
		},
	})

	return s
}

func (s *EmbeddingService) Dimension() int { return s.cfg.Dim }

func (s *EmbeddingService) Version() string {
	return fmt.Sprintf("ollama-%s-%d", s.cfg.Model, s.cfg.Dim)
}

// Encode возвращает эмбеддинги в порядке входных текстов.
func (s *EmbeddingService) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	const op = "EmbeddingService.Encode"

	out := make([][]float32, len(texts))
	if len(texts) == 0 {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.cfg.MaxConcurrent, 1))

	batch := max(s.cfg.BatchSize, 1)
	for start := 0; start < len(texts); start += batch {
		end := min(start+batch, len(texts))
		g.Go(func() error {
			vectors, err := s.embedWithRetry(gctx, texts[start:end])
			if err != nil {
				return err
			}
			copy(out[start:end], vectors)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, e.Wrap(op, err)
	}

	return out, nil
}

// embedWithRetry повторяет запрос с экспоненциальной задержкой, пока ошибка временная.
func (s *EmbeddingService) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	const maxDelay = 30 * time.Second

	attempts := max(s.cfg.MaxRetries, 1)
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		vectors, err := s.breaker.Execute(func() ([][]float32, error) {
			return s.embed(ctx, texts)
		})
		if err == nil {
			return vectors, nil
		}
		lastErr = err

		var p errPermanent
		if errors.As(err, &p) || errors.Is(err, gobreaker.ErrOpenState) || attempt == attempts-1 {
			break
		}

		sleepTime := jitter.ExponentialBackoff(s.baseDelay, maxDelay, attempt, jitter.DefaultJitter)
		s.logger.Warnf("embedding request failed, retrying in %v (attempt %d): %v", sleepTime, attempt+1, err)
		select {
		case <-time.After(sleepTime):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("embedding request failed: %w", lastErr)
}

func (s *EmbeddingService) embed(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Model: s.cfg.Model, Input: texts})
	if err != nil {
		return nil, errPermanent{err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+embedPath, bytes.NewReader(body))
	if err != nil {
		return nil, errPermanent{err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, errPermanent{err}
		}
		return nil, err
	}

	var res embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(res.Embeddings) != len(texts) {
		return nil, errPermanent{fmt.Errorf("got %d embeddings for %d texts", len(res.Embeddings), len(texts))}
	}
	for i, v := range res.Embeddings {
		if len(v) != s.cfg.Dim {
			return nil, errPermanent{fmt.Errorf("embedding %d: %w: got %d, want %d", i, e.ErrDimensionMismatch, len(v), s.cfg.Dim)}
		}
	}

	return res.Embeddings, nil
}
