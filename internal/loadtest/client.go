package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/posfit/internal/domain/model"
	"github.com/okian/posfit/pkg/logger"
)

// HTTPClient wraps http.Client with timeout.
type HTTPClient struct {
	client *http.Client
}

func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: timeout}}
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with a JSON body.
func (c *HTTPClient) Post(ctx context.Context, url string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// scoreRequest mirrors the body accepted by POST /score.
type scoreRequest struct {
	PlayerID        string             `json:"player_id"`
	NaturalPosition string             `json:"natural_position"`
	Overall         *float64           `json:"overall,omitempty"`
	Attributes      map[string]float64 `json:"attributes"`
}

// scorePlayers posts every player to /score using a worker pool and returns
// the decoded results indexed like players. Failed requests leave a zero Result.
func scorePlayers(ctx context.Context, cfg *Config, players []model.Player, stats *Stats) []model.Result {
	log := logger.Get()
	log.Info(ctx, "submitting players", logger.Int("players", len(players)), logger.Int("workers", cfg.Workers))

	client := newHTTPClient(cfg.Timeout)
	url := cfg.BaseURL + "/score"
	results := make([]model.Result, len(players))

	var submitted, failed atomic.Int64
	indexes := make(chan int, cfg.Workers*2)
	var wg sync.WaitGroup

	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range indexes {
				submitted.Add(1)
				res, err := scoreOne(ctx, client, url, players[idx])
				if err != nil {
					failed.Add(1)
					if cfg.Verbose {
						log.Warn(ctx, "score request failed", logger.String("player_id", players[idx].ID), logger.Error(err))
					}
					continue
				}
				results[idx] = res
			}
		}()
	}

	go func() {
		defer close(indexes)
		for i := range players {
			select {
			case <-ctx.Done():
				return
			case indexes <- i:
			}
		}
	}()
	wg.Wait()

	stats.Submitted = int(submitted.Load())
	stats.Failed = int(failed.Load())
	stats.Successful = stats.Submitted - stats.Failed
	return results
}

func scoreOne(ctx context.Context, client *HTTPClient, url string, p model.Player) (model.Result, error) {
	resp, err := client.Post(ctx, url, scoreRequest{
		PlayerID:        p.ID,
		NaturalPosition: p.NaturalPosition,
		Overall:         p.Overall,
		Attributes:      p.Attributes,
	})
	if err != nil {
		return model.Result{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.Result{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return model.Result{}, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var res model.Result
	if err := json.Unmarshal(body, &res); err != nil {
		return model.Result{}, fmt.Errorf("decode result: %w", err)
	}
	return res, nil
}
