package search

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"

	"github.com/zhizhi/bobi/backend/internal/config"
	"github.com/zhizhi/bobi/backend/internal/model/chat"
)

// Hit is one ranked search result.
type Hit struct {
	Score     float64 `json:"score"`
	Sender    string  `json:"sender"`
	Content   string  `json:"message"`
	Timestamp string  `json:"timestamp"`
}

// Client queries the external message index over HTTPS, signing every
// request with regional service credentials. It is long-lived and safe for
// concurrent use.
type Client struct {
	httpClient *http.Client
	creds      aws.CredentialsProvider
	signer     *v4.Signer
	cfg        config.SearchConfig
}

// New builds a search client from the resolved credentials and config.
func New(creds aws.CredentialsProvider, cfg config.SearchConfig) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		creds:      creds,
		signer:     v4.NewSigner(),
		cfg:        cfg,
	}
}

type searchRequest struct {
	Size  int         `json:"size"`
	Query queryClause `json:"query"`
}

type queryClause struct {
	MultiMatch multiMatch `json:"multi_match"`
}

type multiMatch struct {
	Query  string   `json:"query"`
	Fields []string `json:"fields"`
}

// searchResponse is the standard hits-with-score envelope. Anything that
// does not decode into this shape is treated as a backend failure, not
// propagated as a raw parse error.
type searchResponse struct {
	Hits struct {
		Hits []struct {
			Score  float64 `json:"_score"`
			Source struct {
				Sender    string `json:"sender"`
				Message   string `json:"message"`
				Timestamp string `json:"timestamp"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search issues one keyword query and returns ranked hits, at most the
// configured page size. Zero hits is a successful empty result; transport,
// auth and decode failures surface as chat.ErrSearchUnavailable.
func (c *Client) Search(ctx context.Context, keyword string) ([]Hit, error) {
	body, err := json.Marshal(searchRequest{
		Size: c.cfg.PageSize,
		Query: queryClause{
			MultiMatch: multiMatch{Query: keyword, Fields: c.cfg.Fields},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	url := c.cfg.Host + "/" + c.cfg.Index + "/_search"
	req, err := http.NewRequestWithContext(ctx, c.cfg.Method, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if err := c.sign(ctx, req, body); err != nil {
		return nil, fmt.Errorf("%w: sign request: %v", chat.ErrSearchUnavailable, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", chat.ErrSearchUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: index returned status %d", chat.ErrSearchUnavailable, resp.StatusCode)
	}

	var envelope searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", chat.ErrSearchUnavailable, err)
	}

	hits := make([]Hit, 0, len(envelope.Hits.Hits))
	for _, h := range envelope.Hits.Hits {
		hits = append(hits, Hit{
			Score:     h.Score,
			Sender:    h.Source.Sender,
			Content:   h.Source.Message,
			Timestamp: h.Source.Timestamp,
		})
	}
	return hits, nil
}

func (c *Client) sign(ctx context.Context, req *http.Request, body []byte) error {
	creds, err := c.creds.Retrieve(ctx)
	if err != nil {
		return err
	}

	sum := sha256.Sum256(body)
	return c.signer.SignHTTP(ctx, creds, req, hex.EncodeToString(sum[:]), c.cfg.Service, c.cfg.Region, time.Now())
}
