package pyth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/evaafi/merkle-oracles-pub/pkg/sources"
	"github.com/evaafi/merkle-oracles-pub/pkg/version"
)

// hermesResponse is the subset of /v2/updates/price/latest we rely on.
type hermesResponse struct {
	Binary struct {
		Encoding string   `json:"encoding"`
		Data     []string `json:"data"`
	} `json:"binary"`
}

// HermesClient fetches accumulator updates from a Hermes endpoint.
type HermesClient struct {
	baseURL string
	client  *http.Client
}

// NewHermesClient creates a client for baseURL.
func NewHermesClient(baseURL string, client *http.Client) *HermesClient {
	return &HermesClient{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// LatestUpdate returns the raw accumulator update covering ids.
func (h *HermesClient) LatestUpdate(ctx context.Context, ids []string) ([]byte, error) {
	q := url.Values{}
	for _, id := range ids {
		q.Add("ids[]", id)
	}
	q.Set("encoding", "base64")
	endpoint := h.baseURL + "/v2/updates/price/latest?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.AgentString())

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch price updates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", sources.ErrUnexpectedStatus, resp.StatusCode)
	}

	var body hermesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %w", sources.ErrInvalidResponse, err)
	}
	if len(body.Binary.Data) == 0 {
		return nil, fmt.Errorf("%w: no binary data", sources.ErrInvalidResponse)
	}

	raw, err := base64.StdEncoding.DecodeString(body.Binary.Data[0])
	if err != nil {
		return nil, fmt.Errorf("%w: binary data: %w", sources.ErrInvalidResponse, err)
	}
	return raw, nil
}
