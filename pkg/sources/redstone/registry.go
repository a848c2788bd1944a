package redstone

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/evaafi/merkle-oracles-pub/pkg/sources"
	"github.com/evaafi/merkle-oracles-pub/pkg/version"
)

// SignerRegistry maps provisioned signer addresses to their data service.
type SignerRegistry interface {
	Load(ctx context.Context) (map[common.Address]string, error)
}

// StaticRegistry is a registry fixed in configuration.
type StaticRegistry map[common.Address]string

// NewStaticRegistry parses an address -> data service id map.
func NewStaticRegistry(signers map[string]string) (StaticRegistry, error) {
	out := make(StaticRegistry, len(signers))
	for addr, service := range signers {
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("%w: registry address %q", sources.ErrInvalidSigner, addr)
		}
		out[common.HexToAddress(addr)] = service
	}
	return out, nil
}

// Load implements SignerRegistry.
func (s StaticRegistry) Load(context.Context) (map[common.Address]string, error) {
	return s, nil
}

// registryState is the oracle registry state document.
type registryState struct {
	Nodes map[string]struct {
		DataServiceID string `json:"dataServiceId"`
		EvmAddress    string `json:"evmAddress"`
	} `json:"nodes"`
}

// HTTPRegistry downloads the oracle registry state on every Load.
type HTTPRegistry struct {
	url    string
	client *http.Client
}

// NewHTTPRegistry creates a registry backed by a state document at url.
func NewHTTPRegistry(url string, client *http.Client) *HTTPRegistry {
	return &HTTPRegistry{url: url, client: client}
}

// Load implements SignerRegistry.
func (r *HTTPRegistry) Load(ctx context.Context) (map[common.Address]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", version.AgentString())

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch oracle registry: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: registry %d", sources.ErrUnexpectedStatus, resp.StatusCode)
	}

	var state registryState
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return nil, fmt.Errorf("%w: registry: %w", sources.ErrInvalidResponse, err)
	}

	out := make(map[common.Address]string, len(state.Nodes))
	for name, node := range state.Nodes {
		addr := strings.TrimSpace(node.EvmAddress)
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("%w: registry node %s has address %q", sources.ErrInvalidResponse, name, addr)
		}
		out[common.HexToAddress(addr)] = node.DataServiceID
	}
	return out, nil
}
