package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/xssnick/tonutils-go/address"

	"github.com/evaafi/merkle-oracles-pub/pkg/version"
)

type jsonRPCRequest struct {
	ID      int         `json:"id"`
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type runGetMethodParams struct {
	Address string          `json:"address"`
	Method  string          `json:"method"`
	Stack   [][]interface{} `json:"stack"`
}

type runGetMethodResponse struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error"`
	Code   int    `json:"code"`
	Result *struct {
		ExitCode int                 `json:"exit_code"`
		Stack    [][]json.RawMessage `json:"stack"`
	} `json:"result"`
}

// Toncenter calls get methods through a toncenter v2 JSON-RPC endpoint.
type Toncenter struct {
	url    string
	apiKey string
	client *http.Client
}

// NewToncenter creates a caller for a jsonRPC url such as
// https://toncenter.com/api/v2/jsonRPC.
func NewToncenter(url, apiKey string, client *http.Client) *Toncenter {
	return &Toncenter{url: url, apiKey: apiKey, client: client}
}

// RunGetMethod implements MethodCaller.
func (t *Toncenter) RunGetMethod(ctx context.Context, addr *address.Address, method string) (*Stack, error) {
	body, err := json.Marshal(jsonRPCRequest{
		ID:      1,
		JSONRPC: "2.0",
		Method:  "runGetMethod",
		Params: runGetMethodParams{
			Address: addr.String(),
			Method:  method,
			Stack:   [][]interface{}{},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.AgentString())
	if t.apiKey != "" {
		req.Header.Set("X-API-Key", t.apiKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	var out runGetMethodResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: status %d: %w", ErrRequestFailed, resp.StatusCode, err)
	}
	if !out.OK || out.Result == nil {
		return nil, fmt.Errorf("%w: status %d: %s", ErrRequestFailed, resp.StatusCode, out.Error)
	}
	if out.Result.ExitCode != 0 && out.Result.ExitCode != 1 {
		return nil, fmt.Errorf("%w: %s exit code %d", ErrMethodFailed, method, out.Result.ExitCode)
	}

	entries := make([]StackEntry, 0, len(out.Result.Stack))
	for i, raw := range out.Result.Stack {
		e, err := parseToncenterEntry(raw)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		entries = append(entries, e)
	}
	return NewStack(entries), nil
}

// parseToncenterEntry decodes ["num","0x1f"] style entries. Non numeric
// entries keep only their type.
func parseToncenterEntry(raw []json.RawMessage) (StackEntry, error) {
	if len(raw) == 0 {
		return StackEntry{}, fmt.Errorf("%w: empty entry", ErrInvalidStack)
	}
	var typ string
	if err := json.Unmarshal(raw[0], &typ); err != nil {
		return StackEntry{}, fmt.Errorf("%w: entry type: %w", ErrInvalidStack, err)
	}

	switch typ {
	case EntryNum:
		if len(raw) < 2 {
			return StackEntry{}, fmt.Errorf("%w: num without value", ErrInvalidStack)
		}
		var s string
		if err := json.Unmarshal(raw[1], &s); err != nil {
			return StackEntry{}, fmt.Errorf("%w: num value: %w", ErrInvalidStack, err)
		}
		n, err := parseHexInt(s)
		if err != nil {
			return StackEntry{}, err
		}
		return StackEntry{Type: EntryNum, Num: n}, nil
	case "list":
		return StackEntry{Type: EntryTuple}, nil
	default:
		return StackEntry{Type: typ}, nil
	}
}

func parseHexInt(s string) (*big.Int, error) {
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	n, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, fmt.Errorf("%w: bad number %q", ErrInvalidStack, s)
	}
	if neg {
		n.Neg(n)
	}
	return n, nil
}
