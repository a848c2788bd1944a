package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/liteclient"
	"github.com/xssnick/tonutils-go/ton"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

// Liteserver calls get methods directly against lite servers listed in a
// global network config. Connections are opened on first use.
type Liteserver struct {
	configURL string

	mu  sync.Mutex
	api *ton.APIClient
}

// NewLiteserver creates a caller for the global config at configURL.
func NewLiteserver(configURL string) *Liteserver {
	return &Liteserver{configURL: configURL}
}

func (l *Liteserver) client(ctx context.Context) (*ton.APIClient, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.api != nil {
		return l.api, nil
	}
	pool := liteclient.NewConnectionPool()
	if err := pool.AddConnectionsFromConfigUrl(ctx, l.configURL); err != nil {
		return nil, fmt.Errorf("%w: connect lite servers: %w", ErrRequestFailed, err)
	}
	l.api = ton.NewAPIClient(pool)
	return l.api, nil
}

// RunGetMethod implements MethodCaller.
func (l *Liteserver) RunGetMethod(ctx context.Context, addr *address.Address, method string) (*Stack, error) {
	api, err := l.client(ctx)
	if err != nil {
		return nil, err
	}

	block, err := api.CurrentMasterchainInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: masterchain info: %w", ErrRequestFailed, err)
	}

	res, err := api.RunGetMethod(ctx, block, addr, method)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMethodFailed, method, err)
	}

	items := res.AsTuple()
	entries := make([]StackEntry, 0, len(items))
	for _, item := range items {
		entries = append(entries, liteEntry(item))
	}
	return NewStack(entries), nil
}

func liteEntry(v interface{}) StackEntry {
	switch x := v.(type) {
	case *big.Int:
		return StackEntry{Type: EntryNum, Num: x}
	case *cell.Cell:
		return StackEntry{Type: EntryCell}
	case *cell.Slice:
		return StackEntry{Type: EntrySlice}
	case []interface{}:
		return StackEntry{Type: EntryTuple}
	case nil:
		return StackEntry{Type: EntryNull}
	default:
		return StackEntry{Type: fmt.Sprintf("%T", v)}
	}
}
