package supra

import (
	"context"
	"crypto/tls"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/evaafi/merkle-oracles-pub/pkg/version"
)

const getProofMethod = "/pull_service.PullService/getProof"

// PullClient calls the Supra pull service.
type PullClient struct {
	conn *grpc.ClientConn
}

// NewPullClient creates a client for address. The connection is established
// lazily on the first call.
func NewPullClient(address string, plaintext bool, opts ...grpc.DialOption) (*PullClient, error) {
	creds := credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	if plaintext {
		creds = insecure.NewCredentials()
	}
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithUserAgent(version.AgentString()),
	}, opts...)

	conn, err := grpc.NewClient(address, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pull service client: %w", err)
	}
	return &PullClient{conn: conn}, nil
}

// GetProof requests proofs for pairs encoded for chainType.
func (c *PullClient) GetProof(ctx context.Context, pairs []uint32, chainType string) (*PullResponse, error) {
	req := &PullRequest{PairIndexes: pairs, ChainType: chainType}
	resp := &PullResponse{}
	if err := c.conn.Invoke(ctx, getProofMethod, req, resp, grpc.ForceCodec(wireCodec{})); err != nil {
		return nil, err
	}
	return resp, nil
}

// Close releases the connection.
func (c *PullClient) Close() error {
	return c.conn.Close()
}
