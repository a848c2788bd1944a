package main

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/evaafi/merkle-oracles-pub/pkg/commitment"
	"github.com/evaafi/merkle-oracles-pub/pkg/keystore"
)

var errInvalidKeyFlag = errors.New("invalid --key, expected <oracle id>:<hex public key>")

// NewVerifierConfigCmd returns the command that packs the verifier's oracle registry.
func NewVerifierConfigCmd() *cobra.Command {
	var (
		keys        []string
		includeSelf bool
	)

	cmd := &cobra.Command{
		Use:   "verifier-config",
		Short: "Print the oracle registry cell for the on-chain verifier",
		Long: `Packs the oracle id -> public key dictionary expected by the relying
verifier contract and prints it as a hex encoded BOC.

Example:
  merkle-oracle verifier-config --key 1:<pubkey> --key 2:<pubkey> --self`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			oracles := make([]commitment.OracleKey, 0, len(keys)+1)
			for _, k := range keys {
				key, err := parseOracleKey(k)
				if err != nil {
					return err
				}
				oracles = append(oracles, key)
			}

			if includeSelf {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				signer, err := keystore.Load(cfg.Oracle)
				if err != nil {
					return fmt.Errorf("failed to load oracle key: %w", err)
				}
				oracles = append(oracles, commitment.OracleKey{ID: cfg.Oracle.ID, PublicKey: signer.PublicKey()})
			}

			packed, err := commitment.PackVerifierConfig(oracles)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(packed.ToBOC()))
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&keys, "key", nil, "Oracle entry as <id>:<hex public key>, repeatable")
	cmd.Flags().BoolVar(&includeSelf, "self", false, "Add the key configured in --config under its oracle id")
	return cmd
}

func parseOracleKey(s string) (commitment.OracleKey, error) {
	idPart, keyPart, ok := strings.Cut(s, ":")
	if !ok {
		return commitment.OracleKey{}, fmt.Errorf("%w: %q", errInvalidKeyFlag, s)
	}
	id, err := strconv.ParseUint(idPart, 10, 32)
	if err != nil {
		return commitment.OracleKey{}, fmt.Errorf("%w: %q", errInvalidKeyFlag, s)
	}
	pub, err := hex.DecodeString(strings.TrimPrefix(keyPart, "0x"))
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return commitment.OracleKey{}, fmt.Errorf("%w: %q", errInvalidKeyFlag, s)
	}
	return commitment.OracleKey{ID: uint32(id), PublicKey: ed25519.PublicKey(pub)}, nil
}
