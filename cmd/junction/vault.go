package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/junctionhq/junction/pkg/connector/core"
	"github.com/junctionhq/junction/pkg/vault"
)

// newVaultCmd provides credential blob tooling: operators encrypt
// credentials JSON into opaque blobs for storage and decrypt them back
// for inspection. The key comes from JUNCTION_VAULT_KEY.
func newVaultCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vault",
		Short: "Encrypt and decrypt connector credential blobs",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "encrypt [file]",
		Short: "Encrypt a credentials JSON file (or stdin) into a blob",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := vaultKey()
			if err != nil {
				return err
			}

			raw, err := readInput(args)
			if err != nil {
				return err
			}

			var creds core.Credentials
			if err := json.Unmarshal(raw, &creds); err != nil {
				return fmt.Errorf("parsing credentials: %w", err)
			}

			blob, err := vault.EncryptCredentials(&creds, key)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), blob)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "decrypt [file]",
		Short: "Decrypt a credential blob (or stdin) back to JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := vaultKey()
			if err != nil {
				return err
			}

			raw, err := readInput(args)
			if err != nil {
				return err
			}

			creds, err := vault.DecryptCredentials(strings.TrimSpace(string(raw)), key)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(creds, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	})

	return cmd
}

func vaultKey() (string, error) {
	key := os.Getenv("JUNCTION_VAULT_KEY")
	if key == "" {
		return "", fmt.Errorf("JUNCTION_VAULT_KEY is not set")
	}
	return key, nil
}

func readInput(args []string) ([]byte, error) {
	if len(args) == 1 && args[0] != "-" {
		return os.ReadFile(args[0])
	}
	return io.ReadAll(os.Stdin)
}
