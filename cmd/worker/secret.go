package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jwalitptl/notifier/pkg/security"
)

var encryptSecretCmd = &cobra.Command{
	Use:   "encrypt-secret",
	Short: "Encrypt a delivery system password read from stdin",
	Long: `Reads a password from stdin and prints the value to store in
delivery_systems.password_encrypted, sealed with security.credential_key.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return encryptSecret(cfg.Security.CredentialKey, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

// encryptSecret seals the first line of r. Trailing line endings are not part
// of the password.
func encryptSecret(key string, r io.Reader, w io.Writer) error {
	enc, err := security.NewCredentialEncryptor(key)
	if err != nil {
		return fmt.Errorf("failed to initialize credential encryption: %w", err)
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read secret: %w", err)
	}
	secret, _, _ := strings.Cut(string(raw), "\n")
	secret = strings.TrimSuffix(secret, "\r")
	if secret == "" {
		return errors.New("no secret on stdin")
	}

	sealed, err := security.EncryptString(enc, secret)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, sealed)
	return err
}
