// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// keySize is the number of random bytes in a generated key.
const keySize = 32

// errKeyFileExists is returned when keygen would overwrite a key without --force.
var errKeyFileExists = errors.New("key file already exists")

func newKeygenCommand(app *App) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "keygen <file>",
		Short: "Generate a random key file",
		Long: `Write 32 random bytes, hex encoded, to <file> with mode 0600. The file
content is the key material used by zip, run and inspect.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runKeygen(app, args[0], force)
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing key file")
	return cmd
}

func runKeygen(app *App, path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%w: %s (use --force to replace it)", errKeyFileExists, path)
	}

	raw := make([]byte, keySize)
	if _, err := rand.Read(raw); err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}
	encoded := make([]byte, hex.EncodedLen(len(raw))+1)
	hex.Encode(encoded, raw)
	encoded[len(encoded)-1] = '\n'

	if err := os.WriteFile(path, encoded, 0o600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("failed to restrict key file: %w", err)
	}
	fmt.Fprintf(app.stdout, "%s Wrote key to %s\n", SuccessStyle.Render("✓"), KeyStyle.Render(path))
	return nil
}
