package main

import (
	"fmt"
	"os"

	"github.com/GhostKellz/zmake/internal/archive"
	"github.com/spf13/cobra"
)

var (
	verifySigPath string
	verifyPubKey  string
)

var verifyCmd = &cobra.Command{
	Use:   "verify <archive>",
	Short: "Verify an archive's manifest, and optionally its detached signature",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerify,
}

func init() {
	verifyCmd.Flags().StringVar(&verifySigPath, "sig", "", "Path to a detached signature file to verify alongside the manifest")
	verifyCmd.Flags().StringVar(&verifyPubKey, "public-key", "", "Path to the armored PGP public key to verify the signature against")
}

func runVerify(cmd *cobra.Command, args []string) error {
	archivePath := args[0]

	if err := archive.Verify(archivePath); err != nil {
		return fmt.Errorf("manifest verification failed: %w", err)
	}
	fmt.Fprintf(os.Stdout, "%s: manifest OK\n", archivePath)

	if verifySigPath == "" {
		return nil
	}
	if verifyPubKey == "" {
		return fmt.Errorf("--public-key is required when --sig is given")
	}

	sigBytes, err := os.ReadFile(verifySigPath)
	if err != nil {
		return fmt.Errorf("reading signature %s: %w", verifySigPath, err)
	}
	keyBytes, err := os.ReadFile(verifyPubKey)
	if err != nil {
		return fmt.Errorf("reading public key %s: %w", verifyPubKey, err)
	}

	if err := archive.VerifySignature(archivePath, string(sigBytes), string(keyBytes)); err != nil {
		return fmt.Errorf("signature verification failed: %w", err)
	}
	fmt.Fprintf(os.Stdout, "%s: signature OK\n", archivePath)
	return nil
}
