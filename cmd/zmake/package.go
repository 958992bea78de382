package main

import (
	"fmt"
	"os"

	"github.com/GhostKellz/zmake/internal/archive"
	"github.com/spf13/cobra"
)

var packageCmd = &cobra.Command{
	Use:   "package [recipe]",
	Short: "Build a package and verify the resulting archive's manifest",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPackage,
}

func init() {
	packageCmd.Flags().StringVarP(&buildFormat, "format", "f", "auto", "Recipe format: auto, shell, declarative")
	packageCmd.Flags().StringVarP(&buildCompress, "compression", "c", "zstd", "Archive compression: gzip, xz, zstd, lzip, none")
	packageCmd.Flags().StringVar(&buildSignKey, "sign-key", "", "Path to an armored PGP private key used to sign the archive")
	packageCmd.Flags().BoolVar(&buildNoCache, "no-cache", false, "Bypass the build cache for this build")
}

// runPackage runs the same pipeline as build, then additionally verifies
// the archive's tar manifest before reporting success, surfacing
// archive.Verify at the CLI boundary rather than leaving it an internal
// compose-time-only check.
func runPackage(cmd *cobra.Command, args []string) error {
	archivePath, err := buildAndReport(cmd, args)
	if err != nil {
		return err
	}

	if err := archive.Verify(archivePath); err != nil {
		return fmt.Errorf("archive built but failed manifest verification: %w", err)
	}
	fmt.Fprintf(os.Stdout, "%s: manifest OK\n", archivePath)
	return nil
}
