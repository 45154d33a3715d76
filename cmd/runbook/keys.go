package main

import (
	"github.com/spf13/cobra"

	"runbook/internal/security"
)

func newKeysCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage ledger signing keys",
	}

	var outDir string
	generate := &cobra.Command{
		Use:   "generate",
		Short: "Generate an ed25519 key pair as hex files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, priv, err := security.GenerateKeyPair()
			if err != nil {
				return err
			}
			pubPath, privPath, err := security.SaveKeyPairTo(outDir, pub, priv)
			if err != nil {
				return err
			}
			rep := g.reporter()
			rep.Success("Generated key pair")
			rep.Info("public key:  %s", pubPath)
			rep.Info("private key: %s (pass with --signing-key)", privPath)
			return nil
		},
	}
	generate.Flags().StringVar(&outDir, "out-dir", "keys", "directory for the key files")
	cmd.AddCommand(generate)
	return cmd
}
