package main

import (
	"github.com/spf13/cobra"

	"runbook/internal/ledger"
)

func newLedgerCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect or verify a step ledger",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "inspect LEDGER",
		Short: "List the entries of a ledger file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := ledger.Open(args[0])
			if err != nil {
				return err
			}
			rep := g.reporter()
			for _, e := range l.Entries() {
				line := rep.Info
				if e.Status == ledger.StatusFailed {
					line = rep.Error
				}
				line("#%d %s run=%s step=%q exit=%d hash=%s", e.Index, e.Timestamp, e.RunID, e.Step, e.ExitCode, short(e.Hash))
			}
			if l.Len() == 0 {
				rep.Info("ledger is empty")
				return nil
			}
			rep.Info("head %s (%d entries)", l.LastHash(), l.Len())
			return nil
		},
	})

	var checkLogs bool
	verify := &cobra.Command{
		Use:   "verify LEDGER",
		Short: "Verify hashes, links and signatures of a ledger file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rep := g.reporter()
			l, err := ledger.Open(args[0])
			if err != nil {
				return err
			}
			if err := l.VerifyChain(); err != nil {
				rep.Error("Verification FAILED: %v", err)
				return &ExitError{Code: 1, Err: err, Silent: true}
			}
			if checkLogs {
				if err := l.VerifyLogs(); err != nil {
					rep.Error("Log verification FAILED: %v", err)
					return &ExitError{Code: 1, Err: err, Silent: true}
				}
			}
			rep.Success("Ledger verification OK (%d entries)", l.Len())
			return nil
		},
	}
	verify.Flags().BoolVar(&checkLogs, "logs", false, "also re-hash the saved step logs")
	cmd.AddCommand(verify)
	return cmd
}

func short(hash string) string {
	if len(hash) > 16 {
		return hash[:16]
	}
	return hash
}
