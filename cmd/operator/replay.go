package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"rollup-operator/core"
)

var (
	replayPubdataPath string
	replayDeclaredRootHex string
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "recompute a block's state transition from pubdata and verify its root",
	RunE:  runReplay,
}

func init() {
	replayCmd.Flags().StringVar(&replayPubdataPath, "pubdata", "", "path to a hex-encoded pubdata file")
	replayCmd.Flags().StringVar(&replayDeclaredRootHex, "declared-root", "", "hex-encoded root the block declares")
	replayCmd.MarkFlagRequired("pubdata")
	replayCmd.MarkFlagRequired("declared-root")
}

// runReplay is the standalone entry point to C9: given the operator's
// current committed state as the prior state, it decodes and reapplies the
// named block's pubdata and confirms the resulting root matches what was
// declared — exactly what an independent verifier does against a
// downloaded block.
func runReplay(cmd *cobra.Command, args []string) error {
	bs, err := loadBootstrap()
	if err != nil {
		return err
	}
	defer bs.store.Close()

	raw, err := os.ReadFile(replayPubdataPath)
	if err != nil {
		return fmt.Errorf("read pubdata: %w", err)
	}
	pubdata, err := hex.DecodeString(string(raw))
	if err != nil {
		return fmt.Errorf("decode pubdata hex: %w", err)
	}
	declaredBytes, err := hex.DecodeString(replayDeclaredRootHex)
	if err != nil || len(declaredBytes) != 32 {
		return fmt.Errorf("decode --declared-root: want 32 bytes hex")
	}
	var declaredRoot core.Digest
	copy(declaredRoot[:], declaredBytes)

	feeAccountID := core.AccountID(bs.cfg.Rollup.FeeAccountID)
	if err := core.Replay(bs.builder.Committed(), pubdata, declaredRoot, feeAccountID); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "replay ok: root matches")
	return nil
}
