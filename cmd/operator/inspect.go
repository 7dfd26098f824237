package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var mempoolCmd = &cobra.Command{
	Use:   "mempool",
	Short: "inspect pending mempool transactions",
	RunE:  runMempoolInspect,
}

var priorityCmd = &cobra.Command{
	Use:   "priority",
	Short: "list pending priority-queue operations",
	RunE:  runPriorityList,
}

// runMempoolInspect prints the current admission frontier — the one
// mempool-eligible tx per account, if any, that could be packed into the
// next block — plus the running rejection log.
func runMempoolInspect(cmd *cobra.Command, args []string) error {
	bs, err := loadBootstrap()
	if err != nil {
		return err
	}
	defer bs.store.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "pending: %d\n", bs.mempool.Len())
	for _, tx := range bs.mempool.Frontier(bs.builder.Committed()) {
		fmt.Fprintf(out, "  account=%d nonce=%d token=%d fee=%s chunks=%d\n",
			tx.AccountID, tx.Nonce, tx.Token, tx.Fee.String(), tx.Chunks)
	}
	for _, rej := range bs.mempool.Rejections() {
		fmt.Fprintf(out, "rejected: account=%d nonce=%d reason=%s at=%s\n",
			rej.AccountID, rej.Nonce, rej.Reason, rej.At.Format("15:04:05"))
	}
	return nil
}

// runPriorityList prints every not-yet-popped priority op in serial order.
func runPriorityList(cmd *cobra.Command, args []string) error {
	bs, err := loadBootstrap()
	if err != nil {
		return err
	}
	defer bs.store.Close()

	out := cmd.OutOrStdout()
	pending := bs.priority.Peek(bs.priority.Len())
	fmt.Fprintf(out, "pending: %d\n", len(pending))
	for _, op := range pending {
		fmt.Fprintf(out, "  serial=%d kind=%d deadline_block=%d chunks=%d\n",
			op.SerialID, op.Kind, op.DeadlineBlock, op.Payload.Chunks())
	}
	return nil
}
