package main

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/spf13/cobra"

	"rollup-operator/core"
)

var (
	submitFromID uint32
	submitToID   uint32
	submitToken  uint16
	submitAmount uint64
	submitFee    uint64
	submitNonce  uint32
	submitKeyHex string
)

var submitTxCmd = &cobra.Command{
	Use:   "submit-tx",
	Short: "sign and submit a Transfer to the mempool",
	RunE:  runSubmitTx,
}

func init() {
	submitTxCmd.Flags().Uint32Var(&submitFromID, "from", 0, "payer account id")
	submitTxCmd.Flags().Uint32Var(&submitToID, "to", 0, "recipient account id")
	submitTxCmd.Flags().Uint16Var(&submitToken, "token", 0, "token id")
	submitTxCmd.Flags().Uint64Var(&submitAmount, "amount", 0, "amount to transfer")
	submitTxCmd.Flags().Uint64Var(&submitFee, "fee", 0, "fee offered")
	submitTxCmd.Flags().Uint32Var(&submitNonce, "nonce", 0, "payer's tx nonce")
	submitTxCmd.Flags().StringVar(&submitKeyHex, "key", "", "hex-encoded secp256k1 private key to sign with")
}

// runSubmitTx builds, signs, and admits a single Transfer — a thin
// standalone stand-in for the submit-tx endpoint §6 describes, useful for
// devnet bring-up and manual testing without a live RPC surface.
func runSubmitTx(cmd *cobra.Command, args []string) error {
	bs, err := loadBootstrap()
	if err != nil {
		return err
	}
	defer bs.store.Close()

	key, err := hex.DecodeString(submitKeyHex)
	if err != nil {
		return fmt.Errorf("decode --key: %w", err)
	}

	from, ok := bs.builder.Committed().Account(core.AccountID(submitFromID))
	if !ok {
		return fmt.Errorf("unknown account id %d", submitFromID)
	}
	to, ok := bs.builder.Committed().Account(core.AccountID(submitToID))
	if !ok {
		return fmt.Errorf("unknown account id %d", submitToID)
	}

	amount := new(big.Int).SetUint64(submitAmount)
	fee := new(big.Int).SetUint64(submitFee)
	amtBytes, ok := core.PackAmountExact(amount)
	if !ok {
		return fmt.Errorf("amount %d is not exactly packable", submitAmount)
	}
	msg, err := core.SignedMessage(core.TagTransfer, core.AccountID(submitFromID), from.Address, to.Address, core.TokenID(submitToken), amtBytes, fee, core.Nonce(submitNonce))
	if err != nil {
		return err
	}
	sig, err := core.SignMessage(key, msg)
	if err != nil {
		return fmt.Errorf("sign message: %w", err)
	}

	op := core.TransferOp{
		FromID: core.AccountID(submitFromID),
		ToID:   core.AccountID(submitToID),
		Token:  core.TokenID(submitToken),
		Amount: amount,
		Fee:    fee,
		Nonce:  core.Nonce(submitNonce),
		Sig:    sig,
	}
	if err := bs.mempool.Admit(bs.builder.Committed(), op, time.Now()); err != nil {
		return fmt.Errorf("admission rejected: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "admitted transfer %d -> %d, token %d, amount %d, nonce %d\n",
		submitFromID, submitToID, submitToken, submitAmount, submitNonce)
	return nil
}
