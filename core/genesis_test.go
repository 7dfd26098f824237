package core

import (
	"math/big"
	"testing"
)

const testGenesisYAML = `
root: "0x0000000000000000000000000000000000000000000000000000000000000000"
accounts_tree_depth: 8
balances_tree_depth: 4
native_symbol: ETH
native_decimals: 18
fee_account_address: "0x000000000000000000000000000000000000dEaD"
tokens:
  - address: "0x0000000000000000000000000000000000000001"
    symbol: DAI
    decimals: 18
accounts:
  - address: "0x0000000000000000000000000000000000000002"
    balances:
      0: 1000000
`

func TestLoadGenesisDecodesFields(t *testing.T) {
	g, err := LoadGenesis([]byte(testGenesisYAML))
	if err != nil {
		t.Fatalf("load genesis: %v", err)
	}
	if g.AccountsDepth != 8 || g.BalancesDepth != 4 {
		t.Fatalf("unexpected tree depths: %+v", g)
	}
	if g.NativeSymbol != "ETH" || g.NativeDecimals != 18 {
		t.Fatalf("unexpected native token metadata: %+v", g)
	}
	if len(g.Tokens) != 1 || g.Tokens[0].Symbol != "DAI" {
		t.Fatalf("expected one DAI token entry, got %+v", g.Tokens)
	}
	if len(g.Accounts) != 1 || g.Accounts[0].Balances[0] == nil || g.Accounts[0].Balances[0].Cmp(big.NewInt(1000000)) != 0 {
		t.Fatalf("expected one pre-funded account, got %+v", g.Accounts)
	}
}

func TestGenesisBuildAllocatesFeeAccountFirst(t *testing.T) {
	g, err := LoadGenesis([]byte(testGenesisYAML))
	if err != nil {
		t.Fatalf("load genesis: %v", err)
	}
	state, feeAccountID, err := g.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if feeAccountID != 0 {
		t.Fatalf("expected the fee account to be allocated first at id 0, got %d", feeAccountID)
	}
	if !state.Tokens.IsRegistered(1) {
		t.Fatalf("expected the DAI token to be registered at id 1")
	}

	fundedAddr, err := ParseAddress("0x0000000000000000000000000000000000000002")
	if err != nil {
		t.Fatalf("parse address: %v", err)
	}
	funded, ok := state.AccountByAddress(fundedAddr)
	if !ok {
		t.Fatalf("expected the pre-funded account to exist")
	}
	if funded.Balance(0).Cmp(big.NewInt(1000000)) != 0 {
		t.Fatalf("pre-funded account balance = %s, want 1000000", funded.Balance(0))
	}
}

func TestGenesisBuildRejectsBadAddress(t *testing.T) {
	bad := `
root: "0x0000000000000000000000000000000000000000000000000000000000000000"
accounts_tree_depth: 8
balances_tree_depth: 4
native_symbol: ETH
native_decimals: 18
fee_account_address: "not-hex"
`
	g, err := LoadGenesis([]byte(bad))
	if err != nil {
		t.Fatalf("load genesis: %v", err)
	}
	if _, _, err := g.Build(); err == nil {
		t.Fatalf("expected an unparsable fee account address to fail Build")
	}
}
