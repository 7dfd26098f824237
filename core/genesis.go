package core

import (
	"fmt"
	"math/big"

	"gopkg.in/yaml.v3"
)

// GenesisToken is one token-registry entry seeded at genesis.
type GenesisToken struct {
	Address  string `yaml:"address"`
	Symbol   string `yaml:"symbol"`
	Decimals uint8  `yaml:"decimals"`
}

// GenesisAccount pre-funds an account at bring-up, for devnet/test use.
// Accounts are allocated ids in file order, starting after the fee account.
type GenesisAccount struct {
	Address  string              `yaml:"address"`
	Balances map[TokenID]*big.Int `yaml:"balances"`
}

// Genesis is the decoded form of a genesis YAML file: the root every chain
// of blocks anchors to, plus the tokens and (optional) pre-funded accounts a
// devnet or test bring-up seeds before the first block is built.
type Genesis struct {
	Root            string           `yaml:"root"`
	AccountsDepth   int              `yaml:"accounts_tree_depth"`
	BalancesDepth   int              `yaml:"balances_tree_depth"`
	NativeSymbol    string           `yaml:"native_symbol"`
	NativeDecimals  uint8            `yaml:"native_decimals"`
	FeeAccountAddr  string           `yaml:"fee_account_address"`
	Tokens          []GenesisToken   `yaml:"tokens"`
	Accounts        []GenesisAccount `yaml:"accounts"`
}

// LoadGenesis decodes a genesis YAML document.
func LoadGenesis(data []byte) (*Genesis, error) {
	var g Genesis
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("genesis: decode: %w", err)
	}
	return &g, nil
}

// Build constructs the genesis State described by g: an empty accounts tree
// seeded with the native coin plus any additional registered tokens, the
// fee account allocated first (so FeeAccountID is stable at id 0 in the
// common case), and any pre-funded devnet accounts.
func (g *Genesis) Build() (*State, AccountID, error) {
	state := NewGenesisState(GenesisParams{
		AccountsTreeDepth: g.AccountsDepth,
		BalancesTreeDepth: g.BalancesDepth,
		NativeSymbol:      g.NativeSymbol,
		NativeDecimals:    g.NativeDecimals,
	})

	for _, t := range g.Tokens {
		addr, err := ParseAddress(t.Address)
		if err != nil {
			return nil, 0, fmt.Errorf("genesis: token %s: %w", t.Symbol, err)
		}
		state.Tokens.Register(addr, t.Symbol, t.Decimals)
	}

	feeAddr, err := ParseAddress(g.FeeAccountAddr)
	if err != nil {
		return nil, 0, fmt.Errorf("genesis: fee account address: %w", err)
	}
	feeAccount, err := state.AllocateAccount(feeAddr)
	if err != nil {
		return nil, 0, fmt.Errorf("genesis: allocate fee account: %w", err)
	}
	if err := state.putAccountLeaf(feeAccount); err != nil {
		return nil, 0, fmt.Errorf("genesis: hash fee account: %w", err)
	}

	for _, ga := range g.Accounts {
		addr, err := ParseAddress(ga.Address)
		if err != nil {
			return nil, 0, fmt.Errorf("genesis: account %s: %w", ga.Address, err)
		}
		acc, err := state.AllocateAccount(addr)
		if err != nil {
			return nil, 0, fmt.Errorf("genesis: allocate account %s: %w", ga.Address, err)
		}
		for token, amount := range ga.Balances {
			if !state.Tokens.IsRegistered(token) {
				return nil, 0, fmt.Errorf("genesis: account %s: unregistered token %d", ga.Address, token)
			}
			if err := acc.Credit(state.Hasher, token, amount); err != nil {
				return nil, 0, fmt.Errorf("genesis: account %s: %w", ga.Address, err)
			}
		}
		if err := state.putAccountLeaf(acc); err != nil {
			return nil, 0, fmt.Errorf("genesis: hash account %s: %w", ga.Address, err)
		}
	}

	return state, feeAccount.ID, nil
}
