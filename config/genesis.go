package config

import (
	"fmt"
	"math/big"
	"os"

	"gopkg.in/yaml.v3"

	"helixchain/crypto"
	"helixchain/native/assets"
	"helixchain/state"
)

// Genesis seeds the world state at boot: asset parameters, initial
// balances, and oracle prices.
type Genesis struct {
	Assets   []GenesisAsset   `yaml:"assets"`
	Balances []GenesisBalance `yaml:"balances"`
	Prices   []GenesisPrice   `yaml:"prices"`
}

type GenesisAsset struct {
	ID                 uint64 `yaml:"id"`
	Symbol             string `yaml:"symbol"`
	ExistentialDeposit string `yaml:"existentialDeposit"`
}

type GenesisBalance struct {
	Address string `yaml:"address"`
	AssetID uint64 `yaml:"assetId"`
	Amount  string `yaml:"amount"`
}

type GenesisPrice struct {
	AssetID uint64 `yaml:"assetId"`
	// Price is a rational in "num/den" form, reference units per token.
	Price string `yaml:"price"`
}

// LoadGenesis parses a genesis file.
func LoadGenesis(path string) (*Genesis, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	genesis := &Genesis{}
	if err := yaml.Unmarshal(raw, genesis); err != nil {
		return nil, err
	}
	return genesis, nil
}

// Apply seeds the state manager from the genesis document.
func (g *Genesis) Apply(manager *state.Manager) error {
	for _, asset := range g.Assets {
		deposit, ok := new(big.Int).SetString(asset.ExistentialDeposit, 10)
		if asset.ExistentialDeposit != "" && !ok {
			return fmt.Errorf("genesis: bad existential deposit for asset %d", asset.ID)
		}
		if deposit == nil {
			deposit = big.NewInt(0)
		}
		manager.Ledger().SetExistentialDeposit(assets.AssetID(asset.ID), deposit)
	}
	for _, balance := range g.Balances {
		addr, err := crypto.DecodeAddress(balance.Address)
		if err != nil {
			return fmt.Errorf("genesis: bad address %q: %w", balance.Address, err)
		}
		amount, ok := new(big.Int).SetString(balance.Amount, 10)
		if !ok {
			return fmt.Errorf("genesis: bad amount %q", balance.Amount)
		}
		if err := manager.Ledger().MintInto(assets.AssetID(balance.AssetID), addr, amount); err != nil {
			return err
		}
	}
	for _, price := range g.Prices {
		rat, ok := new(big.Rat).SetString(price.Price)
		if !ok {
			return fmt.Errorf("genesis: bad price %q", price.Price)
		}
		if err := manager.Oracle().SetPrice(assets.AssetID(price.AssetID), rat); err != nil {
			return err
		}
	}
	return nil
}
