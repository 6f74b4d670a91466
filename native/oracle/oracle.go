// Package oracle provides reference-unit pricing for runtime assets. Prices
// are pushed by a trusted feeder and read by the lending markets.
package oracle

import (
	"errors"
	"math/big"

	"helixchain/native/assets"
)

var (
	errInvalidPrice  = errors.New("oracle: price must be positive")
	ErrPriceNotFound = errors.New("oracle: no price for asset")
)

// Oracle maps assets to their price expressed in reference units per token.
type Oracle struct {
	prices map[assets.AssetID]*big.Rat
}

func New() *Oracle {
	return &Oracle{prices: make(map[assets.AssetID]*big.Rat)}
}

// SetPrice records the reference-unit price of one token of the asset.
func (o *Oracle) SetPrice(asset assets.AssetID, price *big.Rat) error {
	if price == nil || price.Sign() <= 0 {
		return errInvalidPrice
	}
	o.prices[asset] = new(big.Rat).Set(price)
	return nil
}

// Price returns the reference-unit price of the asset.
func (o *Oracle) Price(asset assets.AssetID) (*big.Rat, error) {
	price, ok := o.prices[asset]
	if !ok {
		return nil, ErrPriceNotFound
	}
	return new(big.Rat).Set(price), nil
}

// GetPriceInverse converts `value` reference units into an amount of the
// asset, rounding down.
func (o *Oracle) GetPriceInverse(asset assets.AssetID, value *big.Int) (*big.Int, error) {
	price, ok := o.prices[asset]
	if !ok {
		return nil, ErrPriceNotFound
	}
	amount := new(big.Rat).SetInt(value)
	amount.Quo(amount, price)
	return new(big.Int).Quo(amount.Num(), amount.Denom()), nil
}

// Value converts an amount of the asset into reference units, rounding down.
func (o *Oracle) Value(asset assets.AssetID, amount *big.Int) (*big.Int, error) {
	price, ok := o.prices[asset]
	if !ok {
		return nil, ErrPriceNotFound
	}
	value := new(big.Rat).SetInt(amount)
	value.Mul(value, price)
	return new(big.Int).Quo(value.Num(), value.Denom()), nil
}

// Clone deep-copies the oracle for state snapshots.
func (o *Oracle) Clone() *Oracle {
	clone := New()
	for asset, price := range o.prices {
		clone.prices[asset] = new(big.Rat).Set(price)
	}
	return clone
}
