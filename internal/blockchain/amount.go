package blockchain

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/shopspring/decimal"
)

var ErrInvalidAddress = errors.New("invalid bitcoin address")

// SatoshiToBTC converts minor units to BTC without floating point.
func SatoshiToBTC(sat int64) decimal.Decimal {
	return decimal.New(sat, -btcExponent)
}

// BTCToSatoshi converts a BTC amount to satoshi, truncating anything below 1e-8.
func BTCToSatoshi(btc decimal.Decimal) int64 {
	return btc.Shift(btcExponent).Truncate(0).IntPart()
}

const btcExponent = 8

// FormatBTC renders an amount with exactly eight fractional digits.
func FormatBTC(btc decimal.Decimal) string {
	return btc.StringFixed(btcExponent)
}

// NetworkParams maps a provider network name to chain parameters.
func NetworkParams(network string) (*chaincfg.Params, error) {
	switch network {
	case "main", "mainnet":
		return &chaincfg.MainNetParams, nil
	case "test3", "testnet", "testnet3", "test":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	}
	return nil, fmt.Errorf("unknown bitcoin network %q", network)
}

// ValidateAddress checks the encoding and network of addr.
func ValidateAddress(addr string, params *chaincfg.Params) error {
	decoded, err := btcutil.DecodeAddress(addr, params)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAddress, err)
	}
	if !decoded.IsForNet(params) {
		return fmt.Errorf("%w: %s is not a %s address", ErrInvalidAddress, addr, params.Name)
	}
	return nil
}
