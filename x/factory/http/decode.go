package http

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

func parseAddress(field, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%s: not a hex address: %q", field, value)
	}
	return common.HexToAddress(value), nil
}

func parseAmount(field, value string) (*big.Int, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil, fmt.Errorf("%s is required", field)
	}

	amount, ok := new(big.Int).SetString(v, 10)
	if !ok {
		return nil, fmt.Errorf("%s: not a decimal integer: %q", field, value)
	}
	return amount, nil
}

func parseSignature(field, value string) ([]byte, error) {
	sig, err := hexutil.Decode(value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return sig, nil
}
