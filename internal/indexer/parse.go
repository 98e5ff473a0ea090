package indexer

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ParseAddress converts a required hex string into a common.Address.
func ParseAddress(input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid address: %s", input)
	}
	return common.HexToAddress(input), nil
}

// ParseOptionalAddress returns the zero address for empty or placeholder
// values; the runner skips registries configured that way.
func ParseOptionalAddress(input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if input == "" || strings.HasPrefix(input, "PLACEHOLDER") {
		return common.Address{}, nil
	}
	return ParseAddress(input)
}
