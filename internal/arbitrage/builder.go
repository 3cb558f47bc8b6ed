package arbitrage

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Router ABI - only the function we need
const routerABI = `[{
	"inputs": [
		{"internalType": "uint256", "name": "amountIn", "type": "uint256"},
		{"internalType": "uint256", "name": "amountOutMin", "type": "uint256"},
		{"internalType": "address[]", "name": "path", "type": "address[]"},
		{"internalType": "address", "name": "to", "type": "address"},
		{"internalType": "uint256", "name": "deadline", "type": "uint256"}
	],
	"name": "swapExactTokensForTokens",
	"outputs": [
		{"internalType": "uint256[]", "name": "amounts", "type": "uint256[]"}
	],
	"stateMutability": "nonpayable",
	"type": "function"
}]`

// BuildSwapCalldata creates calldata for swapExactTokensForTokens
func BuildSwapCalldata(
	amountIn *big.Int,
	amountOutMin *big.Int,
	path []common.Address,
	recipient common.Address,
	deadline *big.Int,
) ([]byte, error) {
	parsedABI, err := abi.JSON(strings.NewReader(routerABI))
	if err != nil {
		return nil, fmt.Errorf("parse router abi: %w", err)
	}

	calldata, err := parsedABI.Pack("swapExactTokensForTokens", amountIn, amountOutMin, path, recipient, deadline)
	if err != nil {
		return nil, fmt.Errorf("pack swap calldata: %w", err)
	}

	return calldata, nil
}
