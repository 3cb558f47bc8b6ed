package eth

import (
	"github.com/ethereum/go-ethereum/common"
)

// Token addresses — Ethereum mainnet
var (
	WETHAddress = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	USDCAddress = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	USDTAddress = common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7")
	DAIAddress  = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
	WBTCAddress = common.HexToAddress("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599")
)

const (
	WETHDecimals = 18
	USDCDecimals = 6
	USDTDecimals = 6
	DAIDecimals  = 18
	WBTCDecimals = 8
)

// USDT is the reference quote currency for all profit/volume accounting
var ReferenceQuoteToken = USDTAddress

// Uniswap V2 WETH/USDT pool, used to price gas in the reference quote
var ReferencePricePool = common.HexToAddress("0x0d4a11d5EEaaC28EC3F61d100daF4d40471f1852")

const ReferenceQuoteDecimals = USDTDecimals

// TokenInfo bundles address + decimals for easy lookup
type TokenInfo struct {
	Address  common.Address
	Decimals int
	Symbol   string
}

// KnownTokens — lookup by symbol string
var KnownTokens = map[string]TokenInfo{
	"WETH": {WETHAddress, WETHDecimals, "WETH"},
	"USDC": {USDCAddress, USDCDecimals, "USDC"},
	"USDT": {USDTAddress, USDTDecimals, "USDT"},
	"DAI":  {DAIAddress, DAIDecimals, "DAI"},
	"WBTC": {WBTCAddress, WBTCDecimals, "WBTC"},
}

// VenueConfig — factory + router is all we need per venue
type VenueConfig struct {
	Name    string
	Factory common.Address
	Router  common.Address
}

// the two tracked venues, both Uniswap V2 forks on mainnet
var (
	Uniswap = VenueConfig{
		Name:    "uniswap",
		Factory: common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f"),
		Router:  common.HexToAddress("0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D"),
	}
	Sushiswap = VenueConfig{
		Name:    "sushiswap",
		Factory: common.HexToAddress("0xC0AEe478e3658e2610c5F7A4A2E1777cE9e4f2Ac"),
		Router:  common.HexToAddress("0xd9e1cE17f2641f24aE83637ab66a2cca9C378B9F"),
	}
)

// Well-known pools per venue, keyed by pair label. Enough for one-shot
// scans without a discovery pass.
var KnownPools = map[string]map[string]common.Address{
	Uniswap.Name: {
		"WETH/USDC": common.HexToAddress("0xB4e16d0168e52d35CaCD2c6185b44281Ec28C9Dc"),
		"WETH/USDT": common.HexToAddress("0x0d4a11d5EEaaC28EC3F61d100daF4d40471f1852"),
	},
	Sushiswap.Name: {
		"WETH/USDC": common.HexToAddress("0x397FF1542f962076d0BFE58eA045FfA2d347ACa0"),
		"WETH/USDT": common.HexToAddress("0x06da0fd433C1A5d7a4faa01111c044910A184553"),
	},
}

// VenueByName resolves a venue config from its name
func VenueByName(name string) (VenueConfig, bool) {
	switch name {
	case Uniswap.Name:
		return Uniswap, true
	case Sushiswap.Name:
		return Sushiswap, true
	}
	return VenueConfig{}, false
}

// Uniswap V2 Pair ABI — getReserves + token0/token1
const UniswapV2PairABI = `[
	{
		"constant": true,
		"inputs": [],
		"name": "getReserves",
		"outputs": [
			{"internalType": "uint112", "name": "reserve0", "type": "uint112"},
			{"internalType": "uint112", "name": "reserve1", "type": "uint112"},
			{"internalType": "uint32",  "name": "blockTimestampLast", "type": "uint32"}
		],
		"payable": false,
		"stateMutability": "view",
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [],
		"name": "token0",
		"outputs": [{"internalType": "address", "name": "", "type": "address"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [],
		"name": "token1",
		"outputs": [{"internalType": "address", "name": "", "type": "address"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

// Uniswap V2 Factory ABI — pair enumeration only
const UniswapV2FactoryABI = `[
	{
		"constant": true,
		"inputs": [],
		"name": "allPairsLength",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"name": "allPairs",
		"outputs": [{"internalType": "address", "name": "", "type": "address"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

// ERC-20 ABI — metadata + approve, nothing else
const ERC20ABI = `[
	{
		"constant": true,
		"inputs": [],
		"name": "symbol",
		"outputs": [{"internalType": "string", "name": "", "type": "string"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [],
		"name": "decimals",
		"outputs": [{"internalType": "uint8", "name": "", "type": "uint8"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "spender", "type": "address"},
			{"internalType": "uint256", "name": "amount", "type": "uint256"}
		],
		"name": "approve",
		"outputs": [{"internalType": "bool", "name": "", "type": "bool"}],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`
