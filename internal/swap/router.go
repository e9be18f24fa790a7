package swap

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Universal Router command and v4 router action codes.
const (
	CommandV4Swap = byte(0x10)

	ActionSwapExactInSingle = byte(0x06)
	ActionSettleAll         = byte(0x0c)
	ActionTakeAll           = byte(0x0f)
)

const universalRouterABIJSON = `[
	{"inputs":[{"name":"commands","type":"bytes"},{"name":"inputs","type":"bytes[]"},{"name":"deadline","type":"uint256"}],"name":"execute","outputs":[],"stateMutability":"payable","type":"function"}
]`

const permit2ABIJSON = `[
	{"inputs":[{"name":"user","type":"address"},{"name":"token","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"amount","type":"uint160"},{"name":"expiration","type":"uint48"},{"name":"nonce","type":"uint48"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"token","type":"address"},{"name":"spender","type":"address"},{"name":"amount","type":"uint160"},{"name":"expiration","type":"uint48"}],"name":"approve","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

//nolint:gochecknoglobals // parsed once, read-only
var (
	// RouterABI is the Universal Router execute entry point.
	RouterABI = mustParseABI(universalRouterABIJSON)

	// Permit2ABI covers the allowance-transfer methods used before a swap.
	Permit2ABI = mustParseABI(permit2ABIJSON)

	exactInSingleArgs = abi.Arguments{{Type: mustNewType("tuple", []abi.ArgumentMarshaling{
		{Name: "poolKey", Type: "tuple", Components: []abi.ArgumentMarshaling{
			{Name: "currency0", Type: "address"},
			{Name: "currency1", Type: "address"},
			{Name: "fee", Type: "uint24"},
			{Name: "tickSpacing", Type: "int24"},
			{Name: "hooks", Type: "address"},
		}},
		{Name: "zeroForOne", Type: "bool"},
		{Name: "amountIn", Type: "uint128"},
		{Name: "amountOutMinimum", Type: "uint128"},
		{Name: "hookData", Type: "bytes"},
	})}}

	currencyAmountArgs = abi.Arguments{
		{Type: mustNewType("address", nil)},
		{Type: mustNewType("uint256", nil)},
	}

	actionsParamsArgs = abi.Arguments{
		{Type: mustNewType("bytes", nil)},
		{Type: mustNewType("bytes[]", nil)},
	}
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("parse ABI: " + err.Error())
	}
	return parsed
}

func mustNewType(t string, components []abi.ArgumentMarshaling) abi.Type {
	typ, err := abi.NewType(t, "", components)
	if err != nil {
		panic("abi type " + t + ": " + err.Error())
	}
	return typ
}

// abiPoolKey mirrors the PoolKey tuple for ABI packing.
type abiPoolKey struct {
	Currency0   common.Address
	Currency1   common.Address
	Fee         *big.Int
	TickSpacing *big.Int
	Hooks       common.Address
}

// ExactInputSingleParams mirrors the v4 router's exact-input single-hop tuple.
type ExactInputSingleParams struct {
	PoolKey          abiPoolKey
	ZeroForOne       bool
	AmountIn         *big.Int
	AmountOutMinimum *big.Int
	HookData         []byte
}

// SwapRequest is a single-hop exact-input swap.
type SwapRequest struct {
	Key          PoolKey
	ZeroForOne   bool
	AmountIn     *big.Int
	AmountOutMin *big.Int
	HookData     []byte
	Deadline     *big.Int
}

func (r *SwapRequest) validate() error {
	if r.AmountIn == nil || r.AmountIn.Sign() <= 0 {
		return errors.New("amount in must be positive")
	}
	if r.AmountIn.BitLen() > 128 {
		return errors.New("amount in exceeds uint128")
	}
	if r.AmountOutMin != nil && (r.AmountOutMin.Sign() < 0 || r.AmountOutMin.BitLen() > 128) {
		return errors.New("minimum out out of uint128 range")
	}
	if r.Deadline == nil || r.Deadline.Sign() <= 0 {
		return errors.New("deadline must be set")
	}
	return nil
}

// EncodeV4SwapInput builds the V4_SWAP command input:
// abi.encode(actions, [swapParams, settleAllParams, takeAllParams]).
func EncodeV4SwapInput(req *SwapRequest) (input []byte, err error) {
	minOut := req.AmountOutMin
	if minOut == nil {
		minOut = new(big.Int)
	}

	hookData := req.HookData
	if hookData == nil {
		hookData = []byte{}
	}

	swapParams, err := exactInSingleArgs.Pack(ExactInputSingleParams{
		PoolKey: abiPoolKey{
			Currency0:   req.Key.Currency0,
			Currency1:   req.Key.Currency1,
			Fee:         new(big.Int).SetUint64(uint64(req.Key.Fee)),
			TickSpacing: big.NewInt(int64(req.Key.TickSpacing)),
			Hooks:       req.Key.Hooks,
		},
		ZeroForOne:       req.ZeroForOne,
		AmountIn:         req.AmountIn,
		AmountOutMinimum: minOut,
		HookData:         hookData,
	})
	if err != nil {
		return nil, fmt.Errorf("pack swap params: %w", err)
	}

	tokenIn, tokenOut := req.Key.Tokens(req.ZeroForOne)

	settleParams, err := currencyAmountArgs.Pack(tokenIn, req.AmountIn)
	if err != nil {
		return nil, fmt.Errorf("pack settle params: %w", err)
	}

	takeParams, err := currencyAmountArgs.Pack(tokenOut, minOut)
	if err != nil {
		return nil, fmt.Errorf("pack take params: %w", err)
	}

	actions := []byte{ActionSwapExactInSingle, ActionSettleAll, ActionTakeAll}

	input, err = actionsParamsArgs.Pack(actions, [][]byte{swapParams, settleParams, takeParams})
	if err != nil {
		return nil, fmt.Errorf("pack actions: %w", err)
	}

	return input, nil
}

// EncodeExecute builds Universal Router calldata for a single v4 swap.
func EncodeExecute(req *SwapRequest) (data []byte, err error) {
	err = req.validate()
	if err != nil {
		return nil, err
	}

	input, err := EncodeV4SwapInput(req)
	if err != nil {
		return nil, err
	}

	data, err = RouterABI.Pack("execute", []byte{CommandV4Swap}, [][]byte{input}, req.Deadline)
	if err != nil {
		return nil, fmt.Errorf("pack execute: %w", err)
	}

	return data, nil
}
