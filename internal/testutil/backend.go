package testutil

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// CallHandler answers a decoded contract call with output values.
type CallHandler func(to common.Address, args []interface{}) ([]interface{}, error)

type registeredMethod struct {
	method abi.Method
	fn     CallHandler
}

// FakeBackend is an in-memory JSON-RPC backend. Contract calls are routed by
// method selector to registered handlers; sent transactions are mined instantly.
type FakeBackend struct {
	mu sync.Mutex

	methods  map[[4]byte]registeredMethod
	native   map[common.Address]*big.Int
	receipts map[common.Hash]*types.Receipt

	Sent          []*types.Transaction
	ChainIDValue  *big.Int
	ChainIDErr    error
	GasPriceValue *big.Int
	EstimateValue uint64
	EstimateErr   error
	SendErr       error
	CallErr       error

	// OnSend runs for every sent transaction and returns the receipt status.
	// Nil means every transaction succeeds.
	OnSend func(tx *types.Transaction) uint64
}

// NewFakeBackend creates a backend for chain id 56.
func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		methods:       make(map[[4]byte]registeredMethod),
		native:        make(map[common.Address]*big.Int),
		receipts:      make(map[common.Hash]*types.Receipt),
		ChainIDValue:  big.NewInt(56),
		GasPriceValue: big.NewInt(1_000_000_000),
		EstimateValue: 100_000,
	}
}

// Handle registers a handler for method.
func (f *FakeBackend) Handle(method abi.Method, fn CallHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var selector [4]byte
	copy(selector[:], method.ID)
	f.methods[selector] = registeredMethod{method: method, fn: fn}
}

// SetNative sets an account's native balance.
func (f *FakeBackend) SetNative(account common.Address, wei *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.native[account] = wei
}

// SentCount returns how many transactions were sent.
func (f *FakeBackend) SentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Sent)
}

// CallContract dispatches to the handler registered for the calldata's selector.
func (f *FakeBackend) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	callErr := f.CallErr
	var selector [4]byte
	if len(call.Data) >= 4 {
		copy(selector[:], call.Data[:4])
	}
	reg, ok := f.methods[selector]
	f.mu.Unlock()

	if callErr != nil {
		return nil, callErr
	}

	if !ok {
		return nil, fmt.Errorf("execution reverted: no handler for selector %x", selector)
	}

	args, err := reg.method.Inputs.Unpack(call.Data[4:])
	if err != nil {
		return nil, fmt.Errorf("unpack %s args: %w", reg.method.Name, err)
	}

	var to common.Address
	if call.To != nil {
		to = *call.To
	}

	outputs, err := reg.fn(to, args)
	if err != nil {
		return nil, err
	}

	return reg.method.Outputs.Pack(outputs...)
}

// CodeAt reports non-empty code for every address.
func (f *FakeBackend) CodeAt(_ context.Context, _ common.Address, _ *big.Int) ([]byte, error) {
	return []byte{0x60}, nil
}

// BalanceAt returns the configured native balance or zero.
func (f *FakeBackend) BalanceAt(_ context.Context, account common.Address, _ *big.Int) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.CallErr != nil {
		return nil, f.CallErr
	}

	if v, ok := f.native[account]; ok {
		return new(big.Int).Set(v), nil
	}
	return new(big.Int), nil
}

// PendingNonceAt returns the number of transactions sent so far.
func (f *FakeBackend) PendingNonceAt(_ context.Context, _ common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(len(f.Sent)), nil
}

// SuggestGasPrice returns GasPriceValue.
func (f *FakeBackend) SuggestGasPrice(_ context.Context) (*big.Int, error) {
	return f.GasPriceValue, nil
}

// EstimateGas returns EstimateValue or EstimateErr.
func (f *FakeBackend) EstimateGas(_ context.Context, _ ethereum.CallMsg) (uint64, error) {
	if f.EstimateErr != nil {
		return 0, f.EstimateErr
	}
	return f.EstimateValue, nil
}

// ChainID returns ChainIDValue, or ChainIDErr when set.
func (f *FakeBackend) ChainID(_ context.Context) (*big.Int, error) {
	if f.ChainIDErr != nil {
		return nil, f.ChainIDErr
	}
	return f.ChainIDValue, nil
}

// SendTransaction records tx and mines it immediately.
func (f *FakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	if f.SendErr != nil {
		return f.SendErr
	}

	status := types.ReceiptStatusSuccessful
	if f.OnSend != nil {
		status = f.OnSend(tx)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.Sent = append(f.Sent, tx)
	f.receipts[tx.Hash()] = &types.Receipt{
		Status:      status,
		TxHash:      tx.Hash(),
		GasUsed:     tx.Gas() / 2,
		BlockNumber: big.NewInt(int64(len(f.Sent))),
	}

	return nil
}

// TransactionReceipt returns the receipt of a sent transaction.
func (f *FakeBackend) TransactionReceipt(_ context.Context, txHash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	receipt, ok := f.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

// ErrRPC is a generic transport failure for tests.
var ErrRPC = errors.New("rpc unavailable") //nolint:gochecknoglobals // test sentinel
