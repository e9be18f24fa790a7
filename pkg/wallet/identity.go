package wallet

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrAddressMismatch is returned when a key file's address does not match its key.
var ErrAddressMismatch = errors.New("wallet address does not match private key")

// keyFile is the on-disk key store format.
type keyFile struct {
	PrivateKey string `json:"privateKey"`
	Address    string `json:"address"`
}

// Identity is the signing wallet for one process invocation.
// The private key is never exposed; String and MarshalJSON only print the address.
type Identity struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// LoadIdentity reads a key store file of the form {"privateKey": "0x..", "address": "0x.."}.
// The address field is optional; when present it must match the derived address.
func LoadIdentity(path string) (id *Identity, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read wallet file: %w", err)
	}

	var kf keyFile
	err = json.Unmarshal(raw, &kf)
	if err != nil {
		return nil, fmt.Errorf("decode wallet file: %w", err)
	}

	id, err = FromHex(kf.PrivateKey)
	if err != nil {
		return nil, err
	}

	if kf.Address != "" {
		if !common.IsHexAddress(kf.Address) {
			return nil, fmt.Errorf("wallet file address %q is not a hex address", kf.Address)
		}
		if common.HexToAddress(kf.Address) != id.address {
			return nil, ErrAddressMismatch
		}
	}

	return id, nil
}

// FromHex builds an identity from a hex private key with or without 0x prefix.
func FromHex(privateKeyHex string) (id *Identity, err error) {
	if privateKeyHex == "" {
		return nil, errors.New("private key cannot be empty")
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	publicKeyECDSA, ok := key.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, errors.New("error casting public key to ECDSA")
	}

	return &Identity{
		key:     key,
		address: crypto.PubkeyToAddress(*publicKeyECDSA),
	}, nil
}

// Load resolves the identity from the wallet file when it exists, otherwise
// from the fallback hex key (typically WALLET_PRIVATE_KEY).
func Load(path string, fallbackHex string) (*Identity, error) {
	if path != "" {
		_, statErr := os.Stat(path)
		if statErr == nil {
			return LoadIdentity(path)
		}
		if !errors.Is(statErr, os.ErrNotExist) {
			return nil, fmt.Errorf("stat wallet file: %w", statErr)
		}
	}

	if fallbackHex == "" {
		return nil, fmt.Errorf("wallet file %q not found and WALLET_PRIVATE_KEY not set", path)
	}

	return FromHex(fallbackHex)
}

// Address returns the derived account address.
func (id *Identity) Address() common.Address {
	return id.address
}

// SignTx signs tx for the given chain.
func (id *Identity) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), id.key)
}

// String implements fmt.Stringer without revealing key material.
func (id *Identity) String() string {
	return id.address.Hex()
}

// MarshalJSON keeps the key out of any serialized form.
func (id *Identity) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{"address": id.address.Hex()})
}
