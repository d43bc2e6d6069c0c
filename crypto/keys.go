package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// AddressPrefix is the human-readable part of a bech32 address.
type AddressPrefix string

// HLSPrefix identifies accounts on the Helios sale ledger.
const HLSPrefix AddressPrefix = "hls"

// Address represents a 20-byte account identifier with a bech32 prefix.
type Address struct {
	prefix AddressPrefix
	bytes  []byte
}

func NewAddress(prefix AddressPrefix, b []byte) Address {
	if len(b) != 20 {
		panic("address must be 20 bytes long")
	}
	return Address{prefix: prefix, bytes: b}
}

// MustNewAddress constructs an address and panics on malformed input. It is
// intended for event rendering where payload lengths are fixed upstream.
func MustNewAddress(prefix AddressPrefix, b []byte) Address {
	return NewAddress(prefix, b)
}

func (a Address) String() string {
	conv, err := bech32.ConvertBits(a.bytes, 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(string(a.prefix), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

func (a Address) Bytes() []byte {
	return a.bytes
}

// Prefix returns the human-readable prefix associated with the address.
func (a Address) Prefix() AddressPrefix {
	return a.prefix
}

// IsZero reports whether the address is unset or all zero bytes. The zero
// address doubles as the null referrer identity.
func (a Address) IsZero() bool {
	if len(a.bytes) == 0 {
		return true
	}
	for _, b := range a.bytes {
		if b != 0 {
			return false
		}
	}
	return true
}

// Equal compares the raw payload bytes, ignoring the prefix.
func (a Address) Equal(other Address) bool {
	if len(a.bytes) != len(other.bytes) {
		return false
	}
	for i := range a.bytes {
		if a.bytes[i] != other.bytes[i] {
			return false
		}
	}
	return true
}

func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(addrStr)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	if len(conv) != 20 {
		return Address{}, fmt.Errorf("address payload must be 20 bytes, got %d", len(conv))
	}
	return NewAddress(AddressPrefix(prefix), conv), nil
}

// ModuleAddress derives a deterministic address for an internal custody
// account from its module name. No private key exists for these addresses.
func ModuleAddress(name string) Address {
	digest := ethcrypto.Keccak256([]byte("helios/module/" + name))
	return NewAddress(HLSPrefix, digest[12:])
}

// --- Key management ---

type PrivateKey struct {
	*ecdsa.PrivateKey
}

type PublicKey struct {
	*ecdsa.PublicKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(ethcrypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	key, err := ethcrypto.ToECDSA(b)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

func (p *PrivateKey) Bytes() []byte {
	return ethcrypto.FromECDSA(p.PrivateKey)
}

func (p *PrivateKey) PubKey() *PublicKey {
	return &PublicKey{&p.PublicKey}
}

// Address derives the ledger address from the public key using the trailing
// 20 bytes of the keccak hash, matching EVM account derivation.
func (p *PublicKey) Address() Address {
	raw := ethcrypto.PubkeyToAddress(*p.PublicKey)
	return NewAddress(HLSPrefix, raw.Bytes())
}
