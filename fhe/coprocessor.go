// Package fhe implements the coprocessor side of the confidential tally
// protocol. Encrypted values live in a persistent ciphertext table and are
// referenced everywhere else only through opaque 32-byte handles; the ledger
// engine operates exclusively on handles and never sees a cleartext.
//
// Three operations are exposed over handles: homomorphic addition,
// equality-against-a-constant and selection. Addition is computed directly on
// the ElGamal ciphertexts. Equality and selection are comparison gates: they
// are evaluated inside the coprocessor, which holds the ElGamal private key
// as part of the trusted decryption subsystem, and always produce a freshly
// randomized ciphertext so the output cannot be linked to either input.
package fhe

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/iden3/go-iden3-crypto/poseidon"
	"github.com/vocdoni/arbo"
	"github.com/vocdoni/fhe-survey/crypto/ecc"
	"github.com/vocdoni/fhe-survey/crypto/ecc/curves"
	"github.com/vocdoni/fhe-survey/crypto/elgamal"
	"github.com/vocdoni/fhe-survey/crypto/ethereum"
	"github.com/vocdoni/fhe-survey/log"
	"github.com/vocdoni/fhe-survey/storage"
	"github.com/vocdoni/fhe-survey/types"
)

var (
	// ErrUnknownHandle is returned when a handle does not reference any
	// ciphertext in the coprocessor table.
	ErrUnknownHandle = errors.New("unknown ciphertext handle")
	// ErrInvalidInputProof is returned when an input attestation does not
	// validate against its handles, user and contract.
	ErrInvalidInputProof = errors.New("invalid input proof")
)

// maxComparableValue bounds the discrete-log search of the comparison gates.
const maxComparableValue = types.MaxOptionsPerQuestion

// Coprocessor holds the ElGamal key pair and the ciphertext table, and
// evaluates the homomorphic operations referenced by handles. It also acts as
// the input gateway: it encrypts caller inputs and attests them with its
// signing key, binding each batch to a (user, contract) pair.
type Coprocessor struct {
	stg     *storage.Storage
	curve   ecc.Point
	pubKey  ecc.Point
	privKey *big.Int
	signer  *ethereum.SignKeys
}

// New creates a Coprocessor over the given storage, loading the ElGamal key
// pair from it or generating a fresh one on first use.
func New(stg *storage.Storage, curveType string) (*Coprocessor, error) {
	curve, err := curves.New(curveType)
	if err != nil {
		return nil, err
	}
	pubKey, privKey, err := stg.EncryptionKeys()
	if errors.Is(err, storage.ErrNotFound) {
		pubKey, privKey, err = elgamal.GenerateKey(curve)
		if err != nil {
			return nil, fmt.Errorf("generate elgamal key: %w", err)
		}
		if err := stg.SetEncryptionKeys(pubKey, privKey); err != nil {
			return nil, fmt.Errorf("store elgamal key: %w", err)
		}
		log.Infow("generated coprocessor encryption keys", "curve", curveType)
	} else if err != nil {
		return nil, fmt.Errorf("load elgamal key: %w", err)
	}
	signer := ethereum.NewSignKeys()
	privKeyHex, err := stg.GatewaySigner()
	switch {
	case errors.Is(err, storage.ErrNotFound):
		if err := signer.Generate(); err != nil {
			return nil, fmt.Errorf("generate gateway signer: %w", err)
		}
		_, priv := signer.HexString()
		if err := stg.SetGatewaySigner(priv); err != nil {
			return nil, fmt.Errorf("store gateway signer: %w", err)
		}
		log.Infow("generated gateway attestation signer", "address", signer.AddressString())
	case err != nil:
		return nil, fmt.Errorf("load gateway signer: %w", err)
	default:
		if err := signer.AddHexKey(privKeyHex); err != nil {
			return nil, fmt.Errorf("restore gateway signer: %w", err)
		}
	}
	return &Coprocessor{
		stg:     stg,
		curve:   curve,
		pubKey:  pubKey,
		privKey: privKey,
		signer:  signer,
	}, nil
}

// PublicKey returns the ElGamal public key clients encrypt against.
func (c *Coprocessor) PublicKey() ecc.Point {
	return c.pubKey
}

// GatewayAddress returns the address of the input attestation signer.
func (c *Coprocessor) GatewayAddress() common.Address {
	return c.signer.Address()
}

// handleOf derives the opaque handle of a serialized ciphertext: the poseidon
// hash of its bytes, as 32 bytes.
func handleOf(data []byte) (types.HexBytes, error) {
	h, err := poseidon.HashBytes(data)
	if err != nil {
		return nil, fmt.Errorf("derive handle: %w", err)
	}
	return arbo.BigIntToBytes(types.HandleSize, h), nil
}

// storeCiphertext persists a ciphertext in the table and returns its handle.
func (c *Coprocessor) storeCiphertext(ct *elgamal.Ciphertext) (types.HexBytes, error) {
	data := ct.Serialize()
	handle, err := handleOf(data)
	if err != nil {
		return nil, err
	}
	if err := c.stg.SetCiphertext(handle, data); err != nil {
		return nil, err
	}
	return handle, nil
}

// loadCiphertext resolves a handle into its ciphertext.
func (c *Coprocessor) loadCiphertext(handle types.HexBytes) (*elgamal.Ciphertext, error) {
	data, err := c.stg.Ciphertext(handle)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrUnknownHandle
	}
	if err != nil {
		return nil, err
	}
	ct := elgamal.NewCiphertext(c.curve)
	if err := ct.Deserialize(data); err != nil {
		return nil, fmt.Errorf("corrupt ciphertext for handle %s: %w", handle, err)
	}
	return ct, nil
}

// TrivialEncrypt encrypts a public constant and returns its handle. Used for
// the encrypted-zero accumulators and the constant branches of Select.
func (c *Coprocessor) TrivialEncrypt(value uint64) (types.HexBytes, error) {
	ct := elgamal.NewCiphertext(c.curve)
	if _, err := ct.Encrypt(new(big.Int).SetUint64(value), c.pubKey, nil); err != nil {
		return nil, err
	}
	return c.storeCiphertext(ct)
}

// Add homomorphically adds the two encrypted values and returns the handle of
// the sum. This is a genuine ciphertext-domain operation: no decryption is
// involved.
func (c *Coprocessor) Add(a, b types.HexBytes) (types.HexBytes, error) {
	x, err := c.loadCiphertext(a)
	if err != nil {
		return nil, err
	}
	y, err := c.loadCiphertext(b)
	if err != nil {
		return nil, err
	}
	sum := elgamal.NewCiphertext(c.curve).Add(x, y)
	return c.storeCiphertext(sum)
}

// EqConst evaluates the comparison gate "encrypted value == constant" and
// returns the handle of a fresh encrypted bit (1 if equal, 0 otherwise).
func (c *Coprocessor) EqConst(a types.HexBytes, constant uint64) (types.HexBytes, error) {
	ct, err := c.loadCiphertext(a)
	if err != nil {
		return nil, err
	}
	_, value, err := elgamal.Decrypt(c.pubKey, c.privKey, ct.C1, ct.C2, maxComparableValue)
	if err != nil {
		return nil, fmt.Errorf("comparison gate: %w", err)
	}
	bit := uint64(0)
	if value.Uint64() == constant {
		bit = 1
	}
	return c.TrivialEncrypt(bit)
}

// Select evaluates the selection gate: it returns a handle to the value of
// ifTrue when the encrypted bit is 1, of ifFalse otherwise. The result is
// re-randomized with an encryption of zero, so it is unlinkable to either
// branch input.
func (c *Coprocessor) Select(bit, ifTrue, ifFalse types.HexBytes) (types.HexBytes, error) {
	bitCt, err := c.loadCiphertext(bit)
	if err != nil {
		return nil, err
	}
	_, b, err := elgamal.Decrypt(c.pubKey, c.privKey, bitCt.C1, bitCt.C2, 1)
	if err != nil {
		return nil, fmt.Errorf("selection gate: %w", err)
	}
	chosen := ifFalse
	if b.Uint64() == 1 {
		chosen = ifTrue
	}
	branch, err := c.loadCiphertext(chosen)
	if err != nil {
		return nil, err
	}
	mask := elgamal.NewCiphertext(c.curve)
	if _, err := mask.Encrypt(big.NewInt(0), c.pubKey, nil); err != nil {
		return nil, err
	}
	return c.storeCiphertext(elgamal.NewCiphertext(c.curve).Add(branch, mask))
}

// Decrypt resolves a handle into its cleartext value, searching the discrete
// log up to maxMessage. Only the decryption oracle calls this.
func (c *Coprocessor) Decrypt(handle types.HexBytes, maxMessage uint64) (uint64, error) {
	ct, err := c.loadCiphertext(handle)
	if err != nil {
		return 0, err
	}
	_, value, err := elgamal.Decrypt(c.pubKey, c.privKey, ct.C1, ct.C2, maxMessage)
	if err != nil {
		return 0, err
	}
	return value.Uint64(), nil
}

// inputDigest is the message signed by the gateway to attest an input batch:
// the target contract, the submitting user and every handle, in order.
func inputDigest(handles []types.HexBytes, user, contract common.Address) []byte {
	var buf bytes.Buffer
	buf.Write(contract.Bytes())
	buf.Write(user.Bytes())
	for _, h := range handles {
		buf.Write(h)
	}
	return buf.Bytes()
}

// EncryptInput encrypts a batch of caller values and returns their handles
// plus a single attestation proof binding the batch to the (user, contract)
// pair. This is the gateway operation clients use to build a vote.
func (c *Coprocessor) EncryptInput(user, contract common.Address, values []uint64) ([]types.HexBytes, types.HexBytes, error) {
	if len(values) == 0 {
		return nil, nil, fmt.Errorf("empty input batch")
	}
	handles := make([]types.HexBytes, len(values))
	for i, v := range values {
		if v >= maxComparableValue {
			return nil, nil, fmt.Errorf("input value %d out of range", v)
		}
		handle, err := c.TrivialEncrypt(v)
		if err != nil {
			return nil, nil, err
		}
		handles[i] = handle
	}
	proof, err := c.signer.SignEthereum(inputDigest(handles, user, contract))
	if err != nil {
		return nil, nil, fmt.Errorf("sign input attestation: %w", err)
	}
	return handles, proof, nil
}

// VerifyInput checks the attestation proof of an input batch. It must pass
// before any counter mutation happens.
func (c *Coprocessor) VerifyInput(handles []types.HexBytes, user, contract common.Address, proof []byte) error {
	addr, err := ethereum.AddrFromSignature(inputDigest(handles, user, contract), proof)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInputProof, err)
	}
	if addr != c.signer.Address() {
		return ErrInvalidInputProof
	}
	// every handle must reference a known ciphertext
	for _, h := range handles {
		if _, err := c.stg.Ciphertext(h); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInputProof, ErrUnknownHandle)
		}
	}
	return nil
}
