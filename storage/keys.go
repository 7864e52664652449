package storage

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/vocdoni/fhe-survey/crypto/ecc"
	"github.com/vocdoni/fhe-survey/crypto/ecc/curves"
	"github.com/vocdoni/fhe-survey/types"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

// encryptionKeys is the stored form of the coprocessor ElGamal key pair.
type encryptionKeys struct {
	CurveType  string   `cbor:"0,keyasint"`
	X          *big.Int `cbor:"1,keyasint"`
	Y          *big.Int `cbor:"2,keyasint"`
	PrivateKey *big.Int `cbor:"3,keyasint"`
}

var (
	encryptionKeysKey = []byte("elgamal")
	gatewaySignerKey  = []byte("gateway")
)

// SetEncryptionKeys stores the coprocessor ElGamal key pair.
func (s *Storage) SetEncryptionKeys(publicKey ecc.Point, privateKey *big.Int) error {
	x, y := publicKey.Point()
	eks := encryptionKeys{
		CurveType:  publicKey.Type(),
		X:          x,
		Y:          y,
		PrivateKey: privateKey,
	}
	return s.setArtifact(keysPrefix, encryptionKeysKey, eks)
}

// EncryptionKeys loads the coprocessor ElGamal key pair. Returns ErrNotFound
// if no keys have been generated yet.
func (s *Storage) EncryptionKeys() (ecc.Point, *big.Int, error) {
	eks := encryptionKeys{}
	if err := s.getArtifact(keysPrefix, encryptionKeysKey, &eks); err != nil {
		return nil, nil, err
	}
	curve, err := curves.New(eks.CurveType)
	if err != nil {
		return nil, nil, fmt.Errorf("could not restore encryption keys: %w", err)
	}
	return curve.SetPoint(eks.X, eks.Y), eks.PrivateKey, nil
}

// SetGatewaySigner stores the hex private key of the input attestation
// signer, so attestations stay verifiable across restarts.
func (s *Storage) SetGatewaySigner(privKeyHex string) error {
	return s.setArtifact(keysPrefix, gatewaySignerKey, privKeyHex)
}

// GatewaySigner loads the hex private key of the input attestation signer.
// Returns ErrNotFound if no signer has been generated yet.
func (s *Storage) GatewaySigner() (string, error) {
	var privKeyHex string
	if err := s.getArtifact(keysPrefix, gatewaySignerKey, &privKeyHex); err != nil {
		return "", err
	}
	return privKeyHex, nil
}

// SetCiphertext stores a serialized ciphertext under its opaque handle in the
// coprocessor table. The table is append-only: handles are derived from the
// ciphertext itself, so overwriting an existing entry is harmless.
func (s *Storage) SetCiphertext(handle types.HexBytes, data []byte) error {
	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), ciphertextPrefix)
	if err := wTx.Set(handle, data); err != nil {
		wTx.Discard()
		return err
	}
	return wTx.Commit()
}

// Ciphertext returns the serialized ciphertext referenced by the handle.
func (s *Storage) Ciphertext(handle types.HexBytes) ([]byte, error) {
	rd := prefixeddb.NewPrefixedReader(s.db, ciphertextPrefix)
	data, err := rd.Get(handle)
	if errors.Is(err, db.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}
