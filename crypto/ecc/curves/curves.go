// Package curves instantiates the supported elliptic curve implementations by
// their type identifier.
package curves

import (
	"fmt"

	"github.com/vocdoni/fhe-survey/crypto/ecc"
	bjj_gnark "github.com/vocdoni/fhe-survey/crypto/ecc/bjj_gnark"
	bjj_iden3 "github.com/vocdoni/fhe-survey/crypto/ecc/bjj_iden3"
	"github.com/vocdoni/fhe-survey/crypto/ecc/bn254"
)

const (
	// CurveTypeBabyJubJub is the default BabyJubJub implementation.
	CurveTypeBabyJubJub      = "bjj_gnark"
	CurveTypeBabyJubJubGnark = "bjj_gnark"
	CurveTypeBabyJubJubIden3 = "bjj_iden3"
	CurveTypeBN254           = "bn254"
)

// Curves returns the list of supported curve type identifiers.
func Curves() []string {
	return []string{CurveTypeBabyJubJubGnark, CurveTypeBabyJubJubIden3, CurveTypeBN254}
}

// New creates a new instance of a curve implementation based on the provided
// type string. The supported types are defined as constants in this package.
func New(curveType string) (ecc.Point, error) {
	switch curveType {
	case CurveTypeBabyJubJubGnark:
		return bjj_gnark.New(), nil
	case CurveTypeBN254:
		return bn254.New(), nil
	case CurveTypeBabyJubJubIden3:
		return bjj_iden3.New(), nil
	default:
		return nil, fmt.Errorf("unsupported curve type: %s", curveType)
	}
}
