// Package format converts BabyJubJub point coordinates between the two
// twisted Edwards conventions in use: the standard form (TE) used by the
// iden3 stack and the reduced form (RTE) used by gnark-crypto. Both share the
// same curve; coordinates differ by a constant scaling factor on X.
package format

import "math/big"

// scalingFactor is the constant f relating the TE and RTE x-coordinates:
// x_TE = -f * x_RTE (mod p).
var scalingFactor, _ = new(big.Int).SetString(
	"6360561867910373094066688120553762416144456282423235903351243436111059670888", 10)

// baseField is the base field of BabyJubJub, which is the scalar field of
// BN254.
var baseField, _ = new(big.Int).SetString(
	"21888242871839275222246405745257275088548364400416034343698204186575808495617", 10)

// FromTEtoRTE converts a point from standard twisted Edwards coordinates to
// the reduced form used by gnark-crypto.
func FromTEtoRTE(x, y *big.Int) (*big.Int, *big.Int) {
	negF := new(big.Int).Mod(new(big.Int).Neg(scalingFactor), baseField)
	invNegF := new(big.Int).ModInverse(negF, baseField)
	xRTE := new(big.Int).Mod(new(big.Int).Mul(x, invNegF), baseField)
	return xRTE, new(big.Int).Set(y)
}

// FromRTEtoTE converts a point from the reduced twisted Edwards coordinates
// used by gnark-crypto to the standard form.
func FromRTEtoTE(x, y *big.Int) (*big.Int, *big.Int) {
	negF := new(big.Int).Mod(new(big.Int).Neg(scalingFactor), baseField)
	xTE := new(big.Int).Mod(new(big.Int).Mul(x, negF), baseField)
	return xTE, new(big.Int).Set(y)
}
