package secp

import (
	"errors"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// ErrNotOnCurve is returned when coordinates do not satisfy y² = x³ + 7.
var ErrNotOnCurve = errors.New("point is not on the secp256k1 curve")

var (
	curveB    = FieldFromUint64(7)
	generator = func() Point {
		params := secp256k1.Params()
		var x, y FieldElement
		x.f.SetByteSlice(params.Gx.Bytes())
		y.f.SetByteSlice(params.Gy.Bytes())
		return Point{X: x, Y: y}
	}()
)

// Point is an affine point on secp256k1, or the point at infinity.
type Point struct {
	X, Y FieldElement
	inf  bool
}

// Infinity returns the identity element.
func Infinity() Point {
	return Point{inf: true}
}

// Generator returns the base point G.
func Generator() Point {
	return generator
}

// NewPoint returns the affine point (x, y) after checking it lies on the curve.
func NewPoint(x, y FieldElement) (Point, error) {
	p := Point{X: x, Y: y}
	if !p.IsOnCurve() {
		return Point{}, ErrNotOnCurve
	}
	return p, nil
}

// ScalarBaseMult returns k·G. Zero yields the point at infinity.
func ScalarBaseMult(k Scalar) Point {
	var r secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(&k.n, &r)
	return fromJacobian(&r)
}

// IsInfinity reports whether p is the identity element.
func (p Point) IsInfinity() bool {
	return p.inf
}

// Add returns p + q under the group law, including the doubling and
// inverse-point cases.
func (p Point) Add(q Point) Point {
	a, b := p.jacobian(), q.jacobian()
	var r secp256k1.JacobianPoint
	secp256k1.AddNonConst(&a, &b, &r)
	return fromJacobian(&r)
}

// Double returns 2p.
func (p Point) Double() Point {
	if p.inf {
		return p
	}
	a := p.jacobian()
	var r secp256k1.JacobianPoint
	secp256k1.DoubleNonConst(&a, &r)
	return fromJacobian(&r)
}

// Neg returns -p.
func (p Point) Neg() Point {
	if p.inf {
		return p
	}
	p.Y = p.Y.Negate()
	return p
}

// ScalarMult returns k·p.
func (p Point) ScalarMult(k Scalar) Point {
	if p.inf {
		return p
	}
	a := p.jacobian()
	var r secp256k1.JacobianPoint
	secp256k1.ScalarMultNonConst(&k.n, &a, &r)
	return fromJacobian(&r)
}

// Equal reports whether p and q are the same point.
func (p Point) Equal(q Point) bool {
	if p.inf || q.inf {
		return p.inf == q.inf
	}
	return p.X.Equal(q.X) && p.Y.Equal(q.Y)
}

// IsOnCurve reports whether p satisfies the curve equation. The point at
// infinity is on the curve.
func (p Point) IsOnCurve() bool {
	if p.inf {
		return true
	}
	rhs := p.X.Square().Mul(p.X).Add(curveB)
	return p.Y.Square().Equal(rhs)
}

// PutCompressed writes the 33-byte SEC1 compressed encoding into dst.
func (p Point) PutCompressed(dst []byte) {
	dst[0] = secp256k1.PubKeyFormatCompressedEven
	if p.Y.IsOdd() {
		dst[0] = secp256k1.PubKeyFormatCompressedOdd
	}
	p.X.PutBytes(dst[1:33])
}

// PutUncompressed writes the 65-byte SEC1 uncompressed encoding into dst.
func (p Point) PutUncompressed(dst []byte) {
	dst[0] = secp256k1.PubKeyFormatUncompressed
	p.X.PutBytes(dst[1:33])
	p.Y.PutBytes(dst[33:65])
}

func (p Point) jacobian() secp256k1.JacobianPoint {
	if p.inf {
		return secp256k1.JacobianPoint{}
	}
	var one secp256k1.FieldVal
	one.SetInt(1)
	return secp256k1.MakeJacobianPoint(&p.X.f, &p.Y.f, &one)
}

func fromJacobian(r *secp256k1.JacobianPoint) Point {
	if (r.X.IsZero() && r.Y.IsZero()) || r.Z.IsZero() {
		return Infinity()
	}
	r.ToAffine()
	return Point{X: FieldElement{f: r.X}, Y: FieldElement{f: r.Y}}
}
