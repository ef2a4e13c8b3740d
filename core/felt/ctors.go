package felt

// FeltLike is any type sharing the underlying representation of a Felt.
type FeltLike interface {
	~[Limbs]uint64
}

// FromUint64 returns a value of type F set to v
func FromUint64[F FeltLike](v uint64) F {
	var f Felt
	f.SetUint64(v)
	return F(f)
}

// FromBytes returns a value of type F set from the big endian bytes e
func FromBytes[F FeltLike](e []byte) F {
	var f Felt
	f.SetBytes(e)
	return F(f)
}

// FromString parses a decimal or "0x" prefixed hex string into a value of type F
func FromString[F FeltLike](s string) (F, error) {
	var f Felt
	if _, err := f.SetString(s); err != nil {
		return F{}, err
	}
	return F(f), nil
}

// UnsafeFromString is FromString for constants and tests: it panics on malformed input
func UnsafeFromString[F FeltLike](s string) F {
	f, err := FromString[F](s)
	if err != nil {
		panic(err)
	}
	return f
}

// IsZero reports whether v is the zero element
func IsZero[F FeltLike](v F) bool {
	f := Felt(v)
	return f.IsZero()
}

// Equal reports whether a and b hold the same element
func Equal[F FeltLike](a, b F) bool {
	fa := Felt(a)
	fb := Felt(b)
	return fa.Equal(&fb)
}
