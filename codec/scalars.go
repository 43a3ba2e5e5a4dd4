package codec

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PrimitiveKind identifies a base scalar's domain and wire encoding
// (spec.md §3's Scalar variant).
type PrimitiveKind string

const (
	KindBool          PrimitiveKind = "std::bool"
	KindInt16         PrimitiveKind = "std::int16"
	KindInt32         PrimitiveKind = "std::int32"
	KindInt64         PrimitiveKind = "std::int64"
	KindFloat32       PrimitiveKind = "std::float32"
	KindFloat64       PrimitiveKind = "std::float64"
	KindDecimal       PrimitiveKind = "std::decimal"
	KindBigInt        PrimitiveKind = "std::bigint"
	KindString        PrimitiveKind = "std::str"
	KindBytes         PrimitiveKind = "std::bytes"
	KindUUID          PrimitiveKind = "std::uuid"
	KindDatetime      PrimitiveKind = "std::datetime"
	KindLocalDate     PrimitiveKind = "cal::local_date"
	KindLocalTime     PrimitiveKind = "cal::local_time"
	KindLocalDateTime PrimitiveKind = "cal::local_datetime"
	KindDuration      PrimitiveKind = "std::duration"
	KindJSON          PrimitiveKind = "std::json"
)

// epoch is the reference instant for all date/time wire encodings
// (2000-01-01T00:00:00Z), matching the protocol family this driver is
// modelled on.
var epoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// BaseScalarTypeIDs is the hard-coded table of well-known base scalar
// type ids (spec.md §4.D: "resolved by matching type_id against a
// hard-coded table of well-known ids"). The ids here are this driver's
// own fixed assignment, stable across releases.
var BaseScalarTypeIDs = map[TypeID]PrimitiveKind{
	mustID("00000000-0000-0000-0000-000000000101"): KindBool,
	mustID("00000000-0000-0000-0000-000000000102"): KindInt16,
	mustID("00000000-0000-0000-0000-000000000103"): KindInt32,
	mustID("00000000-0000-0000-0000-000000000104"): KindInt64,
	mustID("00000000-0000-0000-0000-000000000105"): KindFloat32,
	mustID("00000000-0000-0000-0000-000000000106"): KindFloat64,
	mustID("00000000-0000-0000-0000-000000000107"): KindDecimal,
	mustID("00000000-0000-0000-0000-000000000108"): KindBigInt,
	mustID("00000000-0000-0000-0000-000000000109"): KindString,
	mustID("00000000-0000-0000-0000-00000000010a"): KindBytes,
	mustID("00000000-0000-0000-0000-00000000010b"): KindUUID,
	mustID("00000000-0000-0000-0000-00000000010c"): KindDatetime,
	mustID("00000000-0000-0000-0000-00000000010d"): KindLocalDate,
	mustID("00000000-0000-0000-0000-00000000010e"): KindLocalTime,
	mustID("00000000-0000-0000-0000-00000000010f"): KindLocalDateTime,
	mustID("00000000-0000-0000-0000-000000000110"): KindDuration,
	mustID("00000000-0000-0000-0000-000000000111"): KindJSON,
}

func mustID(s string) TypeID {
	u, err := uuid.Parse(s)
	if err != nil {
		panic(err)
	}
	var id TypeID
	copy(id[:], u[:])
	return id
}

// LocalDate is days since epoch, with no time-of-day or time zone.
type LocalDate int32

// LocalTime is microseconds since midnight, with no time zone.
type LocalTime int64

// LocalDateTime is microseconds since epoch, with no time zone.
type LocalDateTime int64

func (c *ScalarCodec) Encode(dst []byte, value interface{}) ([]byte, error) {
	switch c.Kind {
	case KindBool:
		v, ok := value.(bool)
		if !ok {
			return nil, fmtTypeMismatch(c.Kind, value)
		}
		if v {
			return append(dst, 1), nil
		}
		return append(dst, 0), nil

	case KindInt16:
		v, ok := asInt64(value)
		if !ok || v < math.MinInt16 || v > math.MaxInt16 {
			return nil, fmtTypeMismatch(c.Kind, value)
		}
		return appendUint16(dst, uint16(int16(v))), nil

	case KindInt32:
		v, ok := asInt64(value)
		if !ok || v < math.MinInt32 || v > math.MaxInt32 {
			return nil, fmtTypeMismatch(c.Kind, value)
		}
		return appendUint32(dst, uint32(int32(v))), nil

	case KindInt64:
		v, ok := asInt64(value)
		if !ok {
			return nil, fmtTypeMismatch(c.Kind, value)
		}
		return appendUint64(dst, uint64(v)), nil

	case KindFloat32:
		v, ok := asFloat64(value)
		if !ok {
			return nil, fmtTypeMismatch(c.Kind, value)
		}
		return appendUint32(dst, math.Float32bits(float32(v))), nil

	case KindFloat64:
		v, ok := asFloat64(value)
		if !ok {
			return nil, fmtTypeMismatch(c.Kind, value)
		}
		return appendUint64(dst, math.Float64bits(v)), nil

	case KindDecimal:
		v, ok := value.(decimal.Decimal)
		if !ok {
			return nil, fmtTypeMismatch(c.Kind, value)
		}
		return encodeNumeric(dst, v, false), nil

	case KindBigInt:
		v, ok := value.(*big.Int)
		if !ok {
			return nil, fmtTypeMismatch(c.Kind, value)
		}
		return encodeNumeric(dst, decimal.NewFromBigInt(v, 0), true), nil

	case KindString:
		v, ok := value.(string)
		if !ok {
			return nil, fmtTypeMismatch(c.Kind, value)
		}
		return append(dst, v...), nil

	case KindBytes:
		v, ok := value.([]byte)
		if !ok {
			return nil, fmtTypeMismatch(c.Kind, value)
		}
		return append(dst, v...), nil

	case KindUUID:
		u, err := coerceUUID(value)
		if err != nil {
			return nil, err
		}
		return append(dst, u[:]...), nil

	case KindDatetime:
		v, ok := value.(time.Time)
		if !ok {
			return nil, fmtTypeMismatch(c.Kind, value)
		}
		micros := v.UTC().Sub(epoch).Microseconds()
		return appendUint64(dst, uint64(micros)), nil

	case KindLocalDate:
		v, ok := value.(LocalDate)
		if !ok {
			return nil, fmtTypeMismatch(c.Kind, value)
		}
		return appendUint32(dst, uint32(v)), nil

	case KindLocalTime:
		v, ok := value.(LocalTime)
		if !ok {
			return nil, fmtTypeMismatch(c.Kind, value)
		}
		return appendUint64(dst, uint64(v)), nil

	case KindLocalDateTime:
		v, ok := value.(LocalDateTime)
		if !ok {
			return nil, fmtTypeMismatch(c.Kind, value)
		}
		return appendUint64(dst, uint64(v)), nil

	case KindDuration:
		v, ok := value.(time.Duration)
		if !ok {
			return nil, fmtTypeMismatch(c.Kind, value)
		}
		return appendUint64(dst, uint64(v.Microseconds())), nil

	case KindJSON:
		v, ok := value.([]byte)
		if !ok {
			s, isStr := value.(string)
			if !isStr {
				return nil, fmtTypeMismatch(c.Kind, value)
			}
			v = []byte(s)
		}
		dst = append(dst, 1) // format byte, fixed at 1
		return append(dst, v...), nil

	default:
		return nil, fmt.Errorf("codec: unknown scalar kind %q", c.Kind)
	}
}

func (c *ScalarCodec) Decode(data []byte) (interface{}, error) {
	switch c.Kind {
	case KindBool:
		if len(data) != 1 {
			return nil, shortScalar(c.Kind, 1, len(data))
		}
		return data[0] != 0, nil

	case KindInt16:
		if len(data) != 2 {
			return nil, shortScalar(c.Kind, 2, len(data))
		}
		return int16(binary.BigEndian.Uint16(data)), nil

	case KindInt32:
		if len(data) != 4 {
			return nil, shortScalar(c.Kind, 4, len(data))
		}
		return int32(binary.BigEndian.Uint32(data)), nil

	case KindInt64:
		if len(data) != 8 {
			return nil, shortScalar(c.Kind, 8, len(data))
		}
		return int64(binary.BigEndian.Uint64(data)), nil

	case KindFloat32:
		if len(data) != 4 {
			return nil, shortScalar(c.Kind, 4, len(data))
		}
		return math.Float32frombits(binary.BigEndian.Uint32(data)), nil

	case KindFloat64:
		if len(data) != 8 {
			return nil, shortScalar(c.Kind, 8, len(data))
		}
		return math.Float64frombits(binary.BigEndian.Uint64(data)), nil

	case KindDecimal:
		return decodeNumeric(data)

	case KindBigInt:
		d, err := decodeNumeric(data)
		if err != nil {
			return nil, err
		}
		return d.(decimal.Decimal).BigInt(), nil

	case KindString:
		return string(data), nil

	case KindBytes:
		return append([]byte(nil), data...), nil

	case KindUUID:
		if len(data) != 16 {
			return nil, shortScalar(c.Kind, 16, len(data))
		}
		var u uuid.UUID
		copy(u[:], data)
		return u, nil

	case KindDatetime:
		if len(data) != 8 {
			return nil, shortScalar(c.Kind, 8, len(data))
		}
		micros := int64(binary.BigEndian.Uint64(data))
		return epoch.Add(time.Duration(micros) * time.Microsecond), nil

	case KindLocalDate:
		if len(data) != 4 {
			return nil, shortScalar(c.Kind, 4, len(data))
		}
		return LocalDate(int32(binary.BigEndian.Uint32(data))), nil

	case KindLocalTime:
		if len(data) != 8 {
			return nil, shortScalar(c.Kind, 8, len(data))
		}
		return LocalTime(int64(binary.BigEndian.Uint64(data))), nil

	case KindLocalDateTime:
		if len(data) != 8 {
			return nil, shortScalar(c.Kind, 8, len(data))
		}
		return LocalDateTime(int64(binary.BigEndian.Uint64(data))), nil

	case KindDuration:
		if len(data) != 8 {
			return nil, shortScalar(c.Kind, 8, len(data))
		}
		micros := int64(binary.BigEndian.Uint64(data))
		return time.Duration(micros) * time.Microsecond, nil

	case KindJSON:
		if len(data) < 1 {
			return nil, shortScalar(c.Kind, 1, len(data))
		}
		return append([]byte(nil), data[1:]...), nil

	default:
		return nil, fmt.Errorf("codec: unknown scalar kind %q", c.Kind)
	}
}

func shortScalar(kind PrimitiveKind, want, got int) error {
	return fmt.Errorf("codec: %s: expected %d bytes, got %d", kind, want, got)
}

func asInt64(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	default:
		return 0, false
	}
}

func asFloat64(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

func coerceUUID(value interface{}) (uuid.UUID, error) {
	switch v := value.(type) {
	case uuid.UUID:
		return v, nil
	case [16]byte:
		return uuid.UUID(v), nil
	case string:
		u, err := uuid.Parse(v)
		if err != nil {
			return uuid.UUID{}, fmt.Errorf("value can not be encoded as std::uuid: %q", v)
		}
		return u, nil
	case []byte:
		if len(v) == 16 {
			var u uuid.UUID
			copy(u[:], v)
			return u, nil
		}
		s := strings.TrimSpace(string(v))
		u, err := uuid.Parse(s)
		if err != nil {
			return uuid.UUID{}, fmt.Errorf("value can not be encoded as std::uuid: %q", s)
		}
		return u, nil
	default:
		return uuid.UUID{}, fmtTypeMismatch(KindUUID, value)
	}
}

func appendUint16(dst []byte, v uint16) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return append(dst, b[:]...)
}

func appendUint32(dst []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(dst, b[:]...)
}

func appendUint64(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

// Numeric wire format (shared by decimal and bigint): a base-10000
// digit-group encoding, patterned on the well-known Postgres numeric
// wire layout this protocol family borrows.
//
//	u16 ndigits, i16 weight, u16 sign (0x0000 pos, 0x4000 neg), u16 dscale,
//	then ndigits x u16 digit groups, most significant first.
const (
	numericSignPositive uint16 = 0x0000
	numericSignNegative uint16 = 0x4000
)

func encodeNumeric(dst []byte, d decimal.Decimal, isBigInt bool) []byte {
	dscale := uint16(0)
	if !isBigInt {
		dscale = uint16(-d.Exponent())
		if d.Exponent() > 0 {
			dscale = 0
		}
	}
	sign := numericSignPositive
	abs := d
	if d.Sign() < 0 {
		sign = numericSignNegative
		abs = d.Neg()
	}

	coeff := abs.Coefficient()
	digits, weight := splitBase10000(coeff, int(abs.Exponent()))

	dst = appendUint16(dst, uint16(len(digits)))
	dst = append(dst, byte(weight>>8), byte(weight))
	dst = appendUint16(dst, sign)
	dst = appendUint16(dst, dscale)
	for _, g := range digits {
		dst = appendUint16(dst, g)
	}
	return dst
}

func decodeNumeric(data []byte) (interface{}, error) {
	if len(data) < 8 {
		return nil, shortScalar(KindDecimal, 8, len(data))
	}
	ndigits := binary.BigEndian.Uint16(data[0:2])
	weight := int16(binary.BigEndian.Uint16(data[2:4]))
	sign := binary.BigEndian.Uint16(data[4:6])
	dscale := binary.BigEndian.Uint16(data[6:8])
	if len(data) != 8+int(ndigits)*2 {
		return nil, fmt.Errorf("codec: std::decimal: malformed numeric payload")
	}

	coeff := big.NewInt(0)
	base := big.NewInt(10000)
	for i := 0; i < int(ndigits); i++ {
		g := binary.BigEndian.Uint16(data[8+i*2 : 10+i*2])
		coeff.Mul(coeff, base)
		coeff.Add(coeff, big.NewInt(int64(g)))
	}

	// Exponent accounting: weight is the base-10000 exponent of the
	// first digit group; the value's base-10 exponent of the trailing
	// digit group is -4*(ndigits-1-weight).
	exp10 := int32(weight+1-int16(ndigits)) * 4
	d := decimal.NewFromBigInt(coeff, exp10)
	if sign == numericSignNegative {
		d = d.Neg()
	}
	_ = dscale
	return d, nil
}

// splitBase10000 splits a non-negative big.Int coefficient scaled by
// 10^exp into base-10000 digit groups plus the weight of the first
// group, matching the Postgres-style numeric wire layout. Each digit
// group must represent exactly 4 decimal digits of the value, so exp
// is first floor-aligned to a multiple of 4 by left-padding coeff with
// zeros (e.g. coeff=123, exp=-2 becomes coeff=12300, exp=-4) before
// splitting; splitting on the raw exp would silently misplace the
// decimal point for any value whose exponent isn't already a multiple
// of 4.
func splitBase10000(coeff *big.Int, exp int) ([]uint16, int16) {
	if coeff.Sign() == 0 {
		return []uint16{}, 0
	}
	alignedExp := floorDiv4(exp) * 4
	pad := exp - alignedExp // 0..3, the digits short of a 4-digit boundary
	v := new(big.Int).Set(coeff)
	if pad > 0 {
		v = new(big.Int).Mul(v, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(pad)), nil))
	}

	base := big.NewInt(10000)
	var groups []uint16
	for v.Sign() != 0 {
		mod := new(big.Int)
		v.DivMod(v, base, mod)
		groups = append(groups, uint16(mod.Int64()))
	}
	// groups is currently least-significant-first; reverse it.
	for i, j := 0, len(groups)-1; i < j; i, j = i+1, j-1 {
		groups[i], groups[j] = groups[j], groups[i]
	}
	shift := alignedExp / 4
	weight := int16(len(groups) - 1 + shift)
	return groups, weight
}

// floorDiv4 returns floor(n/4), unlike Go's truncating integer division
// (e.g. floorDiv4(-2) is -1, not 0 — the coefficient's exponent must
// round down to a digit-group boundary, never up, or the padding above
// would shift the decimal point).
func floorDiv4(n int) int {
	q := n / 4
	if n%4 != 0 && n < 0 {
		q--
	}
	return q
}
