package codec

import (
	"fmt"

	"github.com/ha1tch/veloq-go/wire"
)

// Descriptor tags (spec.md §4.D).
const (
	TagSet         uint8 = 0x00
	TagShape       uint8 = 0x01
	TagBaseScalar  uint8 = 0x02
	TagScalarAlias uint8 = 0x03
	TagTuple       uint8 = 0x04
	TagNamedTuple  uint8 = 0x05
	TagArray       uint8 = 0x06
	TagEnumeration uint8 = 0x07
	TagInputShape  uint8 = 0x08
	TagRange       uint8 = 0x09
)

// ParseDescriptors walks a type-descriptor blob in order, materialising
// a codec for each entry using already-materialised codecs at the
// positions it references, and returns the root codec — the last
// descriptor in the blob (spec.md §4.D). Materialised codecs are
// inserted into cache under their type_id, or the already-cached
// instance is reused; re-running ParseDescriptors over the same blob
// therefore returns codecs with identical type_id-keyed identity.
func ParseDescriptors(blob []byte, cache *Cache) (Codec, error) {
	r := wire.NewReader(blob)
	var byPosition []Codec

	for !r.AtEnd() {
		tag, err := r.GetUint8()
		if err != nil {
			return nil, err
		}
		rawID, err := r.GetRaw(16)
		if err != nil {
			return nil, err
		}
		var id TypeID
		copy(id[:], rawID)

		var c Codec
		switch tag {
		case TagBaseScalar:
			kind, ok := BaseScalarTypeIDs[id]
			if !ok {
				return nil, fmt.Errorf("codec: unknown base scalar type_id %s (protocol_error)", id)
			}
			c = cache.GetOrStore(id, &ScalarCodec{TypeID: id, Kind: kind})

		case TagScalarAlias:
			pos, err := r.GetUint16()
			if err != nil {
				return nil, err
			}
			base, err := refAt(byPosition, pos)
			if err != nil {
				return nil, err
			}
			sc, ok := base.(*ScalarCodec)
			if !ok {
				return nil, fmt.Errorf("codec: scalar alias at position %d does not reference a base scalar", pos)
			}
			c = cache.GetOrStore(id, &ScalarCodec{TypeID: id, Kind: sc.Kind})

		case TagSet:
			pos, err := r.GetUint16()
			if err != nil {
				return nil, err
			}
			inner, err := refAt(byPosition, pos)
			if err != nil {
				return nil, err
			}
			c = cache.GetOrStore(id, &SetCodec{TypeID: id, Inner: inner})

		case TagArray:
			pos, err := r.GetUint16()
			if err != nil {
				return nil, err
			}
			ndims, err := r.GetUint16()
			if err != nil {
				return nil, err
			}
			for i := 0; i < int(ndims); i++ {
				if _, err := r.GetUint32(); err != nil { // declared dim, unused beyond count
					return nil, err
				}
			}
			inner, err := refAt(byPosition, pos)
			if err != nil {
				return nil, err
			}
			c = cache.GetOrStore(id, &ArrayCodec{TypeID: id, Inner: inner})

		case TagTuple:
			n, err := r.GetUint16()
			if err != nil {
				return nil, err
			}
			elems := make([]Codec, n)
			for i := 0; i < int(n); i++ {
				pos, err := r.GetUint16()
				if err != nil {
					return nil, err
				}
				elems[i], err = refAt(byPosition, pos)
				if err != nil {
					return nil, err
				}
			}
			c = cache.GetOrStore(id, &TupleCodec{TypeID: id, Elements: elems})

		case TagNamedTuple:
			n, err := r.GetUint16()
			if err != nil {
				return nil, err
			}
			names := make([]string, n)
			elems := make([]Codec, n)
			for i := 0; i < int(n); i++ {
				name, err := r.GetString()
				if err != nil {
					return nil, err
				}
				pos, err := r.GetUint16()
				if err != nil {
					return nil, err
				}
				names[i] = name
				elems[i], err = refAt(byPosition, pos)
				if err != nil {
					return nil, err
				}
			}
			c = cache.GetOrStore(id, &NamedTupleCodec{TypeID: id, Names: names, Elems: elems})

		case TagShape, TagInputShape:
			n, err := r.GetUint16()
			if err != nil {
				return nil, err
			}
			fields := make([]ObjectField, n)
			for i := 0; i < int(n); i++ {
				flags, err := r.GetUint8()
				if err != nil {
					return nil, err
				}
				name, err := r.GetString()
				if err != nil {
					return nil, err
				}
				pos, err := r.GetUint16()
				if err != nil {
					return nil, err
				}
				fieldCodec, err := refAt(byPosition, pos)
				if err != nil {
					return nil, err
				}
				fields[i] = ObjectField{Name: name, Flags: ElementFlags(flags), Codec: fieldCodec}
			}
			c = cache.GetOrStore(id, &ObjectCodec{TypeID: id, Fields: fields})

		case TagEnumeration:
			n, err := r.GetUint16()
			if err != nil {
				return nil, err
			}
			labels := make([]string, n)
			for i := 0; i < int(n); i++ {
				labels[i], err = r.GetString()
				if err != nil {
					return nil, err
				}
			}
			c = cache.GetOrStore(id, &EnumCodec{TypeID: id, Labels: labels})

		case TagRange:
			pos, err := r.GetUint16()
			if err != nil {
				return nil, err
			}
			inner, err := refAt(byPosition, pos)
			if err != nil {
				return nil, err
			}
			c = cache.GetOrStore(id, &RangeCodec{TypeID: id, Inner: inner})

		default:
			return nil, fmt.Errorf("codec: unknown descriptor tag %#x (protocol_error)", tag)
		}

		byPosition = append(byPosition, c)
	}

	if len(byPosition) == 0 {
		return nil, fmt.Errorf("codec: empty descriptor blob")
	}
	return byPosition[len(byPosition)-1], nil
}

func refAt(byPosition []Codec, pos uint16) (Codec, error) {
	if int(pos) >= len(byPosition) {
		return nil, fmt.Errorf("codec: descriptor references position %d beyond %d parsed so far (protocol_error)", pos, len(byPosition))
	}
	return byPosition[pos], nil
}
