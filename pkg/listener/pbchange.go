package listener

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// changeSource mirrors spec.md §4.6's change_source discriminator: which
// upstream produced a pub/sub change message.
type changeSource string

const (
	changeSourceCV1        changeSource = "cv1"
	changeSourceCV2        changeSource = "cv2"
	changeSourceController changeSource = "controller"
)

// pbChangeMessage is the wire shape shared by NetworkChange and
// MemberChange: a change_source discriminator plus the old/new record,
// each JSON-encoded into a bytes field. Built directly on
// google.golang.org/protobuf's low-level wire encoder rather than a
// protoc-generated type, since both messages have an identical three-field
// layout and no .proto compiler runs in this build.
type pbChangeMessage struct {
	source changeSource
	old    []byte // nil/empty means JSON null on the wire contract
	new    []byte
}

const (
	pbFieldSource protowire.Number = 1
	pbFieldOld    protowire.Number = 2
	pbFieldNew    protowire.Number = 3
)

func marshalPBChange(m pbChangeMessage) []byte {
	var b []byte
	b = protowire.AppendTag(b, pbFieldSource, protowire.BytesType)
	b = protowire.AppendString(b, string(m.source))
	if len(m.old) > 0 {
		b = protowire.AppendTag(b, pbFieldOld, protowire.BytesType)
		b = protowire.AppendBytes(b, m.old)
	}
	if len(m.new) > 0 {
		b = protowire.AppendTag(b, pbFieldNew, protowire.BytesType)
		b = protowire.AppendBytes(b, m.new)
	}
	return b
}

func unmarshalPBChange(data []byte) (pbChangeMessage, error) {
	var m pbChangeMessage
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return m, fmt.Errorf("listener: malformed protobuf tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch num {
		case pbFieldSource:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return m, fmt.Errorf("listener: malformed protobuf change_source: %w", protowire.ParseError(n))
			}
			m.source = changeSource(v)
			data = data[n:]
		case pbFieldOld:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return m, fmt.Errorf("listener: malformed protobuf old field: %w", protowire.ParseError(n))
			}
			m.old = append([]byte(nil), v...)
			data = data[n:]
		case pbFieldNew:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return m, fmt.Errorf("listener: malformed protobuf new field: %w", protowire.ParseError(n))
			}
			m.new = append([]byte(nil), v...)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return m, fmt.Errorf("listener: malformed protobuf field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return m, nil
}
