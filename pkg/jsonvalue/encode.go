package jsonvalue

import (
	"io"

	jsoniter "github.com/json-iterator/go"
)

var api = jsoniter.ConfigCompatibleWithStandardLibrary

// String renders v as compact JSON text.
func (v Value) String() string {
	stream := api.BorrowStream(nil)
	defer api.ReturnStream(stream)

	v.writeTo(stream)
	return string(stream.Buffer())
}

// Encode writes v as compact JSON text to w.
func Encode(w io.Writer, v Value) error {
	stream := jsoniter.NewStream(api, w, 512)
	v.writeTo(stream)
	if stream.Error != nil {
		return stream.Error
	}
	return stream.Flush()
}

func (v Value) writeTo(stream *jsoniter.Stream) {
	switch v.kind {
	case KindBool:
		stream.WriteBool(v.boolean)
	case KindNumber:
		stream.WriteRaw(v.text)
	case KindString:
		stream.WriteString(v.text)
	case KindArray:
		stream.WriteArrayStart()
		for i, item := range v.items {
			if i > 0 {
				stream.WriteMore()
			}
			item.writeTo(stream)
		}
		stream.WriteArrayEnd()
	case KindObject:
		stream.WriteObjectStart()
		for i, m := range v.members {
			if i > 0 {
				stream.WriteMore()
			}
			stream.WriteObjectField(m.Key)
			m.Value.writeTo(stream)
		}
		stream.WriteObjectEnd()
	default:
		stream.WriteNil()
	}
}
