package edoc

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

func marshalMsgpack(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.GetEncoder()
	enc.Reset(&buf)
	enc.SetSortMapKeys(true)
	err := enc.Encode(v)
	msgpack.PutEncoder(enc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %T using MsgPack: %w", v, err)
	}
	return buf.Bytes(), nil
}

func unmarshalMsgpack(raw []byte, ptr any) error {
	var r bytes.Reader
	r.Reset(raw)
	dec := msgpack.GetDecoder()
	dec.Reset(&r)
	dec.UseLooseInterfaceDecoding(true)
	err := dec.Decode(ptr)
	msgpack.PutDecoder(dec)
	if err != nil {
		return fmt.Errorf("failed to decode msgpack into %T: %w", ptr, err)
	}
	return nil
}

func loggableDoc(scm *Schema, doc Doc) string {
	if doc == nil {
		return "<none>"
	}
	if scm != nil && scm.suppressContent {
		return "<suppressed>"
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(raw)
}
