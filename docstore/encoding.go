package docstore

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

func encodeDocument(buf []byte, doc Document) ([]byte, error) {
	bb := bytes.NewBuffer(buf)
	enc := msgpack.GetEncoder()
	enc.Reset(bb)
	enc.SetSortMapKeys(true)
	err := enc.Encode(doc)
	msgpack.PutEncoder(enc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document using MsgPack: %w", err)
	}
	return bb.Bytes(), nil
}

// decodeDocument copies everything it needs out of raw, so raw may point into
// memory that is only valid during a transaction.
func decodeDocument(raw []byte) (Document, error) {
	var r bytes.Reader
	r.Reset(raw)
	dec := msgpack.GetDecoder()
	dec.Reset(&r)
	dec.UseLooseInterfaceDecoding(true)
	var doc map[string]any
	err := dec.Decode(&doc)
	msgpack.PutDecoder(dec)
	if err != nil {
		return nil, fmt.Errorf("failed to decode msgpack document (%d bytes): %w", len(raw), err)
	}
	return doc, nil
}
