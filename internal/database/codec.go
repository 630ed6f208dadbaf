package database

import (
	"bytes"
	"strings"

	"github.com/asdine/storm/v3/codec"
	"github.com/asdine/storm/v3/codec/msgpack"
	"github.com/pkg/errors"
	ucodec "github.com/ugorji/go/codec"
)

// Supported Storm codecs.
const (
	CodecMsgpack = "msgpack"
	CodecCBOR    = "cbor"
	CodecBinc    = "binc"
)

var (
	// CBOR is a codec that encodes to and decodes from CBOR (Concise Binary Object Representation).
	// https://tools.ietf.org/html/rfc7049
	CBOR codec.MarshalUnmarshaler = &ugorjiCodec{name: CodecCBOR, handle: func() ucodec.Handle {
		h := &ucodec.CborHandle{}
		h.Canonical = true
		return h
	}}

	// Binc is a codec that encodes to and decodes from Binc.
	// See https://github.com/ugorji/binc
	Binc codec.MarshalUnmarshaler = &ugorjiCodec{name: CodecBinc, handle: func() ucodec.Handle {
		h := &ucodec.BincHandle{}
		h.Canonical = true
		return h
	}}
)

// StormCodec returns the codec used to store records for the given name.
// An empty name selects msgpack.
func StormCodec(name string) (codec.MarshalUnmarshaler, error) {
	switch strings.ToLower(name) {
	case "", CodecMsgpack:
		return msgpack.Codec, nil
	case CodecCBOR:
		return CBOR, nil
	case CodecBinc:
		return Binc, nil
	default:
		return nil, errors.Errorf("unsupported storm codec %q", name)
	}
}

type ugorjiCodec struct {
	name   string
	handle func() ucodec.Handle
}

func (c *ugorjiCodec) Marshal(v any) ([]byte, error) {
	var b bytes.Buffer
	enc := ucodec.NewEncoder(&b, c.handle())
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func (c *ugorjiCodec) Unmarshal(b []byte, v any) error {
	dec := ucodec.NewDecoder(bytes.NewReader(b), c.handle())
	return dec.Decode(v)
}

func (c *ugorjiCodec) Name() string {
	return c.name
}
