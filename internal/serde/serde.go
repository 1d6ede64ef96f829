// Package serde encodes values as JSON, honouring "json" struct tags.
package serde

import (
	"sync"

	"github.com/ugorji/go/codec"
)

// resolver holds a shared encoder and its buffer.
type resolver struct {
	jsonEncoder *codec.Encoder
	jsonHandle  codec.JsonHandle

	jsonData []byte

	jsonMu sync.Mutex
}

var genencoder resolver

func init() {
	genencoder.jsonHandle = codec.JsonHandle{}
	genencoder.jsonHandle.TypeInfos = codec.NewTypeInfos([]string{"json"})

	genencoder.jsonData = make([]byte, 0, 4096)
	genencoder.jsonEncoder = codec.NewEncoderBytes(&genencoder.jsonData, &genencoder.jsonHandle)
}

// MarshalJson encodes v. The returned slice is owned by the caller.
func MarshalJson[T any](v T) ([]byte, error) {
	genencoder.jsonMu.Lock()
	defer genencoder.jsonMu.Unlock()

	genencoder.jsonEncoder.ResetBytes(&genencoder.jsonData)
	if err := genencoder.jsonEncoder.Encode(v); err != nil {
		return nil, err
	}

	return append([]byte(nil), genencoder.jsonData...), nil
}
