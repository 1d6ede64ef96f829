//go:build linux

package dbushelper

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/bluetuith-org/simple-bluetooth/api/bluetooth"
	"github.com/godbus/dbus/v5"
	"github.com/ugorji/go/codec"
)

// variantExt represents a go-codec extension to parse DBus variant values.
type variantExt struct{}

// resolver holds an encoder and decoder.
type resolver struct {
	check bool

	encoder *codec.Encoder
	decoder *codec.Decoder
	data    []byte

	sync.Mutex
}

var variantDecoder resolver

// ConvertExt converts a variant struct into an encodable value.
func (v variantExt) ConvertExt(variant any) any {
	switch value := variant.(type) {
	case *dbus.Variant:
		return value.Value()

	case dbus.Variant:
		return value.Value()
	}

	return variant
}

// UpdateExt is not used, since variants are only ever encoded.
func (v variantExt) UpdateExt(any, any) {}

// DecodeVariantMap decodes a map of variants into the provided data.
// Properties named in checkProps must carry a signature if they are present.
// Note that, for MacAddress, custom TextMarshaler and TextUnmarshaler
// interfaces have been defined.
func DecodeVariantMap(variants map[string]dbus.Variant, data any, checkProps ...string) error {
	variantDecoder.Lock()
	defer variantDecoder.Unlock()

	if !variantDecoder.check {
		handle := codec.JsonHandle{}
		handle.TypeInfos = codec.NewTypeInfos([]string{"codec"})
		for _, typ := range []reflect.Type{
			reflect.TypeOf(dbus.Variant{}),
			reflect.TypeOf((*dbus.Variant)(nil)),
		} {
			if err := handle.SetInterfaceExt(typ, 1, variantExt{}); err != nil {
				return err
			}
		}

		variantDecoder.encoder = codec.NewEncoderBytes(&variantDecoder.data, &handle)
		variantDecoder.decoder = codec.NewDecoderBytes(variantDecoder.data, &handle)

		variantDecoder.check = true
	}

	for _, prop := range checkProps {
		value, ok := variants[prop]
		if !ok {
			continue
		}
		if value.Signature().Empty() {
			return fmt.Errorf("no signature found for property '%s'", prop)
		}
	}

	variantDecoder.encoder.ResetBytes(&variantDecoder.data)
	if err := variantDecoder.encoder.Encode(&variants); err != nil {
		return err
	}

	variantDecoder.decoder.ResetBytes(variantDecoder.data)

	return variantDecoder.decoder.Decode(data)
}

// DecodeDevice decodes a Device1 property map into device data.
func DecodeDevice(variants map[string]dbus.Variant) (bluetooth.DeviceData, error) {
	var device bluetooth.DeviceData

	err := DecodeVariantMap(variants, &device, "Address")

	return device, err
}

// MergeDevice decodes a partial Device1 property map into an existing device.
func MergeDevice(device *bluetooth.DeviceData, variants map[string]dbus.Variant) error {
	return DecodeVariantMap(variants, device)
}
