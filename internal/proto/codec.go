package proto

import (
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// encMode is the CBOR encoder configured with Core Deterministic Encoding
// (RFC 8949 §4.2): sorted map keys, smallest integer encoding. Same logical
// message always produces identical bytes, which keeps persisted episodes
// diffable and makes wire-level tests exact.
var encMode cbor.EncMode

// decMode accepts standard CBOR. Unknown fields are ignored so older peers
// can talk to newer hubs.
var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("proto: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		// Raw command payloads decode into any-typed targets; default them
		// to map[string]any instead of map[interface{}]interface{} so the
		// extension handler and encoding/json can consume them directly.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("proto: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to CBOR using deterministic encoding.
func Marshal(v any) ([]byte, error) { return encMode.Marshal(v) }

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error { return decMode.Unmarshal(data, v) }

// RawMessage is a raw encoded CBOR value, used to delay decoding of
// endpoint-specific payloads until the endpoint is known.
type RawMessage = cbor.RawMessage

// NewEncoder returns a CBOR stream encoder writing to w.
func NewEncoder(w io.Writer) *cbor.Encoder { return encMode.NewEncoder(w) }

// NewDecoder returns a CBOR stream decoder reading from r.
func NewDecoder(r io.Reader) *cbor.Decoder { return decMode.NewDecoder(r) }
