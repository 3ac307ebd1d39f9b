// Package json routes JSON serialization through sonic where the
// architecture supports it (amd64/arm64) and through encoding/json
// everywhere else. Callers use the package-level function variables and
// never care which backend is active.
package json

import (
	stdjson "encoding/json"
	"io"
	"runtime"

	"github.com/bytedance/sonic"
)

// Encoder writes values as JSON to a stream.
type Encoder interface {
	Encode(v interface{}) error
}

// Decoder reads JSON values from a stream.
type Decoder interface {
	Decode(v interface{}) error
}

var (
	// Marshal encodes v into JSON bytes.
	Marshal func(v interface{}) ([]byte, error)

	// Unmarshal decodes JSON bytes into v.
	Unmarshal func(data []byte, v interface{}) error

	// NewEncoder creates an encoder writing to w.
	NewEncoder func(w io.Writer) Encoder

	// NewDecoder creates a decoder reading from r.
	NewDecoder func(r io.Reader) Decoder

	usingSonic bool
)

func init() {
	if runtime.GOARCH == "amd64" || runtime.GOARCH == "arm64" {
		useSonic(sonic.ConfigDefault)
		usingSonic = true
		return
	}
	Marshal = stdjson.Marshal
	Unmarshal = stdjson.Unmarshal
	NewEncoder = func(w io.Writer) Encoder { return stdjson.NewEncoder(w) }
	NewDecoder = func(r io.Reader) Decoder { return stdjson.NewDecoder(r) }
}

func useSonic(api sonic.API) {
	Marshal = api.Marshal
	Unmarshal = api.Unmarshal
	NewEncoder = func(w io.Writer) Encoder { return api.NewEncoder(w) }
	NewDecoder = func(r io.Reader) Decoder { return api.NewDecoder(r) }
}

// ConfigFastestMode switches to sonic's fastest configuration, which skips
// some safety checks. Only for trusted, well-known payloads. No-op on the
// standard library fallback.
func ConfigFastestMode() {
	if usingSonic {
		useSonic(sonic.ConfigFastest)
	}
}

// ConfigStandardMode restores sonic's default configuration. No-op on the
// standard library fallback.
func ConfigStandardMode() {
	if usingSonic {
		useSonic(sonic.ConfigDefault)
	}
}

// IsUsingSonic reports whether sonic backs the package on this platform.
func IsUsingSonic() bool {
	return usingSonic
}
