package config

import (
	"encoding/json"

	"github.com/astralstream/mediaexport/pkg/bytesize"
	"github.com/go-viper/mapstructure/v2"
)

// ByteSize is a size value that supports human-readable parsing.
// It extends raw integer byte counts with units like KB, MB, GB:
//
//   - "5MB" = 5 * 1024 * 1024 bytes
//   - "1.5 GB" = 1.5 * 1024^3 bytes
//   - "5242880" = 5242880 bytes
//
// The type implements encoding.TextUnmarshaler for Viper/YAML support and
// json.Unmarshaler for JSON configuration files.
type ByteSize int64

// ParseByteSize parses a human-readable byte size string.
func ParseByteSize(s string) (ByteSize, error) {
	size, err := bytesize.Parse(s)
	if err != nil {
		return 0, err
	}
	return ByteSize(size), nil
}

// UnmarshalText implements encoding.TextUnmarshaler for YAML/Viper support.
func (b *ByteSize) UnmarshalText(text []byte) error {
	parsed, err := ParseByteSize(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *ByteSize) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// Accept a raw number of bytes as well.
		var raw int64
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		*b = ByteSize(raw)
		return nil
	}
	return b.UnmarshalText([]byte(s))
}

// MarshalJSON implements json.Marshaler.
func (b ByteSize) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

// String returns the size in human-readable form.
func (b ByteSize) String() string {
	return bytesize.Size(b).String()
}

// Int64 returns the raw byte count.
func (b ByteSize) Int64() int64 {
	return int64(b)
}

// DecodeHooks returns the mapstructure decode hooks used when unmarshaling
// configuration. TextUnmarshallerHookFunc makes ByteSize (and any other
// encoding.TextUnmarshaler) parse from config strings; the duration and slice
// hooks restore Viper's defaults, which DecodeHook would otherwise replace.
func DecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.TextUnmarshallerHookFunc(),
	)
}
