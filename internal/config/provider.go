package config

import "errors"

// errReadBytesNotSupported is returned when ReadBytes is called on a map provider.
var errReadBytesNotSupported = errors.New("config: map provider does not support ReadBytes")

// mapProvider is a koanf provider over an in-memory map, used for the
// defaults and the flag overrides.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errReadBytesNotSupported
}

func (m mapProvider) Read() (map[string]any, error) {
	return m, nil
}
