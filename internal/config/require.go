package config

import (
	"errors"
	"fmt"
)

var ErrMissingSetting = errors.New("missing required env")

func requireNonEmpty(value, envName string) error {
	if value == "" {
		return fmt.Errorf("%w %s", ErrMissingSetting, envName)
	}
	return nil
}

func requireNonEmptyBytes(value []byte, envName string) error {
	if len(value) == 0 {
		return fmt.Errorf("%w %s", ErrMissingSetting, envName)
	}
	return nil
}
