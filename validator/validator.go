package validator

import (
	"reflect"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/NethermindEth/starknet-batcher/core/felt"
	"github.com/go-playground/validator/v10"
)

var (
	once sync.Once
	v    *validator.Validate
)

// validateStarknetVersion accepts versions like "0.13.2" and the four component "0.13.2.1".
func validateStarknetVersion(fl validator.FieldLevel) bool {
	version, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	_, err := ParseStarknetVersion(version)
	return err == nil
}

// ParseStarknetVersion parses a Starknet version, dropping the fourth component if present.
func ParseStarknetVersion(version string) (*semver.Version, error) {
	for i, dots := 0, 0; i < len(version); i++ {
		if version[i] == '.' {
			dots++
			if dots == 3 {
				version = version[:i]
				break
			}
		}
	}
	return semver.StrictNewVersion(version)
}

// Validator returns a singleton that can be used to validate various objects
func Validator() *validator.Validate {
	once.Do(func() {
		v = validator.New()

		if err := v.RegisterValidation("starknet_version", validateStarknetVersion); err != nil {
			panic("failed to register validation: " + err.Error())
		}

		// Register these types to use their string representation for validation
		// purposes
		v.RegisterCustomTypeFunc(func(field reflect.Value) any {
			switch f := field.Interface().(type) {
			case felt.Felt:
				if f.IsZero() {
					return ""
				}
				return f.String()
			case *felt.Felt:
				if f == nil || f.IsZero() {
					return ""
				}
				return f.String()
			}
			panic("not a felt")
		}, felt.Felt{}, &felt.Felt{})
	})
	return v
}
