package kubewarden

import (
	"github.com/kubewarden/policy-sdk-go/application/settings"
	"github.com/kubewarden/policy-sdk-go/domain/errors"
	"github.com/kubewarden/policy-sdk-go/wireformat"
)

// Decode converts untyped settings into target, a pointer to a struct, and
// validates it: validator struct tags first, then target.Validate() when
// target implements entities.Validatable. Empty settings leave target
// untouched.
func (s Settings) Decode(target any) error {
	if len(s) == 0 {
		return settings.Validate(target)
	}
	data, err := wireformat.Encode(s)
	if err != nil {
		return err
	}
	if err := wireformat.DecodeInto(data, target); err != nil {
		return &errors.ConfigError{Err: err}
	}
	return settings.Validate(target)
}
