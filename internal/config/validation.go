package config

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks struct tags first, then the rules tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	return validateCustomRules(cfg)
}

func validateCustomRules(cfg *Config) error {
	if !filepath.IsAbs(cfg.Discovery.Root) {
		return fmt.Errorf("discovery.root: %q is not an absolute path", cfg.Discovery.Root)
	}
	if cfg.Lock.Dir != "" && !filepath.IsAbs(cfg.Lock.Dir) {
		return fmt.Errorf("lock.dir: %q is not an absolute path", cfg.Lock.Dir)
	}

	if _, err := cfg.Mount.KernelOptions(); err != nil {
		return err
	}

	return nil
}

func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
