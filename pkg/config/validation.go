package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// Struct tag validation is declarative via go-playground/validator;
// rules that cannot be expressed in tags follow as custom checks.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	// The root URI anchors every node path; a trailing slash would make
	// prefix matching ambiguous.
	if strings.HasSuffix(cfg.Space.RootURI, "/") {
		return fmt.Errorf("space.root_uri: must not end with a slash")
	}
	if !strings.Contains(cfg.Space.RootURI, "://") {
		return fmt.Errorf("space.root_uri: %q is not a URI", cfg.Space.RootURI)
	}

	if cfg.Store.Type == "badger" {
		if p, _ := cfg.Store.Badger["db_path"].(string); p == "" {
			return fmt.Errorf("store.badger: db_path is required")
		}
	}

	if cfg.Backend.Type == "s3" {
		if b, _ := cfg.Backend.S3["bucket"].(string); b == "" {
			return fmt.Errorf("backend.s3: bucket is required")
		}
		if r, _ := cfg.Backend.S3["region"].(string); r == "" {
			return fmt.Errorf("backend.s3: region is required")
		}
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
