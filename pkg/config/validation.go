package config

import (
	"fmt"
	"net/url"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	badgercache "github.com/marmos91/dittodav/pkg/cache/badger"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// This function uses go-playground/validator for declarative validation
// via struct tags, with additional custom validation for complex rules
// that cannot be expressed in tags.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
//
// Returns an error describing validation failures.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	u, err := url.Parse(cfg.Server.URL)
	if err != nil {
		return fmt.Errorf("server.url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server.url: scheme must be http or https, got %q", u.Scheme)
	}

	if cfg.Server.Password != "" && cfg.Server.Username == "" {
		return fmt.Errorf("server: password is set but username is empty")
	}

	if cfg.Server.Retry.MaxDelay != 0 && cfg.Server.Retry.MaxDelay < cfg.Server.Retry.BaseDelay {
		return fmt.Errorf("server.retry: max_delay (%s) is shorter than base_delay (%s)",
			cfg.Server.Retry.MaxDelay, cfg.Server.Retry.BaseDelay)
	}

	if cfg.Cache.Type == CacheTypeBadger {
		var badgerCfg badgercache.Config
		if err := mapstructure.Decode(cfg.Cache.Badger, &badgerCfg); err != nil {
			return fmt.Errorf("cache.badger: %w", err)
		}
		if badgerCfg.DBPath == "" && !badgerCfg.InMemory {
			return fmt.Errorf("cache.badger: db_path is required unless in_memory is set")
		}
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		// Return the first validation error with context
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
