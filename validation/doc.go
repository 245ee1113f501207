// Package validation checks configuration values before components are
// constructed.
//
// Struct tag validation uses go-playground/validator and names fields by
// their mapstructure key, so errors read like the YAML the user wrote:
//
//	type ChunkedConfig struct {
//	    MaxConcurrentUploads int `mapstructure:"max_concurrent_uploads" validate:"gte=1,lte=16"`
//	}
//	err := validation.Validate(cfg)
//
// Programmatic validation collects errors across a config in one pass:
//
//	v := validation.New()
//	v.Required("backend.id", cfg.ID).URL("backend.base_url", cfg.BaseURL, "http", "https")
//	err := v.Validate()
package validation
