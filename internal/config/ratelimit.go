package config

import (
	"encoding/json"
	"fmt"

	"github.com/aman-churiwal/quotagate/internal/ratelimit"
	"gopkg.in/yaml.v3"
)

const (
	LimitByIP     = "ip"
	LimitByHeader = "header"
	LimitByPath   = "path"

	PolicyLocal = "local"
)

const defaultErrorMessage = "API rate limit exceeded!"

// RateLimitConfig is the user facing form of a rate limit policy.
// A negative limit disables its window.
type RateLimitConfig struct {
	Second int32 `json:"second" yaml:"second"`
	Minute int32 `json:"minute" yaml:"minute"`
	Hour   int32 `json:"hour" yaml:"hour"`
	Day    int32 `json:"day" yaml:"day"`
	Month  int32 `json:"month" yaml:"month"`
	Year   int32 `json:"year" yaml:"year"`

	LimitBy    string `json:"limit_by" yaml:"limit_by"`
	HeaderName string `json:"header_name" yaml:"header_name"`
	Path       string `json:"path" yaml:"path"`
	Policy     string `json:"policy" yaml:"policy"`

	FaultTolerant     bool `json:"fault_tolerant" yaml:"fault_tolerant"`
	HideClientHeaders bool `json:"hide_client_headers" yaml:"hide_client_headers"`

	ErrorCode    int    `json:"error_code" yaml:"error_code"`
	ErrorMessage string `json:"error_message" yaml:"error_message"`
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Second:        ratelimit.Disabled,
		Minute:        ratelimit.Disabled,
		Hour:          ratelimit.Disabled,
		Day:           ratelimit.Disabled,
		Month:         ratelimit.Disabled,
		Year:          ratelimit.Disabled,
		LimitBy:       LimitByIP,
		Policy:        PolicyLocal,
		FaultTolerant: true,
		ErrorCode:     429,
		ErrorMessage:  defaultErrorMessage,
	}
}

// plainRateLimitConfig drops the custom decoders so they can fill a pre-defaulted value
type plainRateLimitConfig RateLimitConfig

func (c *RateLimitConfig) UnmarshalJSON(data []byte) error {
	p := plainRateLimitConfig(DefaultRateLimitConfig())
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*c = RateLimitConfig(p)
	return nil
}

func (c *RateLimitConfig) UnmarshalYAML(value *yaml.Node) error {
	p := plainRateLimitConfig(DefaultRateLimitConfig())
	if err := value.Decode(&p); err != nil {
		return err
	}
	*c = RateLimitConfig(p)
	return nil
}

func (c RateLimitConfig) Validate() error {
	if c.Policy != PolicyLocal {
		return &ValidationError{
			Field:   "policy",
			Message: fmt.Sprintf("%q: only %q is supported", c.Policy, PolicyLocal),
			Err:     ErrUnsupportedPolicy,
		}
	}

	switch c.LimitBy {
	case LimitByIP:
	case LimitByHeader:
		if c.HeaderName == "" {
			return NewValidationError("header_name", "is required when limiting by header")
		}
	case LimitByPath:
		if c.Path == "" {
			return NewValidationError("path", "is required when limiting by path")
		}
	default:
		return NewValidationError("limit_by", fmt.Sprintf("unknown strategy %q", c.LimitBy))
	}

	if c.ErrorCode < 400 || c.ErrorCode > 599 {
		return NewValidationError("error_code", fmt.Sprintf("%d is not an HTTP error status", c.ErrorCode))
	}

	return nil
}

// Limits maps the configured windows onto the engine's limits
func (c RateLimitConfig) Limits() ratelimit.Limits {
	limits := ratelimit.NewLimits()
	limits[ratelimit.Second] = c.Second
	limits[ratelimit.Minute] = c.Minute
	limits[ratelimit.Hour] = c.Hour
	limits[ratelimit.Day] = c.Day
	limits[ratelimit.Month] = c.Month
	limits[ratelimit.Year] = c.Year
	return limits
}

// EnginePolicy converts the block into the limiter's immutable policy
func (c RateLimitConfig) EnginePolicy() ratelimit.Policy {
	return ratelimit.Policy{
		Limits:            c.Limits(),
		FaultTolerant:     c.FaultTolerant,
		HideClientHeaders: c.HideClientHeaders,
	}
}
