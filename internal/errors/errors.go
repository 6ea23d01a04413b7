// Package errors defines the two failure classes of a site build. Both are
// fatal: assembly and building are all-or-nothing, so nothing here is
// retried or recovered.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents the category of a build failure.
type ErrorType string

const (
	ErrorTypeConfiguration  ErrorType = "configuration"
	ErrorTypeTemplateRender ErrorType = "template_render"
)

// Sentinels for errors.Is checks against either class.
var (
	ErrConfiguration  = errors.New("configuration error")
	ErrTemplateRender = errors.New("template render error")
)

// Configuration error codes.
const (
	CodeInvalidConfig      = "INVALID_CONFIG"
	CodeUnknownVariant     = "UNKNOWN_VARIANT"
	CodeInvalidMode        = "INVALID_MODE"
	CodeManifest           = "MANIFEST"
	CodeMissingEntry       = "MISSING_ENTRY"
	CodeMissingTemplate    = "MISSING_TEMPLATE"
	CodeMissingPartial     = "MISSING_PARTIAL"
	CodeMissingAsset       = "MISSING_ASSET"
	CodeInvalidPattern     = "INVALID_PATTERN"
	CodeDuplicatePage      = "DUPLICATE_PAGE"
	CodeUnsupportedLocale  = "UNSUPPORTED_LOCALE"
	CodeUnmatchedExtension = "UNMATCHED_EXTENSION"
	CodeTemplateSyntax     = "TEMPLATE_SYNTAX"
	CodeStyle              = "STYLE"
	CodeBundle             = "BUNDLE"
	CodeOutput             = "OUTPUT"
)

// ConfigurationError reports malformed or missing configuration, manifest
// fields, unresolvable paths, or files that no transform rule matches.
type ConfigurationError struct {
	Code    string
	Message string
	Path    string
	Cause   error
}

// NewConfigurationError creates a configuration error with the given code.
func NewConfigurationError(code, message string) *ConfigurationError {
	return &ConfigurationError{
		Code:    code,
		Message: message,
	}
}

// Configurationf creates a configuration error with a formatted message.
func Configurationf(code, format string, args ...interface{}) *ConfigurationError {
	return NewConfigurationError(code, fmt.Sprintf(format, args...))
}

// WithPath attaches the offending file path.
func (e *ConfigurationError) WithPath(path string) *ConfigurationError {
	e.Path = path

	return e
}

// WithCause attaches the underlying error.
func (e *ConfigurationError) WithCause(cause error) *ConfigurationError {
	e.Cause = cause

	return e
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}
	if e.Path != "" {
		parts = append(parts, e.Path)
	}
	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")
	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause.
func (e *ConfigurationError) Unwrap() error {
	return e.Cause
}

// Is matches ErrConfiguration and configuration errors with the same code.
func (e *ConfigurationError) Is(target error) bool {
	if target == ErrConfiguration {
		return true
	}

	var t *ConfigurationError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}

	return false
}

// TemplateRenderError reports a template that references a key the page's
// parameter bag does not supply.
type TemplateRenderError struct {
	Template string
	Key      string
	Cause    error
}

// NewTemplateRenderError creates a render error for a missing key.
func NewTemplateRenderError(template, key string) *TemplateRenderError {
	return &TemplateRenderError{
		Template: template,
		Key:      key,
	}
}

// Error implements the error interface.
func (e *TemplateRenderError) Error() string {
	msg := fmt.Sprintf("template %s", e.Template)
	if e.Key != "" {
		msg += fmt.Sprintf(": parameter %q is not defined", e.Key)
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}

	return msg
}

// Unwrap returns the underlying cause.
func (e *TemplateRenderError) Unwrap() error {
	return e.Cause
}

// Is matches ErrTemplateRender.
func (e *TemplateRenderError) Is(target error) bool {
	return target == ErrTemplateRender
}

// Type classifies err, returning an empty type for foreign errors.
func Type(err error) ErrorType {
	switch {
	case errors.Is(err, ErrTemplateRender):
		return ErrorTypeTemplateRender
	case errors.Is(err, ErrConfiguration):
		return ErrorTypeConfiguration
	default:
		return ""
	}
}

// As is errors.As from the standard library.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Is is errors.Is from the standard library.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// IsConfigurationError reports whether err is, or wraps, a ConfigurationError.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsTemplateRenderError reports whether err is, or wraps, a TemplateRenderError.
func IsTemplateRenderError(err error) bool {
	return errors.Is(err, ErrTemplateRender)
}
