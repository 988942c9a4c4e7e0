// Package errors provides categorized errors for the client core.
//
// Every failure the core records in state carries one of the categories
// below so callers and logs can tell a denied camera apart from a failed
// pipeline call or a transport failure.
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"time"
)

// ErrorCategory represents the type of error
type ErrorCategory string

const (
	CategoryDeviceAccess  ErrorCategory = "device-access"
	CategoryPipeline      ErrorCategory = "pipeline"
	CategoryTransport     ErrorCategory = "transport"
	CategoryValidation    ErrorCategory = "validation"
	CategoryNotFound      ErrorCategory = "not-found"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryImage         ErrorCategory = "image"
	CategoryGeneric       ErrorCategory = "generic"
)

// ComponentUnknown is used when no component was given
const ComponentUnknown = "unknown"

// EnhancedError wraps an error with a category, the component it came from
// and optional context values
type EnhancedError struct {
	Err       error
	Component string
	Category  ErrorCategory
	Context   map[string]any
	Timestamp time.Time
}

// Error implements the error interface
func (ee *EnhancedError) Error() string {
	if ee.Err == nil {
		return string(ee.Category)
	}
	return ee.Err.Error()
}

// Unwrap returns the wrapped error
func (ee *EnhancedError) Unwrap() error {
	return ee.Err
}

// Is matches another EnhancedError by category, otherwise defers to the wrapped error
func (ee *EnhancedError) Is(target error) bool {
	if other, ok := target.(*EnhancedError); ok {
		return ee.Category == other.Category
	}
	return Is(ee.Err, target)
}

// GetContext returns a copy of the context map
func (ee *EnhancedError) GetContext() map[string]any {
	if ee.Context == nil {
		return nil
	}
	out := make(map[string]any, len(ee.Context))
	maps.Copy(out, ee.Context)
	return out
}

// ErrorBuilder provides a fluent interface for creating enhanced errors
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	context   map[string]any
}

// New starts building an enhanced error around err
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err}
}

// Newf starts building an enhanced error from a format string
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

// Component sets the component name
func (eb *ErrorBuilder) Component(component string) *ErrorBuilder {
	eb.component = component
	return eb
}

// Category sets the error category
func (eb *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	eb.category = category
	return eb
}

// Context adds a context value
func (eb *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if eb.context == nil {
		eb.context = make(map[string]any)
	}
	eb.context[key] = value
	return eb
}

// Build creates the EnhancedError
func (eb *ErrorBuilder) Build() *EnhancedError {
	ee := &EnhancedError{
		Err:       eb.err,
		Component: eb.component,
		Category:  eb.category,
		Context:   eb.context,
		Timestamp: time.Now(),
	}
	if ee.Component == "" {
		ee.Component = ComponentUnknown
	}
	if ee.Category == "" {
		ee.Category = CategoryGeneric
	}
	return ee
}

// DeviceAccess marks err as a camera/device acquisition failure
func DeviceAccess(err error, component string) *EnhancedError {
	return New(err).Component(component).Category(CategoryDeviceAccess).Build()
}

// Pipeline marks err as a detection or model generation failure
func Pipeline(err error, component, pipeline string) *EnhancedError {
	return New(err).Component(component).Category(CategoryPipeline).Context("pipeline", pipeline).Build()
}

// Transport marks err as a transport failure
func Transport(err error, component string) *EnhancedError {
	return New(err).Component(component).Category(CategoryTransport).Build()
}

// ValidationError creates a validation error
func ValidationError(message string) *EnhancedError {
	return New(NewStd(message)).Category(CategoryValidation).Build()
}

// NotFound creates a not-found error
func NotFound(format string, args ...any) *EnhancedError {
	return Newf(format, args...).Category(CategoryNotFound).Build()
}

// NewStd creates a plain error (passthrough to standard library)
func NewStd(text string) error {
	return stderrors.New(text)
}

// Is reports whether any error in err's tree matches target
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's tree that matches target
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Join returns an error that wraps the given errors
func Join(errs ...error) error {
	return stderrors.Join(errs...)
}

// IsCategory checks if err is an EnhancedError with the given category
func IsCategory(err error, category ErrorCategory) bool {
	var ee *EnhancedError
	return As(err, &ee) && ee.Category == category
}

// IsNotFound checks for CategoryNotFound
func IsNotFound(err error) bool {
	return IsCategory(err, CategoryNotFound)
}
