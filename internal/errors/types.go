package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeLexical          ErrorType = "lexical"
	ErrorTypeSyntax           ErrorType = "syntax"
	ErrorTypeCachePersistence ErrorType = "cache_persistence"
	ErrorTypeIO               ErrorType = "io"
	ErrorTypeConfig           ErrorType = "config"
	ErrorTypeInternal         ErrorType = "internal"
)

// Common error codes.
const (
	ErrCodeUnterminated   = "ERR_UNTERMINATED"
	ErrCodeUnexpectedChar = "ERR_UNEXPECTED_CHAR"
	ErrCodeInvalidUTF8    = "ERR_INVALID_UTF8"
	ErrCodeUnknownTag     = "ERR_UNKNOWN_TAG"
	ErrCodeUnexpectedTok  = "ERR_UNEXPECTED_TOKEN"
	ErrCodeUnexpectedEOF  = "ERR_UNEXPECTED_EOF"
	ErrCodeCreateDir      = "ERR_CACHE_MKDIR"
	ErrCodeTempFile       = "ERR_CACHE_TEMP"
	ErrCodeRename         = "ERR_CACHE_RENAME"
	ErrCodeReadSource     = "ERR_READ_SOURCE"
	ErrCodeConfigInvalid  = "ERR_CONFIG_INVALID"
	ErrCodeInternalError  = "ERR_INTERNAL"
)

// SpoonError is a structured error carrying source provenance.
type SpoonError struct {
	Type    ErrorType
	Code    string
	Message string
	Cause   error
	Context map[string]interface{}
	File    string
	Line    int
	// Value is the offending token value for syntax errors.
	Value string
}

// Error implements the error interface.
func (e *SpoonError) Error() string {
	var parts []string

	if e.File != "" {
		location := e.File
		if e.Line > 0 {
			location += fmt.Sprintf(":%d", e.Line)
		}
		parts = append(parts, location+":")
	}

	parts = append(parts, string(e.Type)+" error:", e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *SpoonError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *SpoonError) Is(target error) bool {
	var t *SpoonError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *SpoonError) WithContext(key string, value interface{}) *SpoonError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithCode overrides the error code.
func (e *SpoonError) WithCode(code string) *SpoonError {
	e.Code = code

	return e
}

// NewLexicalError creates an error for malformed delimiter sequences.
func NewLexicalError(file string, line int, message string) *SpoonError {
	return &SpoonError{
		Type:    ErrorTypeLexical,
		Code:    ErrCodeUnterminated,
		Message: message,
		File:    file,
		Line:    line,
	}
}

// NewSyntaxError creates an error for a lexically valid but malformed construct.
func NewSyntaxError(file string, line int, value, message string) *SpoonError {
	return &SpoonError{
		Type:    ErrorTypeSyntax,
		Code:    ErrCodeUnexpectedTok,
		Message: message,
		File:    file,
		Line:    line,
		Value:   value,
	}
}

// NewCachePersistenceError creates an error for a failed cache write step.
func NewCachePersistenceError(code, path string, cause error) *SpoonError {
	return &SpoonError{
		Type:    ErrorTypeCachePersistence,
		Code:    code,
		Message: "cannot persist " + path,
		Cause:   cause,
		Context: map[string]interface{}{"path": path},
	}
}

// NewIOError creates an error for a failed read outside the cache.
func NewIOError(code, path string, cause error) *SpoonError {
	return &SpoonError{
		Type:    ErrorTypeIO,
		Code:    code,
		Message: "cannot read " + path,
		Cause:   cause,
		File:    path,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *SpoonError {
	return &SpoonError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *SpoonError {
	return &SpoonError{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func isType(err error, typ ErrorType) bool {
	var se *SpoonError
	if errors.As(err, &se) {
		return se.Type == typ
	}

	return false
}

// IsLexical checks if an error is a lexical error.
func IsLexical(err error) bool {
	return isType(err, ErrorTypeLexical)
}

// IsSyntax checks if an error is a syntax error.
func IsSyntax(err error) bool {
	return isType(err, ErrorTypeSyntax)
}

// IsCachePersistence checks if an error came from writing the cache.
func IsCachePersistence(err error) bool {
	return isType(err, ErrorTypeCachePersistence)
}

// Location returns the file and line an error points at.
func Location(err error) (string, int, bool) {
	var se *SpoonError
	if errors.As(err, &se) && se.File != "" {
		return se.File, se.Line, true
	}

	return "", 0, false
}
