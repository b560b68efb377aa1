package errors

import (
	"fmt"
	"strings"
	"time"
)

/**
 * Custom error types for PlanParse Worker
 *
 * Design Pattern: Factory Pattern for error creation
 * SOLID Principle: Single Responsibility (each error type has one purpose)
 */

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Pipeline errors
	ErrorProcessingTimeout ErrorCode = "PROCESSING_TIMEOUT"
	ErrorGatewayFailed     ErrorCode = "GATEWAY_FAILED"
	ErrorNoText            ErrorCode = "NO_TEXT"
	ErrorNoRoomsFound      ErrorCode = "NO_ROOMS_FOUND"
	ErrorOCRFailed         ErrorCode = "OCR_FAILED"
	ErrorCorruptFile       ErrorCode = "CORRUPT_FILE"

	// Storage errors
	ErrorStorageFailed  ErrorCode = "STORAGE_FAILED"
	ErrorDatabaseFailed ErrorCode = "DATABASE_FAILED"

	// Network errors
	ErrorNetworkTimeout ErrorCode = "NETWORK_TIMEOUT"
	ErrorAPICallFailed  ErrorCode = "API_CALL_FAILED"
)

// ParseError represents a structured parse pipeline error
type ParseError struct {
	Code        ErrorCode
	Message     string
	PlanParseID string
	Timestamp   time.Time
	Details     map[string]interface{}
	Cause       error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// Factory functions for common errors

func NewProcessingTimeoutError(planParseID string, duration time.Duration, cause error) *ParseError {
	return &ParseError{
		Code:        ErrorProcessingTimeout,
		Message:     fmt.Sprintf("Plan parsing timed out after %v", duration),
		PlanParseID: planParseID,
		Timestamp:   time.Now(),
		Details: map[string]interface{}{
			"timeout_duration": duration.String(),
		},
		Cause: cause,
	}
}

func NewGatewayFailedError(planParseID string, operation string, cause error) *ParseError {
	return &ParseError{
		Code:        ErrorGatewayFailed,
		Message:     fmt.Sprintf("Model gateway call failed: %s", operation),
		PlanParseID: planParseID,
		Timestamp:   time.Now(),
		Details: map[string]interface{}{
			"operation": operation,
		},
		Cause: cause,
	}
}

func NewNoTextError(planParseID string, totalPages int) *ParseError {
	return &ParseError{
		Code:        ErrorNoText,
		Message:     "Document contains no extractable text (scanned or image-only)",
		PlanParseID: planParseID,
		Timestamp:   time.Now(),
		Details: map[string]interface{}{
			"total_pages": totalPages,
		},
	}
}

func NewNoRoomsFoundError(planParseID string, pagesParsed int) *ParseError {
	return &ParseError{
		Code:        ErrorNoRoomsFound,
		Message:     "No rooms were found in the document",
		PlanParseID: planParseID,
		Timestamp:   time.Now(),
		Details: map[string]interface{}{
			"pages_parsed": pagesParsed,
		},
	}
}

func NewOCRFailedError(planParseID string, pageNumber int, cause error) *ParseError {
	return &ParseError{
		Code:        ErrorOCRFailed,
		Message:     fmt.Sprintf("OCR failed on page %d", pageNumber),
		PlanParseID: planParseID,
		Timestamp:   time.Now(),
		Details: map[string]interface{}{
			"page_number": pageNumber,
		},
		Cause: cause,
	}
}

func NewStorageFailedError(planParseID string, cause error) *ParseError {
	return &ParseError{
		Code:        ErrorStorageFailed,
		Message:     "Failed to store parse results",
		PlanParseID: planParseID,
		Timestamp:   time.Now(),
		Cause:       cause,
	}
}

// ToMap converts error to map for database storage
func (e *ParseError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}

const userMessageMaxLen = 200

// UserFacingMessage maps a raw pipeline error onto the message shown to the
// contractor. Checks run in order; the first matching category wins. Unknown
// errors surface their raw text, truncated, rather than a blank screen.
func UserFacingMessage(err error) string {
	if err == nil {
		return ""
	}

	lower := strings.ToLower(err.Error())

	switch {
	case containsAny(lower, "quota", "rate limit", "overloaded", "unavailable", "529", "503"):
		return "The AI service is temporarily unavailable. Please try again in a few minutes."
	case containsAny(lower, "scanned", "image-only", "no extractable text"):
		return "This document appears to be scanned or image-only. Text could not be extracted; try uploading a digital (vector) PDF."
	case containsAny(lower, "no rooms"):
		return "No rooms could be identified in this document. Please verify it contains floor plans with room labels."
	case containsAny(lower, "corrupt", "malformed", "invalid pdf"):
		return "The file appears to be corrupted or unreadable. Please re-export and upload it again."
	case containsAny(lower, "timeout", "deadline exceeded"):
		return "Parsing took too long and was stopped. Large drawing sets can time out; try uploading fewer pages."
	case containsAny(lower, "unauthorized", "api key", "401", "403"):
		return "The parsing service could not authenticate. Please contact support."
	}

	raw := err.Error()
	if len(raw) > userMessageMaxLen {
		raw = raw[:userMessageMaxLen] + "..."
	}
	return raw
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
