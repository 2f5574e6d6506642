package rpcfacade

import (
	"errors"
	"fmt"

	"github.com/postdevai/postdevai/internal/apperrors"
)

// Custom MCP error codes for postdevaid.
const (
	// ErrCodeEntryNotFound indicates the requested entry does not exist in
	// either memory tier.
	ErrCodeEntryNotFound = -32001

	// ErrCodeOverBudget indicates the operation would exceed a configured
	// byte budget.
	ErrCodeOverBudget = -32002

	// ErrCodeInvalidInput indicates malformed input (bad dimension, duplicate id).
	ErrCodeInvalidInput = -32003

	// ErrCodeStorageIO indicates a persistent-store I/O failure.
	ErrCodeStorageIO = -32004

	// ErrCodeLocked indicates the persistent store is locked by another process.
	ErrCodeLocked = -32005

	// Standard JSON-RPC error codes.
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors. apperrors.Error carries
// its own category, which drives the mapping; anything else collapses to
// an internal error.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return mapAppError(appErr)
	}

	return &MCPError{
		Code:    ErrCodeInternalError,
		Message: "internal server error",
	}
}

func mapAppError(e *apperrors.Error) *MCPError {
	message := e.Message
	if e.Suggestion != "" {
		message = fmt.Sprintf("%s %s", e.Message, e.Suggestion)
	}

	switch e.Category {
	case apperrors.CategoryNotFound:
		return &MCPError{Code: ErrCodeEntryNotFound, Message: message}
	case apperrors.CategoryBudget:
		return &MCPError{Code: ErrCodeOverBudget, Message: message}
	case apperrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidInput, Message: message}
	case apperrors.CategoryIO:
		if e.Code == apperrors.ErrCodeLocked {
			return &MCPError{Code: ErrCodeLocked, Message: message}
		}
		return &MCPError{Code: ErrCodeStorageIO, Message: message}
	default: // CategoryInternal and unknown
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}

// NewInvalidParamsError creates an error for invalid tool parameters.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}
