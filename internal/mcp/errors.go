// Package mcp exposes RELE's tool surface over the Model Context Protocol.
package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/ploke-dev/rele/internal/releerr"
)

// Custom MCP error codes for RELE, reusing the teacher's JSON-RPC
// extension-code range.
const (
	ErrCodeDomain   = -32001
	ErrCodeIO       = -32002
	ErrCodeIndex    = -32003
	ErrCodeChannel  = -32004
	ErrCodeInternal = -32005

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

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts a ReleError (or context/stdlib error) into an MCPError.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var re *releerr.ReleError
	if errors.As(err, &re) {
		return mapReleError(re)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeIO, Message: "request timed out or was canceled"}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: err.Error()}
	}
}

func mapReleError(re *releerr.ReleError) *MCPError {
	message := re.Message
	if re.Suggestion != "" {
		message = fmt.Sprintf("%s %s", re.Message, re.Suggestion)
	}

	switch re.Category {
	case releerr.CategoryDomain:
		return &MCPError{Code: ErrCodeDomain, Message: message}
	case releerr.CategoryIO:
		return &MCPError{Code: ErrCodeIO, Message: message}
	case releerr.CategoryIndex:
		return &MCPError{Code: ErrCodeIndex, Message: message}
	case releerr.CategoryChannel:
		return &MCPError{Code: ErrCodeChannel, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternal, Message: message}
	}
}

// NewInvalidParamsError creates an error for invalid tool arguments.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewMethodNotFoundError creates an error for unknown tool names.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{Code: ErrCodeMethodNotFound, Message: fmt.Sprintf("tool %q not found", name)}
}
