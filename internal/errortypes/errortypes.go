// Package errortypes defines the error taxonomy the adapter returns to the
// Catalyst host. Raw AdWave error values never cross the adapter boundary;
// MapPartnerError translates them here first.
package errortypes

import (
	"errors"
	"fmt"

	"github.com/thenexusengine/tne_adwave/internal/adwave"
)

// Code identifies one entry of the adapter error taxonomy
type Code string

const (
	CodeSetupFailure       Code = "SETUP_FAILURE"
	CodeNoFill             Code = "NO_FILL"
	CodeNoConnectivity     Code = "NO_CONNECTIVITY"
	CodeInvalidBidResponse Code = "INVALID_BID_RESPONSE"
	CodeAuctionNoBid       Code = "AUCTION_NO_BID"
	CodeAdRequestTimeout   Code = "AD_REQUEST_TIMEOUT"
	CodeInvalidRequest     Code = "INVALID_REQUEST"
	// CodeLoadAborted is returned when a load arrives for a placement that
	// already has one in flight
	CodeLoadAborted        Code = "LOAD_ABORTED"
	CodeUnsupportedFormat  Code = "UNSUPPORTED_FORMAT"
	CodeAdNotReady         Code = "AD_NOT_READY"
	CodePartnerError       Code = "PARTNER_ERROR"
)

// AdapterError is the error value surfaced to the host for every expected
// failure condition
type AdapterError struct {
	Code    Code
	Message string
	Cause   error
}

func (e *AdapterError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s (%v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AdapterError) Unwrap() error {
	return e.Cause
}

// New creates an AdapterError with the given code and message
func New(code Code, message string) *AdapterError {
	return &AdapterError{Code: code, Message: message}
}

// Wrap creates an AdapterError carrying an underlying cause
func Wrap(code Code, message string, cause error) *AdapterError {
	return &AdapterError{Code: code, Message: message, Cause: cause}
}

// NewSetupFailure creates a setup failure error
func NewSetupFailure(message string) *AdapterError {
	return New(CodeSetupFailure, message)
}

// NewInvalidRequest creates the error for a malformed host request
func NewInvalidRequest(message string) *AdapterError {
	return New(CodeInvalidRequest, message)
}

// NewLoadAborted creates the collision error for a placement with a load
// already in flight
func NewLoadAborted(placement string) *AdapterError {
	return New(CodeLoadAborted, fmt.Sprintf("load already in flight for placement %q", placement))
}

// NewAdNotReady creates the error for showing a placement with no loaded ad
func NewAdNotReady(placement string) *AdapterError {
	return New(CodeAdNotReady, fmt.Sprintf("no ad ready for placement %q", placement))
}

// NewUnsupportedFormat creates the error for a format this adapter does not
// serve
func NewUnsupportedFormat(format string) *AdapterError {
	return New(CodeUnsupportedFormat, fmt.Sprintf("unsupported ad format %q", format))
}

// IsCode reports whether err is (or wraps) an AdapterError with the given code
func IsCode(err error, code Code) bool {
	var ae *AdapterError
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}

// MapPartnerError translates an AdWave error into the adapter taxonomy.
// Unrecognized codes map to PARTNER_ERROR.
func MapPartnerError(err *adwave.Error) *AdapterError {
	if err == nil {
		return New(CodePartnerError, "partner reported an unspecified error")
	}

	var code Code
	switch err.Code {
	case adwave.CodeNoFill, adwave.CodeCapped:
		code = CodeNoFill
	case adwave.CodeNoConnection:
		code = CodeNoConnectivity
	case adwave.CodeEmptyPayload, adwave.CodeInvalidPayload:
		code = CodeInvalidBidResponse
	case adwave.CodeAuctionFailed:
		code = CodeAuctionNoBid
	case adwave.CodeTimeout:
		code = CodeAdRequestTimeout
	default:
		code = CodePartnerError
	}

	return Wrap(code, fmt.Sprintf("partner error %d", err.Code), err)
}
