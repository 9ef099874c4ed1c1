package usecase

import (
	"fmt"
	"strings"
)

// Rejection statuses reported to API clients.
const (
	StatusInvalidUnit         = "INVALID_UNIT"
	StatusInvalidResolution   = "INVALID_RESOLUTION"
	StatusInvalidHorizon      = "INVALID_HORIZON"
	StatusInvalidDomain       = "INVALID_DOMAIN"
	StatusInvalidMessageType  = "INVALID_MESSAGE_TYPE"
	StatusInvalidTimezone     = "INVALID_TIMEZONE"
	StatusUnrecognizedMarket  = "UNRECOGNIZED_MARKET"
	StatusUnrecognizedSensor  = "UNRECOGNIZED_SENSOR"
	StatusUnrecognizedAsset   = "UNRECOGNIZED_CONNECTION_GROUP_OR_ASSET"
	StatusUnrecognizedRequest = "UNRECOGNIZED_REQUEST"
)

// RejectError is a validation failure the client can fix; it maps to a 4xx response.
type RejectError struct {
	Status  string
	Message string
}

func (e *RejectError) Error() string { return e.Status + ": " + e.Message }

// Reject builds a RejectError with a formatted message.
func Reject(status, format string, a ...interface{}) *RejectError {
	return &RejectError{Status: status, Message: fmt.Sprintf(format, a...)}
}

// InvalidUnit builds the rejection for a unit that does not match the quantity.
func InvalidUnit(quantity string, units ...string) *RejectError {
	return Reject(StatusInvalidUnit, "Provided unit is not valid. For %s, the unit should be: %v.", quantity, strings.Join(units, ", "))
}

// InvalidUnitFactor builds the rejection for a non-positive unit factor.
func InvalidUnitFactor() *RejectError {
	return Reject(StatusInvalidUnit, "The unit factor should be a positive number.")
}

// InvalidResolution builds the rejection for a resolution that is not a multiple of 15 minutes.
func InvalidResolution() *RejectError {
	return Reject(StatusInvalidResolution, "Only a resolution of 15 minutes (or a multiple thereof) is supported.")
}
