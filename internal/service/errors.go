package service

import (
	"errors"
	"fmt"

	"matatu/internal/repository"
)

var (
	// ErrNotFound is returned when a trip, route, vehicle, split or payment does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the principal's role or identity does not permit the operation.
	ErrForbidden = errors.New("forbidden")

	// ErrUnauthenticated is returned when credentials are missing or wrong.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrInvalidFareType is returned when the fare type is unknown or the route has no rule for it.
	ErrInvalidFareType = errors.New("invalid fare type")

	// ErrInvalidPhoneNumber is returned when a phone number cannot be normalized.
	ErrInvalidPhoneNumber = errors.New("invalid phone number")

	// ErrInvalidAmount is returned when an amount is not positive, or a charge is not whole shillings.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidDriver is returned when the named driver does not exist or is not a driver.
	ErrInvalidDriver = errors.New("invalid driver")

	// ErrInvalidRole is returned when a role string is not recognized.
	ErrInvalidRole = errors.New("invalid role")

	// ErrValidation is returned for malformed input not covered by a more specific error.
	ErrValidation = errors.New("validation failed")

	// ErrAlreadyConfirmed is returned when the driver confirms a trip twice.
	ErrAlreadyConfirmed = errors.New("trip already confirmed")

	// ErrSplitExists is returned when a revenue split already exists for the trip.
	ErrSplitExists = errors.New("revenue split already exists")

	// ErrAlreadyPaid is returned when a trip already has a received payment.
	ErrAlreadyPaid = errors.New("trip already paid")

	// ErrDuplicateRequest is returned when a charge for the same trip and phone is in flight.
	ErrDuplicateRequest = errors.New("duplicate payment request")

	// ErrInsufficientBalance is returned when a withdrawal exceeds the available balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrWithdrawalProcessed is returned when approving or declining a withdrawal twice.
	ErrWithdrawalProcessed = errors.New("withdrawal already processed")

	// ErrPhoneTaken is returned when registering a phone number already in use.
	ErrPhoneTaken = errors.New("phone number already registered")

	// ErrPlateTaken is returned when registering a plate number already in use.
	ErrPlateTaken = errors.New("plate number already registered")

	// ErrUpstreamFailure is returned when the payment gateway rejects or fails a charge.
	ErrUpstreamFailure = errors.New("payment gateway failure")

	// ErrAnomaly is logged when a callback contradicts a terminal payment. It never
	// reaches an HTTP caller.
	ErrAnomaly = errors.New("payment callback anomaly")
)

// DuplicateRequestError carries the payment already in flight for a
// duplicate charge request.
type DuplicateRequestError struct {
	PaymentID string
}

func (e *DuplicateRequestError) Error() string {
	if e.PaymentID == "" {
		return ErrDuplicateRequest.Error()
	}
	return fmt.Sprintf("%s: payment %s", ErrDuplicateRequest, e.PaymentID)
}

func (e *DuplicateRequestError) Unwrap() error {
	return ErrDuplicateRequest
}

// mapRepoError translates repository.ErrNotFound into ErrNotFound and
// passes everything else through.
func mapRepoError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
