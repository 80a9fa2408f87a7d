package service

import "errors"

var (
	ErrNotFound              = errors.New("contract not found")
	ErrNotLatest             = errors.New("contract is no longer the customer's latest")
	ErrReplacementInProgress = errors.New("another replacement is already in progress for this customer")
	ErrInvalidContinuity     = errors.New("change date precedes the contract's start date")
	ErrExpiredContract       = errors.New("contract end date has passed; replacement requires confirmation")
	ErrContractExists        = errors.New("customer already has a current contract")
	ErrInvalidInput          = errors.New("invalid input")
	ErrPermissionDenied      = errors.New("permission denied")
	ErrReplacementFailed     = errors.New("replacement could not be applied")
)
