package service

import "errors"

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMalformedEvent   = errors.New("malformed webhook event")
	ErrUnknownEventType = errors.New("unknown webhook event type")
	ErrMissingAppUserID = errors.New("webhook event has no app_user_id")
	ErrUnresolvedUser   = errors.New("cannot determine user for billing event")
	ErrUnknownResource  = errors.New("unknown resource class")
	ErrUserMismatch     = errors.New("caller does not match subscription owner")
	ErrInvalidPlan      = errors.New("invalid plan")
)
