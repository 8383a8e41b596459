package services

import "errors"

var (
	ErrInvalidRequest   = errors.New("invalid request")
	ErrPlanNotFound     = errors.New("cleanup plan not found")
	ErrPlanExecuted     = errors.New("cleanup plan already executed")
	ErrTrashUnavailable = errors.New("trash unavailable")
	ErrRootUnreadable   = errors.New("scan root unreadable")
)
