package models

import "errors"

// Sentinel errors returned by every store implementation.
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)
