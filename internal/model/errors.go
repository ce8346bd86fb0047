package model

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvalidState       = errors.New("invalid state")
	ErrIntegrityViolation = errors.New("integrity violation")
	ErrAlreadyExists      = errors.New("already exists")
	ErrInvalidInput       = errors.New("invalid input")
)

// NotFoundError reports a missing inventory item, warehouse, reservation or order.
type NotFoundError struct {
	Entity string
	ID     string
}

func NewNotFound(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// InsufficientStockError is a business condition, callers branch on it to
// offer a partial cart or a backorder.
type InsufficientStockError struct {
	InventoryItemID string
	SKU             string
	Requested       int
	Available       int
}

func (e *InsufficientStockError) Error() string {
	if e.SKU != "" {
		return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.SKU, e.Requested, e.Available)
	}
	return fmt.Sprintf("insufficient stock: requested %d, available %d", e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// InvalidStateError reports a transition the reservation or order state graph forbids.
type InvalidStateError struct {
	Entity string
	ID     string
	From   string
	To     string
	Reason string
}

func (e *InvalidStateError) Error() string {
	msg := fmt.Sprintf("cannot transition %s %s from %s to %s", e.Entity, e.ID, e.From, e.To)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *InvalidStateError) Is(target error) bool { return target == ErrInvalidState }

// IntegrityViolationError means reserved > on-hand (or a negative count) was
// observed inside an operation that should have been atomic. Never user-facing.
type IntegrityViolationError struct {
	InventoryItemID string
	OnHand          int
	Reserved        int
	Detail          string
}

func (e *IntegrityViolationError) Error() string {
	return fmt.Sprintf("integrity violation on inventory item %s (on_hand=%d reserved=%d): %s",
		e.InventoryItemID, e.OnHand, e.Reserved, e.Detail)
}

func (e *IntegrityViolationError) Is(target error) bool { return target == ErrIntegrityViolation }

// InvalidInputError wraps request validation failures.
type InvalidInputError struct {
	Field  string
	Reason string
}

func NewInvalidInput(field, reason string) *InvalidInputError {
	return &InvalidInputError{Field: field, Reason: reason}
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Is(target error) bool { return target == ErrInvalidInput }
