package types

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ErrConversion is the kind of every ConversionError.
var ErrConversion = errors.New("types: conversion failed")

// ConversionError reports a value that cannot be represented as Tag.
type ConversionError struct {
	Value Value
	Tag   Tag
	Cause error
}

func (e *ConversionError) Error() string {
	msg := fmt.Sprintf("error in conversion of value '%s' to type '%s'", Stringify(e.Value), e.Tag)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ConversionError) Unwrap() error { return e.Cause }

func (e *ConversionError) Is(target error) bool { return target == ErrConversion }

func conversionErr(v Value, t Tag, cause error) error {
	return &ConversionError{Value: v, Tag: t, Cause: cause}
}

func conversionErrf(v Value, t Tag, format string, args ...interface{}) error {
	return &ConversionError{Value: v, Tag: t, Cause: errors.Newf(format, args...)}
}
