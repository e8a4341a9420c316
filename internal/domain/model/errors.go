package model

import "errors"

// Sentinel kinds for model parsing and validation.
var (
	ErrUnknownGender    = errors.New("unknown gender")
	ErrUnknownRoundType = errors.New("unknown round type")
	ErrBadScoreKey      = errors.New("malformed score key")
	ErrInvariant        = errors.New("schedule invariant violated")
)
