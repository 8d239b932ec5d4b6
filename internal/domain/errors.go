package domain

import "errors"

var (
	// ErrGameNotFound is returned when a game id does not refer to a live session.
	ErrGameNotFound = errors.New("game not found")
	// ErrNotEnoughTracks indicates the catalog has fewer usable tracks than a quiz needs.
	ErrNotEnoughTracks = errors.New("not enough tracks to build a quiz")
	// ErrCatalogUnavailable wraps any failure of the catalog collaborator.
	ErrCatalogUnavailable = errors.New("catalog unavailable")
	// ErrGameFinished is returned for transitions attempted after the last round.
	ErrGameFinished = errors.New("game already finished")
	// ErrRoundInProgress is returned when starting a round while one is playing.
	ErrRoundInProgress = errors.New("round already in progress")
	// ErrInvalidSubject indicates an unknown subject mode.
	ErrInvalidSubject = errors.New("invalid subject mode")
	// ErrInvalidRoundLength indicates an unknown round length setting.
	ErrInvalidRoundLength = errors.New("invalid round length")
)
