// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package npos

import "errors"

var (
	// Precondition violations. All reject before any state mutation.
	ErrNotController    = errors.New("account is not a controller")
	ErrNotStash         = errors.New("account is not a stash")
	ErrAlreadyBonded    = errors.New("stash is already bonded")
	ErrAlreadyPaired    = errors.New("controller is already paired")
	ErrInsufficientBond = errors.New("bond below the minimum required")
	ErrEmptyTargets     = errors.New("nomination targets are empty")
	ErrDuplicateNominee = errors.New("nomination targets contain a duplicate")
	ErrNoMoreChunks     = errors.New("unlocking chunk limit reached")
	ErrNoUnlockChunk    = errors.New("no unlocking chunk to rebond")

	// Election-window violations.
	ErrCallNotAllowed    = errors.New("operation not allowed while the election window is open")
	ErrEarlySubmission   = errors.New("solution submitted before the election window opened")
	ErrInvalidEra        = errors.New("solution submitted for a different era")
	ErrInvalidSource     = errors.New("unsigned solution from a non-local transaction source")
	ErrReportsNotSeated  = errors.New("offence reports are not accepted while the election window is open")
	ErrMismatchedReports = errors.New("offence and slash fraction counts differ")

	// Administrative.
	ErrInvalidSlashIndex    = errors.New("cancel-slash indices must be sorted, unique and in range")
	ErrEmptySlashIndices    = errors.New("cancel-slash indices are empty")
	ErrInvalidInflationRate = errors.New("inflation rate denominator is zero")
)
