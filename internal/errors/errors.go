// Package errors re-exports github.com/cockroachdb/errors for aliasync.
//
// Usage:
//
//	if err := client.Search(ctx); err != nil {
//	    return errors.Wrap(err, "snapshot aliases")
//	}
//
//	// Tag an error with a taxonomy class, then test for it later.
//	err = errors.Mark(err, reconcile.ErrPrecondition)
//	errors.Is(err, reconcile.ErrPrecondition) // true
//
//	// Attach an operator-facing hint.
//	return errors.WithHint(err, "check api_key and api_secret")
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing hints and details
var (
	WithHint     = crdb.WithHint
	WithHintf    = crdb.WithHintf
	WithDetail   = crdb.WithDetail
	WithDetailf  = crdb.WithDetailf
	FlattenHints = crdb.FlattenHints
	GetAllHints  = crdb.GetAllHints
)

// Inspection and classification
var (
	Is        = crdb.Is
	IsAny     = crdb.IsAny
	As        = crdb.As
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll
	Mark      = crdb.Mark
)
