// Copyright (c) 2017-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package credentials

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// Unavailable means no credential could be produced: the signing key
	// could not be read or parsed, or the platform could not be reached.
	Unavailable Kind = iota + 1
	// Rejected means the platform refused the assertion. It needs operator
	// action and is never retried.
	Rejected
)

func (k Kind) String() string {
	switch k {
	case Unavailable:
		return "credential unavailable"
	case Rejected:
		return "credential rejected"
	default:
		return "credential error"
	}
}

var (
	ErrUnavailable = errors.New(Unavailable.String())
	ErrRejected    = errors.New(Rejected.String())
)

type CredentialError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *CredentialError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *CredentialError) Unwrap() error { return e.Err }

func (e *CredentialError) Is(target error) bool {
	switch target {
	case ErrUnavailable:
		return e.Kind == Unavailable
	case ErrRejected:
		return e.Kind == Rejected
	}
	return false
}

func unavailable(op string, err error) error {
	return &CredentialError{Kind: Unavailable, Op: op, Err: err}
}

func rejected(op string, err error) error {
	return &CredentialError{Kind: Rejected, Op: op, Err: err}
}

// IsCredentialError reports whether err was caused by the credential
// lifecycle rather than by the call it was made for.
func IsCredentialError(err error) bool {
	var credErr *CredentialError
	return errors.As(err, &credErr)
}
