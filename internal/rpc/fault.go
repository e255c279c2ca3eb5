// Copyright (2012) Sandia Corporation.
// Under the terms of Contract DE-AC04-94AL85000 with Sandia Corporation,
// the U.S. Government retains certain rights in this software.

// Package rpc is the stub/skeleton RPC substrate: a connection-per-call
// transport that lets a stub forward method invocations to a skeleton
// listening on another process, as described by the naming server spec's
// RPC transport component.
package rpc

import (
	"encoding/gob"
	"fmt"
)

// Kind classifies the semantic error kinds that can cross the wire. These
// are not Go types, they're tags carried in a Fault payload so the caller
// can distinguish a lookup failure from a transport failure from a state
// error, the same taxonomy the directory/storage operations are specified
// against.
type Kind int

const (
	// RemoteErrorKind wraps any I/O or deserialization failure encountered
	// while making or servicing a call.
	RemoteErrorKind Kind = iota
	FileNotFound
	OutOfBounds
	IO
	NullArg
	IllegalArgument
	IllegalState
)

func (k Kind) String() string {
	switch k {
	case FileNotFound:
		return "FileNotFound"
	case OutOfBounds:
		return "OutOfBounds"
	case IO:
		return "IO"
	case NullArg:
		return "NullArg"
	case IllegalArgument:
		return "IllegalArgument"
	case IllegalState:
		return "IllegalState"
	default:
		return "RemoteError"
	}
}

// Fault is the payload a skeleton sends back in place of a return value
// when the invoked method returned an error. It is what crosses the wire;
// Fault itself implements error so callers can treat it like any other Go
// error once it's back on the client side.
type Fault struct {
	Kind    Kind
	Message string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%v: %v", f.Kind, f.Message)
}

// Is reports whether err is a *Fault of kind k. Used by callers that need
// to branch on the semantic error kind (e.g. treating FileNotFound as a
// non-fatal result).
func Is(err error, k Kind) bool {
	f, ok := err.(*Fault)
	return ok && f.Kind == k
}

// Newf builds a *Fault of the given kind with a formatted message.
func Newf(k Kind, format string, args ...interface{}) *Fault {
	return &Fault{Kind: k, Message: fmt.Sprintf(format, args...)}
}

// Wrap turns any error into a *Fault, preserving its kind if it already is
// one, or tagging it as a transport-layer RemoteError otherwise. Used at
// the client side of Invoke to guarantee a typed error crosses back into
// caller code.
func Wrap(err error) *Fault {
	if err == nil {
		return nil
	}
	if f, ok := err.(*Fault); ok {
		return f
	}
	return &Fault{Kind: RemoteErrorKind, Message: err.Error()}
}

func init() {
	gob.Register(&Fault{})
}
