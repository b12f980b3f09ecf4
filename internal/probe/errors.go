package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
)

var (
	// ErrInvalidURL is returned for manual URLs that cannot be probed
	ErrInvalidURL = errors.New("invalid device URL")

	// ErrNotAppliance is returned when a manual URL answers but is not the appliance
	ErrNotAppliance = errors.New("no appliance responded at this address")
)

// ErrorKind represents the category of a probe miss
type ErrorKind int

const (
	// KindNetwork is a generic network-level failure
	KindNetwork ErrorKind = iota
	// KindTimeout means the probe deadline expired
	KindTimeout
	// KindConnectionRefused means nothing listens on the port
	KindConnectionRefused
	// KindDNS means the host name did not resolve
	KindDNS
	// KindHostUnreachable means there is no route to the host
	KindHostUnreachable
	// KindHTTP means the server answered with a non-200 status
	KindHTTP
	// KindParse means the body was not valid JSON
	KindParse
)

// String returns a short name for the kind
func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindConnectionRefused:
		return "connection refused"
	case KindDNS:
		return "dns"
	case KindHostUnreachable:
		return "host unreachable"
	case KindHTTP:
		return "http status"
	case KindParse:
		return "malformed json"
	default:
		return fmt.Sprintf("ErrorKind(%d)", k)
	}
}

// ProbeError describes why a probe did not produce a response body.
type ProbeError struct {
	Kind       ErrorKind
	URL        string
	StatusCode int
	Err        error
}

// Error implements the error interface
func (e *ProbeError) Error() string {
	switch {
	case e.Kind == KindHTTP:
		return fmt.Sprintf("probe %s: %s %d", e.URL, e.Kind, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("probe %s: %s: %v", e.URL, e.Kind, e.Err)
	default:
		return fmt.Sprintf("probe %s: %s", e.URL, e.Kind)
	}
}

// Unwrap returns the underlying error for error chain inspection
func (e *ProbeError) Unwrap() error {
	return e.Err
}

// classify maps a transport error onto a ProbeError kind.
func classify(err error, url string) *ProbeError {
	if err == nil {
		return nil
	}

	pe := &ProbeError{Kind: KindNetwork, URL: url, Err: err}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) || os.IsTimeout(err) {
		pe.Kind = KindTimeout
		return pe
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		pe.Kind = KindDNS
		return pe
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		pe.Kind = KindConnectionRefused
	case errors.Is(err, syscall.EHOSTUNREACH), errors.Is(err, syscall.ENETUNREACH):
		pe.Kind = KindHostUnreachable
	}

	return pe
}

// newHTTPError creates a ProbeError for an unexpected status code
func newHTTPError(url string, statusCode int) *ProbeError {
	return &ProbeError{Kind: KindHTTP, URL: url, StatusCode: statusCode}
}

// newParseError creates a ProbeError for an invalid body
func newParseError(url string, err error) *ProbeError {
	return &ProbeError{Kind: KindParse, URL: url, Err: err}
}

// KindOf returns the kind of a probe error, or false for other errors.
func KindOf(err error) (ErrorKind, bool) {
	var pe *ProbeError
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return 0, false
}
