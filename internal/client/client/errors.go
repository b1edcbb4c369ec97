package client

import "errors"

var (
	ErrUnavailable = errors.New("server unavailable")
	ErrNoWallet    = errors.New("no signing key loaded")
)
