package common

import "errors"

var (
	// command errors, returned to callers
	ErrNotReady          = errors.New("connection not ready")
	ErrNotFound          = errors.New("not found")
	ErrInvalidIdentifier = errors.New("invalid identifier")
	ErrSendFailure       = errors.New("send failed")

	// background errors, logged only
	ErrMediaDownload = errors.New("media download failed")
	ErrQRRender      = errors.New("qr render failed")
	ErrSync          = errors.New("sync failed")
)
