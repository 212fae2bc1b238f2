package app

import "time"

const (
	// ShutdownTimeout bounds each teardown step after the context ends.
	ShutdownTimeout = 5 * time.Second
	// ReadHeaderTimeout bounds how long a client may take to send headers.
	ReadHeaderTimeout = 10 * time.Second
)
