// Package timeouts defines shared timeout constants used across services.
// Centralizing these values prevents drift between service boundaries and
// makes the durations discoverable.
package timeouts

import "time"

// VendorDispatch caps the wait time for a single vendor dispatch call.
const VendorDispatch = 30 * time.Second

// VendorCallbackParse caps the time allowed to parse one vendor callback
// payload into a normalized result.
const VendorCallbackParse = 10 * time.Second

// Shutdown limits how long a runtime waits for in-flight work during
// graceful shutdown.
const Shutdown = 5 * time.Second
