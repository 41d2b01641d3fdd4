// Package common holds the transport-level middleware types shared by the
// router and the middleware package. These wrap the http.Handler that runs
// a server function; request-scoped composition lives in package pipeline.
package common

import (
	"net/http"
)

// Middleware wraps an http.Handler. It is used for concerns that belong to
// the hosting server rather than to a server function, such as panic
// recovery, access logging and CORS.
type Middleware func(http.Handler) http.Handler
