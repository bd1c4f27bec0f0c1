// Package httputil provides HTTP utilities for standardized request and
// response handling.
//
// # Response Helpers
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteBadRequest(w, "invalid document")
//	httputil.WriteNotFoundError(w, "unknown message type")
//
// # Request Parsing
//
//	body, ok := httputil.ReadBodyOrError(w, r)
//	if !ok {
//		return // Error response already written
//	}
//	pretty := httputil.ParseQueryBool(r, "pretty", false)
//
// # Middleware
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware(logger),
//		httputil.MaxBytesMiddleware(4<<20),
//	)(router)
package httputil
