// Package httputil provides the JSON request and response helpers and the
// outer HTTP middleware shared by the service's handlers.
//
// # Responses
//
//	httputil.WriteSuccess(w, role)
//	httputil.WriteCreated(w, role)
//	httputil.WriteErrorMessage(w, http.StatusConflict, "role code already exists")
//
// Every error body has the shape {"error": "..."}.
//
// # Request Parsing
//
//	var req createRoleRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // 400 already written
//	}
//	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
//
// # Middleware
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware,
//		httputil.MaxBytesMiddleware(1<<20),
//	)(router)
package httputil
