// Package api exposes the conversation service over a JSON HTTP API.
//
// Endpoints:
//
//	POST /api/v1/chat          one conversation turn; ?stream=1 switches to SSE
//	POST /api/v1/auth/signin   mark the session authenticated (identity verified upstream)
//	POST /api/v1/leads         record an email collected by the soft gate prompt
//	GET  /api/v1/questions     quick-start questions per persona and language
//	GET  /health               liveness probe
//	GET  /ready                readiness probe (database pool)
//
// Middleware stack, outermost first:
// recovery → request ID → logging → CORS → rate limit → session cookie.
//
// Guests are identified by a sid cookie that is auto-provisioned on the
// first state-changing request. All errors are JSON bodies of the form
// {"error": code, "message": text}; gate exhaustion maps to 401 with
// the stage the client should surface.
package api
