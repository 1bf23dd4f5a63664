// Package httpapi exposes the flag engine, the management plane and the
// registration gate over JSON/HTTP.
//
// Every response uses one envelope:
//
//	{"data": ..., "meta": {...}}
//	{"error": {"code": "flag_not_found", "message": "...", "details": {...}}}
//
// Domain errors are mapped to status codes in one place (see errorFor), so
// handlers only return the error they got.
//
// # Routes
//
//	POST   /v1/evaluate
//	POST   /v1/evaluate/batch
//	GET    /v1/flags
//	POST   /v1/flags
//	GET    /v1/flags/{key}
//	PUT    /v1/flags/{key}
//	DELETE /v1/flags/{key}
//	POST   /v1/flags/{key}/emergency-disable
//	POST   /v1/emergency/disable-all
//	POST   /v1/registration/check
//	POST   /v1/registration/failure
//	POST   /v1/registration/success
//	POST   /v1/registration/confirm
//	POST   /v1/registration/unblock
//	GET    /healthz
//
// Registration routes are mounted only when a Protection is configured.
// Management calls take the acting operator from the X-Actor header.
package httpapi
