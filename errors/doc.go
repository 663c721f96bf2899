// Package errors provides the structured application error shared by the
// netmanager packages.
//
// An AppError carries a machine-readable code, a human-readable message and
// optional details. Precondition failures raised by the validation package are
// AppErrors; the httpclient package wraps them in its own classified Error.
package errors
