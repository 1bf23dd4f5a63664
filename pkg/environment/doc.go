// Package environment carries the deployment environment through request
// contexts so flag environment allow-lists and log records can use it.
package environment
