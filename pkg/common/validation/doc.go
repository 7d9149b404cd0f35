// Package validation provides reusable checks for configuration parameters.
//
// Every check returns a *errors.ValidationError carrying the module and
// field name, so constructors across shardpool report bad input in the
// same shape.
package validation
