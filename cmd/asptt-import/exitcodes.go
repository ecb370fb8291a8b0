package main

import (
	"errors"
	"net/http"
	"strings"

	"github.com/iota-uz/asptt-sync/modules/asptt/services"
)

type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string {
	return e.err.Error()
}

func (e *cliError) Unwrap() error {
	return e.err
}

const (
	exitOK         = 0
	exitValidation = 2
	exitUsage      = 3
	exitDB         = 4
	exitDBWrite    = 5
	exitSafetyNet  = 6
)

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &cliError{code: code, err: err}
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ce *cliError
	if errors.As(err, &ce) {
		return ce.code
	}
	return 1
}

// fromService picks the exit code for a service error. write selects the
// code used for storage failures.
func fromService(err error, write bool) error {
	if err == nil {
		return nil
	}
	var ce *cliError
	if errors.As(err, &ce) {
		return err
	}
	var svcErr *services.ServiceError
	if !errors.As(err, &svcErr) {
		if write {
			return withCode(exitDBWrite, err)
		}
		return withCode(exitDB, err)
	}
	switch {
	case svcErr.Status == http.StatusForbidden, svcErr.Status == http.StatusPreconditionRequired:
		return withCode(exitSafetyNet, err)
	case svcErr.Status >= 500:
		if write {
			return withCode(exitDBWrite, err)
		}
		return withCode(exitDB, err)
	default:
		return withCode(exitValidation, err)
	}
}

func stringsTrim(s string) string { return strings.TrimSpace(s) }
