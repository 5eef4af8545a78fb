package main

import (
	"errors"
	"fmt"

	"github.com/open-sspm/resolvers/internal/resolver"
)

// Configuration failures exit with sysexits EX_CONFIG.
const (
	exitCodeFailure  = 1
	exitCodeUsage    = 2
	exitCodeConfig   = 78
	exitCodeCanceled = 130
)

// exitError carries a specific process exit code. A silent exitError has
// already reported itself, e.g. an error result printed by invoke.
type exitError struct {
	code   int
	err    error
	silent bool
}

func (e *exitError) Error() string {
	if e == nil {
		return ""
	}
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("exit %d", e.code)
}

func (e *exitError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// resultExit reports an invoke call whose result was already printed.
func resultExit() error {
	return &exitError{code: exitCodeFailure, silent: true}
}

func usageError(format string, args ...any) error {
	return &exitError{code: exitCodeUsage, err: fmt.Errorf(format, args...)}
}

func configError(err error) error {
	return &exitError{code: exitCodeConfig, err: err}
}

// exitCodeOf picks the exit code for an error without an explicit exitError.
// Resolver config failures (missing base URL, credentials or integration
// sources) map to exitCodeConfig.
func exitCodeOf(err error) int {
	if resolver.IsKind(err, resolver.KindConfig) {
		return exitCodeConfig
	}
	return exitCodeFailure
}

// errorAttrs adds the resolver kind and vendor code to fatal log lines.
func errorAttrs(err error) []any {
	var re *resolver.Error
	if !errors.As(err, &re) {
		return nil
	}
	attrs := []any{"kind", string(re.Kind)}
	if re.Code != "" {
		attrs = append(attrs, "code", re.Code)
	}
	if re.Status != 0 {
		attrs = append(attrs, "status", re.Status)
	}
	return attrs
}
