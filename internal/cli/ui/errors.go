package ui

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/redochen/ccnetcore/internal/orm/crud"
)

// ErrorOptions describes one error message
type ErrorOptions struct {
	Context     string
	Problem     string
	Suggestions []string
	Hints       []string
	NoColor     bool
}

// FormatError renders a headline, the problem and optional suggestions and hints.
//
//	✗ NOT FOUND: modify Roles: record not found
//
//	   → List roles: ccnetcore role list
func FormatError(opts ErrorOptions) string {
	var b strings.Builder

	red := color.New(color.FgRed, color.Bold)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)
	if opts.NoColor {
		red.DisableColor()
		yellow.DisableColor()
		cyan.DisableColor()
	}

	if opts.Context != "" {
		red.Fprintf(&b, "✗ %s: %s\n", strings.ToUpper(opts.Context), opts.Problem)
	} else {
		red.Fprintf(&b, "✗ %s\n", opts.Problem)
	}
	if len(opts.Suggestions) > 0 {
		b.WriteString("\n")
		yellow.Fprintf(&b, "   Did you mean: %s?\n", strings.Join(opts.Suggestions, ", "))
	}
	if len(opts.Hints) > 0 {
		b.WriteString("\n")
		for _, h := range opts.Hints {
			cyan.Fprintf(&b, "   → %s\n", h)
		}
	}
	return b.String()
}

// DescribeError classifies err by the repository error kinds
func DescribeError(err error, noColor bool) string {
	opts := ErrorOptions{Problem: err.Error(), NoColor: noColor}
	switch {
	case errors.Is(err, crud.ErrInvalidParam):
		opts.Context = "invalid input"
		opts.Hints = []string{"Check the flags: ccnetcore <command> --help"}
	case errors.Is(err, crud.ErrNotFound):
		opts.Context = "not found"
	case errors.Is(err, crud.ErrAlreadyExists):
		opts.Context = "already exists"
	case errors.Is(err, crud.ErrIdentify):
		opts.Context = "identity check failed"
	case errors.Is(err, crud.ErrFailure):
		opts.Context = "not applied"
		opts.Hints = []string{"The row changed concurrently; retry the command"}
	}
	var unknown *UnknownNameError
	if errors.As(err, &unknown) {
		opts.Context = "unknown " + unknown.Kind
		opts.Suggestions = unknown.Suggestions
	}
	return FormatError(opts)
}

// WriteError writes DescribeError(err) to w
func WriteError(w io.Writer, err error, noColor bool) {
	fmt.Fprint(w, DescribeError(err, noColor))
}

// WriteSuccess writes a one-line success message
func WriteSuccess(w io.Writer, message string, noColor bool) {
	green := color.New(color.FgGreen, color.Bold)
	if noColor {
		green.DisableColor()
	}
	green.Fprintf(w, "✓ %s\n", message)
}
