package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/a3tai/pdf-form-editor/internal/config"
	"github.com/a3tai/pdf-form-editor/internal/editor"
	"github.com/a3tai/pdf-form-editor/internal/pdf/forms"
)

// assignments collects repeated -set name=value flags
type assignments []assignment

type assignment struct {
	name  string
	value string
}

func (a *assignments) String() string {
	parts := make([]string, len(*a))
	for i, as := range *a {
		parts[i] = as.name + "=" + as.value
	}
	return strings.Join(parts, ",")
}

func (a *assignments) Set(raw string) error {
	name, value, ok := strings.Cut(raw, "=")
	if !ok || strings.TrimSpace(name) == "" {
		return fmt.Errorf("expected name=value, got %q", raw)
	}
	*a = append(*a, assignment{name: name, value: value})
	return nil
}

// Result is the JSON output of the tool
type Result struct {
	FilePath   string          `json:"file_path"`
	Pages      int             `json:"pages"`
	FieldCount int             `json:"field_count"`
	Fields     []forms.Field   `json:"fields"`
	Warnings   []forms.Warning `json:"warnings,omitempty"`
	Output     string          `json:"output,omitempty"`
}

type options struct {
	format      string
	out         string
	verbose     bool
	help        bool
	maxFileSize int64
	sets        assignments
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var opts options
	fs := flag.NewFlagSet("pdf-form-fields", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.format, "format", "text", "Output format: text, json")
	fs.StringVar(&opts.out, "out", "", "Write the filled PDF to this path")
	fs.BoolVar(&opts.verbose, "verbose", false, "Enable verbose output")
	fs.BoolVar(&opts.help, "help", false, "Show help message")
	fs.Int64Var(&opts.maxFileSize, "max-file-size", config.DefaultMaxFileSize, "Maximum PDF file size in bytes")
	fs.Var(&opts.sets, "set", "Set a field as name=value (repeatable)")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if opts.help {
		printHelp(stdout)
		return 0
	}

	if fs.NArg() == 0 {
		fmt.Fprintf(stderr, "Error: PDF file path required\n\n")
		printUsage(stderr)
		return 1
	}
	if opts.format != "text" && opts.format != "json" {
		fmt.Fprintf(stderr, "Error: unknown format %q\n", opts.format)
		return 1
	}
	if len(opts.sets) > 0 && opts.out == "" {
		fmt.Fprintf(stderr, "Error: -set requires -out\n")
		return 1
	}

	result, err := fill(context.Background(), fs.Arg(0), opts, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if err := outputResult(stdout, opts.format, result); err != nil {
		fmt.Fprintf(stderr, "Error outputting results: %v\n", err)
		return 1
	}
	return 0
}

// fill loads the PDF, applies every assignment in order and writes the
// filled copy when an output path is given
func fill(ctx context.Context, path string, opts options, stderr io.Writer) (*Result, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	logger := log.New(io.Discard, "", 0)
	if opts.verbose {
		logger = log.New(stderr, "pdf-form-fields: ", 0)
	}

	ed := editor.New(editor.Options{MaxFileSize: opts.maxFileSize, Logger: logger})
	defer ed.Close()

	if err := ed.LoadDocument(ctx, data); err != nil {
		return nil, err
	}

	var errs []error
	for _, as := range opts.sets {
		if err := ed.SetFieldValueString(ctx, as.name, as.value); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	state := ed.State()
	result := &Result{
		FilePath:   absPath,
		Pages:      state.TotalPages,
		FieldCount: len(state.Fields),
		Fields:     state.Fields,
		Warnings:   state.Warnings,
	}

	if opts.out != "" {
		export, err := ed.Export()
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(opts.out, export.Data, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", opts.out, err)
		}
		result.Output = opts.out
	}

	return result, nil
}

func outputResult(w io.Writer, format string, result *Result) error {
	if format == "json" {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}
	return outputText(w, result)
}

func outputText(w io.Writer, result *Result) error {
	fmt.Fprintf(w, "File: %s\n", result.FilePath)
	fmt.Fprintf(w, "Pages: %d\n", result.Pages)
	fmt.Fprintf(w, "Found %d form fields\n", result.FieldCount)

	for i, field := range result.Fields {
		fmt.Fprintf(w, "\n[%d] %s\n", i+1, field.Name)
		fmt.Fprintf(w, "    Type: %s\n", field.Kind)
		fmt.Fprintf(w, "    Value: %s\n", field.Value)
		if field.Page > 0 {
			fmt.Fprintf(w, "    Page: %d\n", field.Page)
		}
		if len(field.Options) > 0 {
			fmt.Fprintf(w, "    Options: %s\n", strings.Join(field.Options, ", "))
		}
		if field.MaxLength > 0 {
			fmt.Fprintf(w, "    Max Length: %d\n", field.MaxLength)
		}

		var properties []string
		if field.ReadOnly {
			properties = append(properties, "read-only")
		}
		if field.Required {
			properties = append(properties, "required")
		}
		if field.Editable {
			properties = append(properties, "editable")
		}
		if len(properties) > 0 {
			fmt.Fprintf(w, "    Properties: %s\n", strings.Join(properties, ", "))
		}
	}

	if len(result.Warnings) > 0 {
		fmt.Fprintf(w, "\nWarnings:\n")
		for _, warning := range result.Warnings {
			fmt.Fprintf(w, "  - %s\n", warning)
		}
	}

	if result.Output != "" {
		fmt.Fprintf(w, "\nWrote filled form to %s\n", result.Output)
	}
	return nil
}

func printHelp(w io.Writer) {
	fmt.Fprintln(w, "PDF Form Fields - list and fill the interactive fields of a PDF form")
	fmt.Fprintln(w)
	printUsage(w)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "OPTIONS:")
	fmt.Fprintln(w, "  -format         Output format: text (default), json")
	fmt.Fprintln(w, "  -set name=val   Set a field before writing (repeatable)")
	fmt.Fprintln(w, "  -out path       Write the filled PDF to path")
	fmt.Fprintln(w, "  -max-file-size  Maximum PDF file size in bytes")
	fmt.Fprintln(w, "  -verbose        Log editor activity to stderr")
	fmt.Fprintln(w, "  -help           Show this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Checkbox values accept true/false, on/off, yes/no and 1/0.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "EXAMPLES:")
	fmt.Fprintln(w, "  pdf-form-fields application.pdf")
	fmt.Fprintln(w, "  pdf-form-fields -format json application.pdf")
	fmt.Fprintln(w, "  pdf-form-fields -set Name=Alice -set Agree=yes -out filled.pdf application.pdf")
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "  pdf-form-fields [OPTIONS] <pdf_file>")
}
