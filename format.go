package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ros-tooling/changelog-collator/pkg/changelog"
)

type OutputFormat string

const (
	FormatDefault OutputFormat = "default"
	FormatJSON    OutputFormat = "json"
	FormatYAML    OutputFormat = "yaml"
)

var allowedFormats = []string{string(FormatDefault), string(FormatJSON), string(FormatYAML)}

func validateFormat(format string) (OutputFormat, error) {
	if !slices.Contains(allowedFormats, format) {
		return "", fmt.Errorf("invalid format %s. Must be one of %s", format, strings.Join(allowedFormats, ", "))
	}
	return OutputFormat(format), nil
}

type entriesOutput struct {
	Entries      []string `json:"entries" yaml:"entries"`
	Contributors []string `json:"contributors" yaml:"contributors"`
}

func printEntries(w io.Writer, cl *changelog.Changelog, format OutputFormat) error {
	out := entriesOutput{Entries: cl.Entries, Contributors: cl.Contributors}
	if out.Contributors == nil {
		out.Contributors = []string{}
	}
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("error marshaling entries: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case FormatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(out); err != nil {
			return fmt.Errorf("error marshaling entries: %w", err)
		}
		return encoder.Close()
	default:
		_, err := io.WriteString(w, cl.Render())
		return err
	}
}
