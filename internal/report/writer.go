package report

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ros-tooling/changelog-collator/pkg/changelog"
)

// Section is one package's contribution to the report.
type Section struct {
	Name      string
	URL       string
	Changelog *changelog.Changelog
}

// Header is the section title, a reStructuredText anonymous link when a URL is known.
func (s Section) Header() string {
	if s.URL == "" {
		return s.Name
	}
	return fmt.Sprintf("`%s <%s>`__", s.Name, s.URL)
}

// Writer emits the reStructuredText changelog report.
type Writer struct {
	w io.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (rw *Writer) WriteHeader(project, title string) error {
	pageHeader := project + " " + title + " Complete Changelog"
	var b strings.Builder
	b.WriteString(pageHeader + "\n")
	b.WriteString(underline('=', pageHeader) + "\n\n")
	fmt.Fprintf(&b, "This page is a list of the complete changes in all %s core packages since the previous release.\n\n", project)
	b.WriteString(".. contents:: Table of Contents\n")
	b.WriteString("   :local:\n\n")
	_, err := io.WriteString(rw.w, b.String())
	return err
}

func (rw *Writer) WritePackage(section Section) error {
	header := section.Header()
	rule := underline('^', header)
	var b strings.Builder
	b.WriteString(rule + "\n")
	b.WriteString(header + "\n")
	b.WriteString(rule + "\n\n")
	if section.Changelog != nil {
		b.WriteString(section.Changelog.Render())
	}
	_, err := io.WriteString(rw.w, b.String())
	return err
}

func underline(c rune, text string) string {
	return strings.Repeat(string(c), utf8.RuneCountInString(text))
}
