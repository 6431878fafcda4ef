package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/ros-tooling/changelog-collator/internal/app"
	"github.com/ros-tooling/changelog-collator/internal/config"
	"github.com/ros-tooling/changelog-collator/internal/git"
	"github.com/ros-tooling/changelog-collator/internal/logging"
	"github.com/ros-tooling/changelog-collator/internal/report"
	"github.com/ros-tooling/changelog-collator/pkg/changelog"
)

type collateOptions struct {
	sourcePath           string
	since                string
	title                string
	outputFile           string
	configFile           string
	jobs                 int
	logLevel             string
	verbose              bool
	githubToken          string
	resolveDefaultBranch *bool
}

func main() {
	if err := newCLI(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func newCLI(stdout io.Writer, stderr io.Writer) *cli.App {
	cli.VersionFlag = &cli.BoolFlag{
		Name:  "version",
		Usage: "Print version",
	}
	cli.VersionPrinter = func(cCtx *cli.Context) {
		_, _ = fmt.Fprintln(cCtx.App.Writer, cCtx.App.Version)
	}
	return &cli.App{
		Name:      "changelog-collator",
		Usage:     "Collect package changelogs since the previous release into one report",
		Version:   "v0.1.0",
		Writer:    stdout,
		ErrWriter: stderr,
		Commands: []*cli.Command{
			{
				Name:        "collate",
				Aliases:     []string{"c"},
				Usage:       "Write the complete changelog of a source workspace",
				UsageText:   "changelog-collator collate [options] <source_path> <since> <title> <output_file>",
				Description: "Find every package under source_path, collect the changelog entries added since the last release tagged before <since>, and write them to output_file as reStructuredText.",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to a changelog-collator.toml (defaults to the one in source_path, if any)",
					},
					&cli.IntFlag{
						Name:    "jobs",
						Aliases: []string{"j"},
						Usage:   "Number of packages diffed concurrently (defaults to the config value)",
					},
					&cli.StringFlag{
						Name:  "log-level",
						Value: "info",
						Usage: "Log level: debug, info, warn or error",
					},
					&cli.BoolFlag{
						Name:  "verbose",
						Usage: "Shorthand for --log-level debug",
					},
					&cli.StringFlag{
						Name:    "github-token",
						EnvVars: []string{"GITHUB_TOKEN"},
						Usage:   "Token used to look up default branches on GitHub",
					},
					&cli.BoolFlag{
						Name:  "resolve-default-branch",
						Usage: "Ask GitHub for the default branch of repositories checked out at a detached HEAD",
					},
				},
				Action: func(cCtx *cli.Context) error {
					if cCtx.NArg() != 4 {
						return fmt.Errorf("expected 4 arguments (source_path, since, title, output_file), got %d", cCtx.NArg())
					}
					args := cCtx.Args()
					opts := collateOptions{
						sourcePath:  args.Get(0),
						since:       args.Get(1),
						title:       args.Get(2),
						outputFile:  args.Get(3),
						configFile:  cCtx.String("config"),
						jobs:        cCtx.Int("jobs"),
						logLevel:    cCtx.String("log-level"),
						verbose:     cCtx.Bool("verbose"),
						githubToken: cCtx.String("github-token"),
					}
					if cCtx.IsSet("resolve-default-branch") {
						resolve := cCtx.Bool("resolve-default-branch")
						opts.resolveDefaultBranch = &resolve
					}
					return runCollate(cCtx.Context, opts, stdout, stderr)
				},
			},
			{
				Name:        "entries",
				Aliases:     []string{"e"},
				Usage:       "Reconstruct the changelog entries of a single diff",
				UsageText:   "changelog-collator entries [options] [diff_file]",
				Description: "Read changelog diff text from diff_file or stdin and print the reconstructed entries. Raw git diff output is stripped to its inserted lines first.",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "old-version",
						Aliases: []string{"o"},
						Usage:   "Version label of the previous release; scanning stops at its section header",
					},
					&cli.StringFlag{
						Name:  "indicator",
						Value: "+",
						Usage: "Prefix marking inserted lines in raw git diff input",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Value:   "default",
						Usage:   "Output format.  Allowed values are: default, json, and yaml",
					},
				},
				Action: func(cCtx *cli.Context) error {
					format, err := validateFormat(cCtx.String("format"))
					if err != nil {
						return err
					}
					indicator := cCtx.String("indicator")
					if len(indicator) != 1 {
						return fmt.Errorf("indicator must be a single character, got %q", indicator)
					}
					input, err := readInput(cCtx.Args().First())
					if err != nil {
						return err
					}
					return printChangelogEntries(stdout, input, cCtx.String("old-version"), indicator[0], format)
				},
			},
			{
				Name:        "normalize",
				Aliases:     []string{"n"},
				Usage:       "Normalize reStructuredText markup of changelog entries",
				UsageText:   "changelog-collator normalize [text...]",
				Description: "Normalize each argument, or each line of stdin when no arguments are given, and print the result.",
				Action: func(cCtx *cli.Context) error {
					texts := cCtx.Args().Slice()
					if len(texts) == 0 {
						if !isStdinPiped() {
							return fmt.Errorf("text is required as arguments or on stdin")
						}
						lines, err := scanStdin()
						if err != nil {
							return err
						}
						texts = lines
					}
					for _, text := range texts {
						if _, err := fmt.Fprintln(stdout, changelog.Normalize(text)); err != nil {
							return err
						}
					}
					return nil
				},
			},
		},
	}
}

func runCollate(ctx context.Context, opts collateOptions, stdout io.Writer, stderr io.Writer) error {
	var settings *config.Config
	var err error
	if opts.configFile != "" {
		settings, err = config.ReadConfigFile(opts.configFile, nil, true)
	} else {
		settings, err = config.ReadConfig(opts.sourcePath, nil)
	}
	if err != nil {
		return fmt.Errorf("ReadConfig Error: %v", err)
	}
	if opts.resolveDefaultBranch != nil {
		settings.GitHub.ResolveDefaultBranch = *opts.resolveDefaultBranch
	}
	if opts.githubToken != "" {
		settings.GitHub.Token = opts.githubToken
	}

	level := logging.ParseLevel(opts.logLevel)
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := logging.NewLogger(stderr, level)

	collator, err := app.New(app.Config{
		SourcePath:    opts.sourcePath,
		Since:         opts.since,
		Title:         opts.title,
		OutputFile:    opts.outputFile,
		Jobs:          opts.jobs,
		Verbose:       level <= slog.LevelDebug,
		Settings:      settings,
		InfoBuffer:    logging.NewWriter(logger, slog.LevelDebug),
		WarningBuffer: logging.NewWriter(logger, slog.LevelWarn),
	})
	if err != nil {
		return err
	}
	result, err := collator.Run(ctx)
	if err != nil {
		return err
	}
	logger.Info("wrote changelog", "file", opts.outputFile, "packages", len(result.Sections))
	return report.WriteSummary(stdout, result.Missing, result.Contributors)
}

func readInput(path string) ([]byte, error) {
	if path != "" && path != "-" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading %s: %w", path, err)
		}
		return data, nil
	}
	if !isStdinPiped() {
		return nil, fmt.Errorf("a diff file or piped stdin is required")
	}
	return readStdin()
}

// isRawDiff reports whether input still carries git diff headers.
func isRawDiff(input []byte) bool {
	return bytes.HasPrefix(input, []byte("diff --git ")) ||
		bytes.HasPrefix(input, []byte("--- ")) ||
		bytes.Contains(input, []byte("\n@@ "))
}

func printChangelogEntries(w io.Writer, input []byte, oldVersion string, indicator byte, format OutputFormat) error {
	text := string(input)
	if isRawDiff(input) {
		added, err := git.AddedLines(input, indicator)
		if err != nil {
			return err
		}
		text = added
	}
	cl, ok := changelog.Reconstruct(text, oldVersion)
	if !ok {
		return fmt.Errorf("no changelog entries found%s", sinceSuffix(oldVersion))
	}
	return printEntries(w, cl, format)
}

func sinceSuffix(oldVersion string) string {
	if strings.TrimSpace(oldVersion) == "" {
		return ""
	}
	return " since " + oldVersion
}
