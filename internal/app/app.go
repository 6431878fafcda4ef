package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ros-tooling/changelog-collator/internal/config"
	"github.com/ros-tooling/changelog-collator/internal/git"
	gh "github.com/ros-tooling/changelog-collator/internal/github"
	"github.com/ros-tooling/changelog-collator/internal/report"
	"github.com/ros-tooling/changelog-collator/internal/workspace"
	"github.com/ros-tooling/changelog-collator/pkg/changelog"
	f "github.com/ros-tooling/changelog-collator/pkg/functional"
)

// Config holds the application configuration
type Config struct {
	SourcePath string
	// Since is a date understood by `git log --until`.
	Since      string
	Title      string
	OutputFile string
	// Jobs bounds the number of packages diffed concurrently. Zero uses Settings.Jobs.
	Jobs          int
	Verbose       bool
	Settings      *config.Config
	InfoBuffer    io.Writer
	WarningBuffer io.Writer
}

// Result summarizes a collation run.
type Result struct {
	// Sections are the packages written to the report, in package name order.
	Sections []report.Section
	// Missing names the packages that contributed no changelog section, sorted.
	Missing []string
	// Contributors is the sorted union of every section's contributors.
	Contributors []string
}

// App represents the application with its dependencies
type App struct {
	config   *Config
	settings *config.Config
	client   gh.Client
	openRepo func(ctx context.Context, path string) (git.Repo, error)
	outputMu sync.Mutex
}

type candidate struct {
	pkg  workspace.Package
	repo git.Repo
}

type repoHistory struct {
	oldVersion string
	origin     string
	branch     string
}

// New creates a new App instance with the given configuration
func New(cfg Config) (*App, error) {
	if cfg.SourcePath == "" {
		return nil, fmt.Errorf("source path is required")
	}
	if cfg.Since == "" {
		return nil, fmt.Errorf("since date is required")
	}
	if cfg.OutputFile == "" {
		return nil, fmt.Errorf("output file is required")
	}
	if cfg.InfoBuffer == nil {
		cfg.InfoBuffer = io.Discard
	}
	if cfg.WarningBuffer == nil {
		cfg.WarningBuffer = io.Discard
	}
	settings := cfg.Settings
	if settings == nil {
		settings = config.Default()
	}
	if cfg.Jobs <= 0 {
		cfg.Jobs = settings.Jobs
	}
	if cfg.Jobs <= 0 {
		cfg.Jobs = 1
	}

	app := &App{
		config:   &cfg,
		settings: settings,
		openRepo: git.Open,
	}
	if settings.GitHub != nil && settings.GitHub.ResolveDefaultBranch {
		app.client = gh.NewClient(settings.GitHub.Token)
		if cfg.Verbose {
			app.client.SetInfoBuffer(cfg.InfoBuffer)
		}
	}
	return app, nil
}

func (a *App) printDebug(format string, args ...interface{}) {
	if a.config.Verbose {
		a.outputMu.Lock()
		defer a.outputMu.Unlock()
		_, _ = fmt.Fprintf(a.config.InfoBuffer, format, args...)
	}
}

func (a *App) printWarn(format string, args ...interface{}) {
	a.outputMu.Lock()
	defer a.outputMu.Unlock()
	_, _ = fmt.Fprintf(a.config.WarningBuffer, format, args...)
}

// Run executes the application logic
func (a *App) Run(ctx context.Context) (*Result, error) {
	out, err := os.Create(a.config.OutputFile)
	if err != nil {
		return nil, fmt.Errorf("CreateOutput Error: %v", err)
	}
	defer func() {
		_ = out.Close()
	}()
	buffered := bufio.NewWriter(out)
	writer := report.NewWriter(buffered)
	if err := writer.WriteHeader(a.settings.Project, a.config.Title); err != nil {
		return nil, fmt.Errorf("WriteHeader Error: %v", err)
	}

	packages, err := workspace.Discover(a.config.SourcePath, workspace.Options{
		SkipMarkers: a.settings.SkipMarkers,
		Ignore:      a.settings.Ignore,
	}, &lockedWriter{mu: &a.outputMu, w: a.config.WarningBuffer})
	if err != nil {
		return nil, fmt.Errorf("Discover Error: %v", err)
	}
	a.printDebug("Found %d packages under %s\n", len(packages), a.config.SourcePath)

	missing := make([]string, 0)
	candidates := make([]candidate, 0, len(packages))
	for _, pkg := range packages {
		if _, err := os.Stat(filepath.Join(pkg.Dir, a.settings.ChangelogFile)); err != nil {
			a.printDebug("%s has no %s\n", pkg.Name, a.settings.ChangelogFile)
			missing = append(missing, pkg.Name)
			continue
		}
		repo, err := a.openRepo(ctx, pkg.Dir)
		if err != nil {
			a.printWarn("WARNING: %s is not in a git repository: %v\n", pkg.Name, err)
			missing = append(missing, pkg.Name)
			continue
		}
		candidates = append(candidates, candidate{pkg: pkg, repo: repo})
	}

	roots, byRoot := f.GroupBy(candidates, func(c candidate) string { return c.repo.Root() })
	histories := make(map[string]*repoHistory, len(roots))
	pending := make([]candidate, 0, len(candidates))
	for _, root := range roots {
		group := byRoot[root]
		history, err := a.resolveHistory(ctx, group[0].repo)
		if err != nil {
			a.printWarn("WARNING: skipping repository %s: %v\n", root, err)
			missing = append(missing, f.Map(group, func(c candidate) string { return c.pkg.Name })...)
			continue
		}
		a.printDebug("%s: previous release %s\n", root, history.oldVersion)
		histories[root] = history
		pending = append(pending, group...)
	}
	// Grouping reorders packages across repositories.
	slices.SortStableFunc(pending, func(x, y candidate) int {
		return strings.Compare(x.pkg.Name, y.pkg.Name)
	})

	changelogs := make([]*changelog.Changelog, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.config.Jobs)
	for i, c := range pending {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			history := histories[c.repo.Root()]
			additions, err := c.repo.ChangelogAdditions(c.pkg.Dir, history.oldVersion, a.settings.ChangelogFile)
			if err != nil {
				a.printWarn("WARNING: %s: %v\n", c.pkg.Name, err)
				return nil
			}
			if cl, ok := changelog.Reconstruct(additions, history.oldVersion); ok {
				changelogs[i] = cl
			} else {
				a.printDebug("%s has no changes since %s\n", c.pkg.Name, history.oldVersion)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &Result{Sections: make([]report.Section, 0, len(pending))}
	contributorSets := make([][]string, 0, len(pending))
	for i, c := range pending {
		cl := changelogs[i]
		if cl == nil {
			missing = append(missing, c.pkg.Name)
			continue
		}
		history := histories[c.repo.Root()]
		section := report.Section{
			Name:      c.pkg.Name,
			URL:       report.PackageURL(history.origin, history.branch, c.repo.Root(), c.pkg.Dir, a.settings.ChangelogFile),
			Changelog: cl,
		}
		if err := writer.WritePackage(section); err != nil {
			return nil, fmt.Errorf("WritePackage Error: %v", err)
		}
		result.Sections = append(result.Sections, section)
		contributorSets = append(contributorSets, cl.Contributors)
	}
	if err := buffered.Flush(); err != nil {
		return nil, fmt.Errorf("WriteOutput Error: %v", err)
	}

	slices.Sort(missing)
	result.Missing = missing
	result.Contributors = changelog.AggregateContributors(contributorSets...)
	return result, nil
}

func (a *App) resolveHistory(ctx context.Context, repo git.Repo) (*repoHistory, error) {
	commit, err := repo.LastCommitBefore(a.config.Since)
	if err != nil {
		return nil, err
	}
	oldVersion, err := repo.TagAt(commit)
	if err != nil {
		return nil, err
	}
	history := &repoHistory{
		oldVersion: oldVersion,
		origin:     repo.OriginURL(),
		branch:     repo.CurrentBranch(),
	}
	if history.branch == "" && history.origin != "" {
		history.branch = a.defaultBranch(ctx, history.origin)
	}
	return history, nil
}

// defaultBranch asks GitHub for the branch to link to when the checkout is detached.
func (a *App) defaultBranch(ctx context.Context, origin string) string {
	if a.client == nil {
		return ""
	}
	owner, name, ok := gh.ParseRemote(origin)
	if !ok {
		return ""
	}
	branch, err := a.client.DefaultBranch(ctx, owner, name)
	if err != nil {
		a.printWarn("WARNING: could not resolve default branch of %s/%s: %v\n", owner, name, err)
		return ""
	}
	return branch
}

// lockedWriter serializes writes shared with the package workers.
type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (lw *lockedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.Write(p)
}
