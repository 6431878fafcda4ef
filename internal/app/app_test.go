package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/ros-tooling/changelog-collator/internal/config"
	"github.com/ros-tooling/changelog-collator/internal/git"
)

type mockRepo struct {
	root       string
	origin     string
	branch     string
	commit     string
	tag        string
	historyErr error
	diffs      map[string]string
	diffErrs   map[string]error
}

func (m *mockRepo) Root() string          { return m.root }
func (m *mockRepo) OriginURL() string     { return m.origin }
func (m *mockRepo) CurrentBranch() string { return m.branch }

func (m *mockRepo) LastCommitBefore(since string) (string, error) {
	if m.historyErr != nil {
		return "", m.historyErr
	}
	return m.commit, nil
}

func (m *mockRepo) TagAt(commit string) (string, error) {
	if commit != m.commit {
		return "", fmt.Errorf("unexpected commit %s", commit)
	}
	return m.tag, nil
}

func (m *mockRepo) ChangelogAdditions(dir string, oldVersion string, file string) (string, error) {
	if oldVersion != m.tag {
		return "", fmt.Errorf("unexpected old version %s", oldVersion)
	}
	if err, ok := m.diffErrs[filepath.Base(dir)]; ok {
		return "", err
	}
	return m.diffs[filepath.Base(dir)], nil
}

type mockGHClient struct {
	branches map[string]string
	requests []string
}

func (m *mockGHClient) SetInfoBuffer(writer io.Writer) {}

func (m *mockGHClient) DefaultBranch(ctx context.Context, owner, repo string) (string, error) {
	m.requests = append(m.requests, owner+"/"+repo)
	branch, ok := m.branches[owner+"/"+repo]
	if !ok {
		return "", fmt.Errorf("no such repository")
	}
	return branch, nil
}

func writePackage(t *testing.T, dir string, name string, withChangelog bool) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	manifest := "<package format=\"3\"><name>" + name + "</name></package>"
	if err := os.WriteFile(filepath.Join(dir, "package.xml"), []byte(manifest), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if withChangelog {
		if err := os.WriteFile(filepath.Join(dir, "CHANGELOG.rst"), []byte("Changelog\n"), 0o644); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
}

func newTestApp(t *testing.T, ws string, repos []*mockRepo) (*App, *bytes.Buffer, string) {
	t.Helper()
	warn := &bytes.Buffer{}
	output := filepath.Join(t.TempDir(), "changelog.rst")
	app, err := New(Config{
		SourcePath:    ws,
		Since:         "2024-05-01",
		Title:         "Jazzy",
		OutputFile:    output,
		Jobs:          2,
		Settings:      config.Default(),
		WarningBuffer: warn,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	app.openRepo = func(ctx context.Context, path string) (git.Repo, error) {
		for _, repo := range repos {
			if path == repo.root || strings.HasPrefix(path, repo.root+string(filepath.Separator)) {
				return repo, nil
			}
		}
		return nil, fmt.Errorf("repository does not exist")
	}
	return app, warn, output
}

func lines(ls ...string) string {
	return strings.Join(ls, "\n")
}

func caretHeader(header string) string {
	rule := strings.Repeat("^", len(header))
	return rule + "\n" + header + "\n" + rule + "\n\n"
}

const pageHeader = "ROS 2 Jazzy Complete Changelog\n" +
	"==============================\n\n" +
	"This page is a list of the complete changes in all ROS 2 core packages since the previous release.\n\n" +
	".. contents:: Table of Contents\n" +
	"   :local:\n\n"

func TestRun(t *testing.T) {
	ws := t.TempDir()
	writePackage(t, filepath.Join(ws, "rclcpp", "rclcpp"), "rclcpp", true)
	writePackage(t, filepath.Join(ws, "rclcpp", "rclcpp_action"), "rclcpp_action", true)
	writePackage(t, filepath.Join(ws, "rcl", "rcl"), "rcl", true)
	writePackage(t, filepath.Join(ws, "rcutils"), "rcutils", false)
	writePackage(t, filepath.Join(ws, "orphan"), "orphan", true)

	rclcpp := &mockRepo{
		root:   filepath.Join(ws, "rclcpp"),
		origin: "https://github.com/ros2/rclcpp.git",
		branch: "rolling",
		commit: "abc123",
		tag:    "16.0.0",
		diffs: map[string]string{
			"rclcpp": lines(
				" Forthcoming",
				" -----------",
				" * Add `Foo` api",
				" * Contributors: Bob, Alice",
				"",
				" 16.0.0 (2022-04-20)",
				" * old",
			),
			"rclcpp_action": lines(" 16.0.0 (2022-04-20)", " * old"),
		},
	}
	rcl := &mockRepo{
		root:       filepath.Join(ws, "rcl"),
		historyErr: git.ErrNoCommit,
	}

	app, warn, output := newTestApp(t, ws, []*mockRepo{rclcpp, rcl})
	result, err := app.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Sections) != 1 || result.Sections[0].Name != "rclcpp" {
		t.Fatalf("expected only rclcpp section, got %+v", result.Sections)
	}
	expectedMissing := []string{"orphan", "rcl", "rclcpp_action", "rcutils"}
	if !reflect.DeepEqual(result.Missing, expectedMissing) {
		t.Errorf("expected missing %v, got %v", expectedMissing, result.Missing)
	}
	if !reflect.DeepEqual(result.Contributors, []string{"Alice", "Bob"}) {
		t.Errorf("expected contributors [Alice Bob], got %v", result.Contributors)
	}

	content, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := pageHeader +
		caretHeader("`rclcpp <https://github.com/ros2/rclcpp/tree/rolling/rclcpp/CHANGELOG.rst>`__") +
		"* Add ``Foo`` api\n* Contributors: Alice, Bob\n\n\n"
	if string(content) != expected {
		t.Errorf("expected report\n%q\ngot\n%q", expected, string(content))
	}

	for _, want := range []string{"orphan is not in a git repository", "skipping repository"} {
		if !strings.Contains(warn.String(), want) {
			t.Errorf("expected warning containing %q, got %q", want, warn.String())
		}
	}
}

func TestRunOrdersSectionsAcrossRepositories(t *testing.T) {
	ws := t.TempDir()
	writePackage(t, filepath.Join(ws, "first", "b_pkg"), "b_pkg", true)
	writePackage(t, filepath.Join(ws, "second", "a_pkg"), "a_pkg", true)
	writePackage(t, filepath.Join(ws, "second", "c_pkg"), "c_pkg", true)

	first := &mockRepo{
		root: filepath.Join(ws, "first"), commit: "1", tag: "1.0.0",
		diffs: map[string]string{"b_pkg": " * b change"},
	}
	second := &mockRepo{
		root: filepath.Join(ws, "second"), commit: "2", tag: "2.0.0",
		diffs: map[string]string{
			"a_pkg": " * a change",
			"c_pkg": " * c change",
		},
	}

	app, _, output := newTestApp(t, ws, []*mockRepo{first, second})
	result, err := app.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	names := make([]string, 0, len(result.Sections))
	for _, section := range result.Sections {
		names = append(names, section.Name)
		if section.URL != "" {
			t.Errorf("expected no link without origin, got %s", section.URL)
		}
	}
	if !reflect.DeepEqual(names, []string{"a_pkg", "b_pkg", "c_pkg"}) {
		t.Errorf("expected name order, got %v", names)
	}
	if len(result.Missing) != 0 || len(result.Contributors) != 0 {
		t.Errorf("expected nothing missing and no contributors, got %v, %v", result.Missing, result.Contributors)
	}

	content, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := pageHeader +
		caretHeader("a_pkg") + "* a change\n\n\n" +
		caretHeader("b_pkg") + "* b change\n\n\n" +
		caretHeader("c_pkg") + "* c change\n\n\n"
	if string(content) != expected {
		t.Errorf("expected report\n%q\ngot\n%q", expected, string(content))
	}
}

func TestRunDiffFailureMarksMissing(t *testing.T) {
	ws := t.TempDir()
	writePackage(t, filepath.Join(ws, "repo", "good"), "good", true)
	writePackage(t, filepath.Join(ws, "repo", "bad"), "bad", true)

	repo := &mockRepo{
		root: filepath.Join(ws, "repo"), commit: "1", tag: "1.0.0",
		diffs:    map[string]string{"good": " * fine"},
		diffErrs: map[string]error{"bad": fmt.Errorf("Diff Error: boom")},
	}

	app, warn, _ := newTestApp(t, ws, []*mockRepo{repo})
	result, err := app.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(result.Missing, []string{"bad"}) {
		t.Errorf("expected bad to be missing, got %v", result.Missing)
	}
	if !strings.Contains(warn.String(), "bad: Diff Error: boom") {
		t.Errorf("expected diff warning, got %q", warn.String())
	}
}

func TestRunResolvesDefaultBranchForDetachedHead(t *testing.T) {
	ws := t.TempDir()
	writePackage(t, filepath.Join(ws, "rmw"), "rmw", true)
	writePackage(t, filepath.Join(ws, "other"), "other", true)

	rmw := &mockRepo{
		root: filepath.Join(ws, "rmw"), origin: "git@github.com:ros2/rmw.git",
		commit: "1", tag: "7.0.0",
		diffs: map[string]string{"rmw": " * change"},
	}
	other := &mockRepo{
		root: filepath.Join(ws, "other"), origin: "https://github.com/ros2/other",
		commit: "2", tag: "1.0.0",
		diffs: map[string]string{"other": " * change"},
	}

	app, warn, _ := newTestApp(t, ws, []*mockRepo{rmw, other})
	client := &mockGHClient{branches: map[string]string{"ros2/rmw": "rolling"}}
	app.client = client

	result, err := app.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	urls := map[string]string{}
	for _, section := range result.Sections {
		urls[section.Name] = section.URL
	}
	if urls["rmw"] != "https://github.com/ros2/rmw/tree/rolling/CHANGELOG.rst" {
		t.Errorf("unexpected rmw url %s", urls["rmw"])
	}
	if urls["other"] != "https://github.com/ros2/other/tree/CHANGELOG.rst" {
		t.Errorf("unexpected other url %s", urls["other"])
	}
	if !reflect.DeepEqual(client.requests, []string{"ros2/other", "ros2/rmw"}) {
		t.Errorf("unexpected requests %v", client.requests)
	}
	if !strings.Contains(warn.String(), "could not resolve default branch of ros2/other") {
		t.Errorf("expected resolution warning, got %q", warn.String())
	}
}

func TestRunCanceled(t *testing.T) {
	ws := t.TempDir()
	writePackage(t, filepath.Join(ws, "repo", "pkg"), "pkg", true)
	repo := &mockRepo{root: filepath.Join(ws, "repo"), commit: "1", tag: "1.0.0"}

	app, _, _ := newTestApp(t, ws, []*mockRepo{repo})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := app.Run(ctx); err == nil {
		t.Error("expected error for canceled context")
	}
}

func TestNew(t *testing.T) {
	tt := []struct {
		name        string
		config      Config
		expectedErr bool
	}{
		{name: "valid", config: Config{SourcePath: "src", Since: "2024-01-01", OutputFile: "out.rst"}},
		{name: "missing source", config: Config{Since: "2024-01-01", OutputFile: "out.rst"}, expectedErr: true},
		{name: "missing since", config: Config{SourcePath: "src", OutputFile: "out.rst"}, expectedErr: true},
		{name: "missing output", config: Config{SourcePath: "src", Since: "2024-01-01"}, expectedErr: true},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			app, err := New(tc.config)
			if tc.expectedErr {
				if err == nil {
					t.Error("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if app.config.Jobs != 4 {
				t.Errorf("expected jobs from default settings, got %d", app.config.Jobs)
			}
			if app.client != nil {
				t.Error("expected no GitHub client by default")
			}
		})
	}
}

func TestNewWithDefaultBranchResolution(t *testing.T) {
	settings := config.Default()
	settings.GitHub.ResolveDefaultBranch = true
	app, err := New(Config{SourcePath: "src", Since: "2024-01-01", OutputFile: "out.rst", Jobs: 1, Settings: settings})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if app.client == nil {
		t.Error("expected GitHub client when resolution is enabled")
	}
	if app.config.Jobs != 1 {
		t.Errorf("expected explicit jobs to win, got %d", app.config.Jobs)
	}
}
