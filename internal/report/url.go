package report

import (
	"fmt"
	"path/filepath"
	"strings"
)

// PackageURL links to file inside the package directory on the hosting
// service. It returns "" when origin is empty or hosted somewhere unknown.
func PackageURL(origin, branch, repoRoot, pkgDir, file string) string {
	if origin == "" {
		return ""
	}
	origin = strings.TrimSuffix(origin, ".git")

	urlPath := "/"
	if rel, err := filepath.Rel(repoRoot, pkgDir); err == nil && rel != "." {
		urlPath = "/" + filepath.ToSlash(rel)
	}

	switch {
	case strings.HasPrefix(origin, "https://github.com"):
		return origin + removeDuplicateSlashes(fmt.Sprintf("/tree/%s/%s/%s", branch, urlPath, file))
	case strings.HasPrefix(origin, "git@github.com:"):
		orgRepo := strings.TrimPrefix(origin, "git@github.com:")
		return "https://github.com/" + orgRepo + removeDuplicateSlashes(fmt.Sprintf("/tree/%s/%s/%s", branch, urlPath, file))
	case strings.HasPrefix(origin, "https://gitlab.com"):
		return origin + removeDuplicateSlashes(fmt.Sprintf("/-/blob/%s/%s/%s", branch, urlPath, file))
	}
	return ""
}

func removeDuplicateSlashes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	var last rune
	for _, c := range s {
		if c != '/' || last != '/' {
			b.WriteRune(c)
		}
		last = c
	}
	return b.String()
}
