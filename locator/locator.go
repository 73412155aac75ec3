// Package locator finds the vendor Widevine CDM shared library on disk
// (spec.md §4.1, §6). It is documented in spec.md §1 as a pluggable,
// out-of-scope collaborator, but spec.md §4.1/§6/§8 fully specify its
// scanning algorithm and testable properties, so this package ships a
// real default implementation behind the Locator interface a caller may
// override.
//
// Grounded on original_source/src/search.c's walk_firefox/walk_chromium
// traversal, reworked from GLib's GFileEnumerator/GCancellable idioms to
// os.ReadDir and context.Context.
package locator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
)

// Locator finds the absolute path to the vendor CDM shared library.
// Implementations may search the filesystem, consult an environment
// variable, or both.
type Locator interface {
	// Locate returns the absolute path to the CDM library, or ok=false
	// if none was found. err reports any I/O errors encountered along
	// the way that did not themselves prevent finding a match elsewhere.
	Locate(ctx context.Context) (path string, ok bool, err error)
}

// blobName returns the platform-appropriate CDM shared library file
// name.
func blobName() string {
	if runtime.GOOS == "darwin" {
		return "libwidevinecdm.dylib"
	}
	return "libwidevinecdm.so"
}

// EnvOverrideVar is the environment variable that, when set to an
// existing file path, bypasses filesystem discovery entirely (spec.md
// §6).
const EnvOverrideVar = "WIDEVINE_CDM_BLOB"

// EnvOverride returns the path named by WIDEVINE_CDM_BLOB if it is set
// and the file exists.
func EnvOverride() (string, bool) {
	path := os.Getenv(EnvOverrideVar)
	if path == "" {
		return "", false
	}
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return "", false
	}
	return path, true
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func readDirSorted(dir string) ([]os.DirEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	return entries, nil
}

// MozillaTree searches a Firefox-style gmp-widevinecdm install tree
// rooted at root, descending depth-first into subdirectories only, at
// most two levels deep. When a directory named exactly "gmp-widevinecdm"
// is found, its immediate children are checked for one that itself
// contains the CDM blob.
func MozillaTree(ctx context.Context, root string) (string, error) {
	hit, errs := walkMozilla(ctx, root, 0, 2)
	return hit, errors.Join(errs...)
}

func walkMozilla(ctx context.Context, dir string, depth, maxDepth int) (string, []error) {
	if depth >= maxDepth {
		return "", nil
	}
	entries, err := readDirSorted(dir)
	if err != nil {
		return "", []error{err}
	}

	var errs []error
	for _, e := range entries {
		if ctx.Err() != nil {
			return "", errs
		}
		if !e.IsDir() {
			continue
		}
		child := filepath.Join(dir, e.Name())
		if e.Name() == "gmp-widevinecdm" {
			if hit, ok := mozillaBlobInVersionDirs(ctx, child); ok {
				return hit, errs
			}
		}
		sub, serrs := walkMozilla(ctx, child, depth+1, maxDepth)
		errs = append(errs, serrs...)
		if sub != "" {
			return sub, errs
		}
	}
	return "", errs
}

func mozillaBlobInVersionDirs(ctx context.Context, gmpDir string) (string, bool) {
	entries, err := readDirSorted(gmpDir)
	if err != nil {
		return "", false
	}
	name := blobName()
	for _, e := range entries {
		if ctx.Err() != nil {
			return "", false
		}
		if !e.IsDir() {
			continue
		}
		candidate := filepath.Join(gmpDir, e.Name(), name)
		if fileExists(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// ChromiumTree searches a Chromium-style WidevineCdm install tree
// rooted at root. It descends to unbounded depth but prunes: once a
// directory named exactly "WidevineCdm" is found, its version-named
// children are enumerated, and inside each, the _platform_specific
// directory's children (platform directories) are checked for the CDM
// blob.
func ChromiumTree(ctx context.Context, root string) (string, error) {
	hit, errs := walkChromium(ctx, root)
	return hit, errors.Join(errs...)
}

func walkChromium(ctx context.Context, dir string) (string, []error) {
	entries, err := readDirSorted(dir)
	if err != nil {
		return "", []error{err}
	}

	var errs []error
	for _, e := range entries {
		if ctx.Err() != nil {
			return "", errs
		}
		if !e.IsDir() {
			continue
		}
		child := filepath.Join(dir, e.Name())
		if e.Name() == "WidevineCdm" {
			if hit, ok := chromiumBlobInVersionDirs(ctx, child); ok {
				return hit, errs
			}
			// Pruned: a directory named WidevineCdm is never itself
			// the root of a further nested WidevineCdm search.
			continue
		}
		sub, serrs := walkChromium(ctx, child)
		errs = append(errs, serrs...)
		if sub != "" {
			return sub, errs
		}
	}
	return "", errs
}

func chromiumBlobInVersionDirs(ctx context.Context, widevineDir string) (string, bool) {
	versions, err := readDirSorted(widevineDir)
	if err != nil {
		return "", false
	}
	name := blobName()
	for _, v := range versions {
		if ctx.Err() != nil {
			return "", false
		}
		if !v.IsDir() {
			continue
		}
		platformSpecific := filepath.Join(widevineDir, v.Name(), "_platform_specific")
		platforms, err := readDirSorted(platformSpecific)
		if err != nil {
			continue
		}
		for _, p := range platforms {
			if ctx.Err() != nil {
				return "", false
			}
			if !p.IsDir() {
				continue
			}
			candidate := filepath.Join(platformSpecific, p.Name(), name)
			if fileExists(candidate) {
				return candidate, true
			}
		}
	}
	return "", false
}

var semverPattern = regexp.MustCompile(`^\d+\.\d+\.\d+\.\d+$`)

// MacChromeFrameworkPath returns the Widevine CDM shipped inside a
// locally installed Google Chrome.app, per spec.md §6: the
// lexicographically greatest \d+.\d+.\d+.\d+ version directory under
// the Chrome Framework's Versions directory is chosen.
func MacChromeFrameworkPath() (string, bool) {
	const base = "/Applications/Google Chrome.app/Contents/Frameworks/Google Chrome Framework.framework/Versions"
	entries, err := os.ReadDir(base)
	if err != nil {
		return "", false
	}
	var best string
	for _, e := range entries {
		if !e.IsDir() || !semverPattern.MatchString(e.Name()) {
			continue
		}
		if best == "" || e.Name() > best {
			best = e.Name()
		}
	}
	if best == "" {
		return "", false
	}
	arch := "mac_x64"
	if runtime.GOARCH == "arm64" {
		arch = "mac_arm64"
	}
	candidate := filepath.Join(base, best, "Libraries", "WidevineCdm", "_platform_specific", arch, "libwidevinecdm.dylib")
	if fileExists(candidate) {
		return candidate, true
	}
	return "", false
}

func linuxHardcodedFallbacks() []string {
	return []string{
		"/opt/google/chrome/WidevineCdm/_platform_specific/linux_x64/libwidevinecdm.so",
		"/usr/lib/chromium/WidevineCdm/_platform_specific/linux_x64/libwidevinecdm.so",
	}
}

func firefoxDir() string {
	home, _ := os.UserHomeDir()
	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Application Support", "Firefox")
	}
	return filepath.Join(home, ".mozilla", "firefox")
}

func chromiumDir() (string, bool) {
	if runtime.GOOS == "darwin" {
		home, _ := os.UserHomeDir()
		preferred := filepath.Join(home, "Library", "Application Support", "Google", "Chrome")
		if info, err := os.Stat(preferred); err == nil && info.IsDir() {
			return preferred, true
		}
		return filepath.Join(home, "Library", "Application Support", "Chromium"), true
	}
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, _ := os.UserHomeDir()
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "chromium"), true
}

// Default is the Locator implementing the documented search order: the
// WIDEVINE_CDM_BLOB override first, then the platform's default install
// trees and hardcoded fallbacks.
type Default struct{}

// Locate implements Locator using the env var override, then the
// platform-specific default search trees and hardcoded fallbacks
// documented in spec.md §6.
func (Default) Locate(ctx context.Context) (string, bool, error) {
	if path, ok := EnvOverride(); ok {
		return path, true, nil
	}

	var errs []error
	if runtime.GOOS == "darwin" {
		if path, ok := MacChromeFrameworkPath(); ok {
			return path, true, nil
		}
		if path, err := MozillaTree(ctx, firefoxDir()); path != "" {
			return path, true, err
		} else if err != nil {
			errs = append(errs, err)
		}
		if dir, _ := chromiumDir(); dir != "" {
			if path, err := ChromiumTree(ctx, dir); path != "" {
				return path, true, errors.Join(append(errs, err)...)
			} else if err != nil {
				errs = append(errs, err)
			}
		}
		return "", false, errors.Join(errs...)
	}

	for _, candidate := range linuxHardcodedFallbacks() {
		if fileExists(candidate) {
			return candidate, true, nil
		}
	}
	if path, err := MozillaTree(ctx, firefoxDir()); path != "" {
		return path, true, err
	} else if err != nil {
		errs = append(errs, err)
	}
	if dir, _ := chromiumDir(); dir != "" {
		if path, err := ChromiumTree(ctx, dir); path != "" {
			return path, true, errors.Join(append(errs, err)...)
		} else if err != nil {
			errs = append(errs, err)
		}
	}
	return "", false, errors.Join(errs...)
}
