package config

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	verrors "github.com/ha1tch/veloq-go/pkg/errors"
)

// ProjectMarkerFile is the file whose presence marks a project root.
const ProjectMarkerFile = "edgedb.toml"

func deviceID(path string) (uint64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, fmt.Errorf("config: cannot determine device id for %s", path)
	}
	return uint64(st.Dev), nil
}

// findProjectRoot walks upward from startDir looking for edgedb.toml,
// stopping at the first filesystem-device boundary (spec.md §4.I,
// testable property 18).
func findProjectRoot(startDir string) (string, bool, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, err
	}
	dev, err := deviceID(dir)
	if err != nil {
		return "", false, err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, ProjectMarkerFile)); err == nil {
			return dir, true, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false, nil // reached filesystem root
		}
		parentDev, err := deviceID(parent)
		if err != nil {
			return "", false, nil
		}
		if parentDev != dev {
			return "", false, nil // crossed a device boundary
		}
		dir = parent
		dev = parentDev
	}
}

// stashHash is this driver's canonical path digest for a project root,
// used to name its stash directory (spec.md §6: "the hash is a
// canonical path digest — callers produce it").
func stashHash(projectRoot string) string {
	norm := strings.ToLower(filepath.Clean(projectRoot))
	sum := sha1.Sum([]byte(norm))
	return hex.EncodeToString(sum[:])
}

func platformConfigRoot() (string, error) {
	return os.UserConfigDir()
}

func stashDir(projectRoot string) (string, error) {
	base, err := platformConfigRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "edgedb", "projects", stashHash(projectRoot)), nil
}

func readStashFile(dir, name string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}

// projectOptions implements spec.md §4.I level 4: project discovery.
// It returns (Options{}, false, nil) when no project is found (the
// ladder simply continues to the next level — there is no level
// below this one, so the caller treats that as "no compound
// parameter"). If a project root IS found but its stash directory is
// missing, that is the fatal "project not initialized" condition.
func projectOptions(cwd string) (Options, bool, error) {
	root, found, err := findProjectRoot(cwd)
	if err != nil {
		return Options{}, false, err
	}
	if !found {
		return Options{}, false, nil
	}

	dir, err := stashDir(root)
	if err != nil {
		return Options{}, false, err
	}
	instanceName, ok := readStashFile(dir, "instance-name")
	if !ok {
		return Options{}, false, verrors.ConnectionFailed(
			fmt.Sprintf("found %s at %s but project is not initialized (missing stash %s)", ProjectMarkerFile, root, dir)).Err()
	}

	o := Options{InstanceName: &instanceName}
	if v, ok := readStashFile(dir, "cloud-profile"); ok {
		o.CloudProfile = &v
	}
	if v, ok := readStashFile(dir, "database"); ok {
		o.Database = &v
	}
	if v, ok := readStashFile(dir, "branch"); ok {
		o.Branch = &v
	}
	return o, true, nil
}
