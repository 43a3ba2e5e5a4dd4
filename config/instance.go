package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	verrors "github.com/ha1tch/veloq-go/pkg/errors"
)

var (
	localInstanceRe = regexp.MustCompile(`^\w(?:-?\w)*$`)
	cloudInstanceRe = regexp.MustCompile(`^[\w-]+/[\w-]+$`)
)

// IsLocalInstanceName reports whether name matches the local-instance
// grammar of spec.md §4.I.
func IsLocalInstanceName(name string) bool { return localInstanceRe.MatchString(name) }

// IsCloudInstanceName reports whether name matches the `org/name` cloud
// instance grammar of spec.md §4.I.
func IsCloudInstanceName(name string) bool { return cloudInstanceRe.MatchString(name) }

// credentialsDir returns the platform-dependent directory holding
// per-instance credential files.
func credentialsDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "edgedb", "credentials"), nil
}

// resolveInstanceName turns an instance name (local or cloud) into an
// Options layer with host/port/credentials populated.
func resolveInstanceName(name string, cloudProfile *string) (Options, error) {
	switch {
	case IsCloudInstanceName(name):
		return resolveCloudInstance(name, cloudProfile)
	case IsLocalInstanceName(name):
		return resolveLocalInstance(name)
	default:
		return Options{}, verrors.ConnectionFailed(fmt.Sprintf("%q is not a valid local or cloud instance name", name)).Err()
	}
}

func resolveLocalInstance(name string) (Options, error) {
	dir, err := credentialsDir()
	if err != nil {
		return Options{}, verrors.ConnectionFailed(fmt.Sprintf("resolving credentials directory: %v", err)).Err()
	}
	path := filepath.Join(dir, name+".json")
	return readCredentialsFile(path)
}

// resolveCloudInstance resolves an org/name cloud instance via the
// named cloud profile to an endpoint + secret-key pair. Actual
// cloud-control-plane resolution is an external collaborator this
// driver does not implement; the hook is here so the ladder's shape is
// complete end to end.
func resolveCloudInstance(name string, cloudProfile *string) (Options, error) {
	return Options{}, verrors.NotImplemented("cloud instance resolution (" + name + ")").Err()
}

// readCredentialsFile reads and parses the JSON credentials file format
// of spec.md §6.
func readCredentialsFile(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, verrors.ConnectionFailed(fmt.Sprintf("reading credentials file %s: %v", path, err)).Err()
	}
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return Options{}, verrors.ConnectionFailed(fmt.Sprintf("parsing credentials file %s: %v", path, err)).Err()
	}
	return credentialsToOptions(creds), nil
}

func credentialsToOptions(c Credentials) Options {
	var o Options
	if c.Host != "" {
		o.Host = &c.Host
	}
	if c.Port != 0 {
		o.Port = &c.Port
	}
	if c.User != "" {
		o.User = &c.User
	}
	if c.Password != "" {
		o.Password = &c.Password
	}
	if c.Database != "" {
		o.Database = &c.Database
	}
	if c.Branch != "" {
		o.Branch = &c.Branch
	}
	if c.TLSCA != "" {
		o.TLSCA = &c.TLSCA
	}
	if c.TLSSecurity != "" {
		o.TLSSecurity = &c.TLSSecurity
	}
	return o
}
