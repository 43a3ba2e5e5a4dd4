// Package config implements the connection configuration resolver
// (component I, spec.md §4.I): a deterministic precedence ladder over
// explicit arguments, a process-wide config store, environment
// variables, and on-disk project/instance state, producing one
// canonical Endpoint record for the connection state machine to dial.
package config

import (
	"time"

	verrors "github.com/ha1tch/veloq-go/pkg/errors"
)

// TLSSecurity is the derived TLS verification mode (spec.md §3).
type TLSSecurity string

const (
	TLSStrict             TLSSecurity = "strict"
	TLSNoHostVerification TLSSecurity = "no_host_verification"
	TLSInsecure           TLSSecurity = "insecure"
)

// ALPNProtocol is the fixed ALPN identifier this driver negotiates.
const ALPNProtocol = "edgedb-binary"

// DefaultPort is used when a level supplies a host without a port.
const DefaultPort = 5656

// DefaultConnectTimeout bounds the initial TCP+TLS dial when the caller
// supplies none.
const DefaultConnectTimeout = 10 * time.Second

// HostPort is one endpoint candidate, tried in order.
type HostPort struct {
	Host string
	Port int
}

// Credentials mirrors the credentials-file JSON schema (spec.md §6).
type Credentials struct {
	Host        string            `json:"host"`
	Port        int               `json:"port"`
	User        string            `json:"user"`
	Password    string            `json:"password"`
	Database    string            `json:"database"`
	Branch      string            `json:"branch"`
	TLSCA       string            `json:"tls_ca"`
	TLSSecurity string            `json:"tls_security"`
}

// Endpoint is the canonical, fully-resolved connect record the state
// machine consumes (spec.md §3).
type Endpoint struct {
	Addrs              []HostPort
	User               string
	Password           string
	Database           string
	Branch             string
	TLSCA              []byte
	TLSSecurity        TLSSecurity
	TLSServerName      string
	ALPN               string
	ConnectTimeout     time.Duration
	ServerSettings     map[string]string
}

// Options is one layer's worth of connect parameters. Every field is
// a pointer (or has an explicit IsSet flag via a nil check) so the
// resolver can tell "unset" apart from "set to the zero value."
type Options struct {
	DSN             *string
	InstanceName    *string
	Credentials     *Credentials
	CredentialsFile *string
	Host            *string
	Port            *int

	User     *string
	Password *string
	Database *string
	Branch   *string

	TLSCA         *string
	TLSCAFile     *string
	TLSSecurity   *string
	TLSServerName *string

	ClientSecurity   *string // EDGEDB_CLIENT_SECURITY / explicit equivalent
	InsecureDevMode  *bool
	SecretKey        *string
	CloudProfile     *string

	ConnectTimeout *time.Duration
	ServerSettings map[string]string
}

// compoundField names the five mutually-exclusive parameter groups of
// spec.md §4.I and §GLOSSARY.
type compoundField string

const (
	compoundDSN         compoundField = "dsn"
	compoundInstance    compoundField = "instance_name"
	compoundCredentials compoundField = "credentials"
	compoundCredFile    compoundField = "credentials_file"
	compoundHostPort    compoundField = "host_or_port"
)

func (o Options) compoundFieldsPresent() []compoundField {
	var present []compoundField
	if o.DSN != nil {
		present = append(present, compoundDSN)
	}
	if o.InstanceName != nil {
		present = append(present, compoundInstance)
	}
	if o.Credentials != nil {
		present = append(present, compoundCredentials)
	}
	if o.CredentialsFile != nil {
		present = append(present, compoundCredFile)
	}
	if o.Host != nil || o.Port != nil {
		present = append(present, compoundHostPort)
	}
	return present
}

// validateCompound enforces "at most one compound parameter per level"
// (spec.md §4.I).
func (o Options) validateCompound() error {
	present := o.compoundFieldsPresent()
	if len(present) > 1 {
		return verrors.ConnectionFailed("more than one compound connection parameter provided at the same level").
			WithField("parameters", present).Err()
	}
	return nil
}
