package config

import (
	"fmt"
	"os"

	verrors "github.com/ha1tch/veloq-go/pkg/errors"
)

// Resolve builds the canonical Endpoint by walking the four-level
// precedence ladder of spec.md §4.I: explicit arguments, process-wide
// configuration, environment variables, project discovery. The first
// level (highest precedence) that supplies a compound parameter wins;
// that parameter is resolved into a base Options, then non-compound
// fields (user, password, database, branch, TLS knobs, timeout,
// server settings) from the winning level and every level above it are
// overlaid on top, higher precedence winning ties.
func Resolve(explicit Options) (*Endpoint, error) {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return resolveFrom(explicit, cwd)
}

// resolveFrom is Resolve with an explicit working directory, split out
// so project-discovery tests don't depend on the process cwd.
func resolveFrom(explicit Options, cwd string) (*Endpoint, error) {
	levels, err := buildLevels(explicit, cwd)
	if err != nil {
		return nil, err
	}

	winner := -1
	for i, lvl := range levels {
		if len(lvl.compoundFieldsPresent()) > 0 {
			winner = i
			break
		}
	}
	if winner == -1 {
		return nil, verrors.NoEndpoints().Err()
	}

	base, err := resolveCompound(levels[winner])
	if err != nil {
		return nil, err
	}

	merged := base
	for i := winner; i >= 0; i-- {
		merged = overlayNonCompound(merged, levels[i])
	}

	return finalize(merged)
}

// buildLevels assembles the four ladder levels in precedence order and
// validates each one's compound-parameter exclusivity and its
// database/branch exclusivity independently (spec.md §4.I: "at most
// one compound parameter per level"; "mutually exclusive when both
// come from the same level").
func buildLevels(explicit Options, cwd string) ([]Options, error) {
	proc, _ := currentProcessConfig()
	env := envOptions()
	proj, found, err := projectOptions(cwd)
	if err != nil {
		return nil, err
	}
	if !found {
		proj = Options{}
	}

	levels := []Options{explicit, proc, env, proj}
	for i, lvl := range levels {
		if err := lvl.validateCompound(); err != nil {
			return nil, err
		}
		normalized, err := normalizeDatabaseBranch(lvl)
		if err != nil {
			return nil, err
		}
		levels[i] = normalized
	}
	return levels, nil
}

// normalizeDatabaseBranch enforces and applies the database/branch
// fallback rule of spec.md §4.I for a single configuration level.
func normalizeDatabaseBranch(o Options) (Options, error) {
	switch {
	case o.Database != nil && o.Branch != nil:
		return o, verrors.ConnectionFailed("database and branch are mutually exclusive within a single configuration level").Err()
	case o.Database != nil:
		o.Branch = o.Database
	case o.Branch != nil:
		o.Database = o.Branch
	}
	return o, nil
}

// resolveCompound dereferences whichever compound parameter a level
// carries into a base Options layer.
func resolveCompound(o Options) (Options, error) {
	switch {
	case o.DSN != nil:
		if looksLikeDSN(*o.DSN) {
			return parseDSN(*o.DSN)
		}
		return resolveInstanceName(*o.DSN, o.CloudProfile)
	case o.InstanceName != nil:
		return resolveInstanceName(*o.InstanceName, o.CloudProfile)
	case o.Credentials != nil:
		return credentialsToOptions(*o.Credentials), nil
	case o.CredentialsFile != nil:
		return readCredentialsFile(*o.CredentialsFile)
	case o.Host != nil || o.Port != nil:
		return Options{Host: o.Host, Port: o.Port}, nil
	default:
		return Options{}, verrors.NoEndpoints().Err()
	}
}

// overlayNonCompound copies every non-compound field layer sets onto
// base, overwriting whatever base already carries.
func overlayNonCompound(base, layer Options) Options {
	if layer.User != nil {
		base.User = layer.User
	}
	if layer.Password != nil {
		base.Password = layer.Password
	}
	if layer.Database != nil {
		base.Database = layer.Database
	}
	if layer.Branch != nil {
		base.Branch = layer.Branch
	}
	if layer.TLSCA != nil {
		base.TLSCA = layer.TLSCA
	}
	if layer.TLSCAFile != nil {
		base.TLSCAFile = layer.TLSCAFile
	}
	if layer.TLSSecurity != nil {
		base.TLSSecurity = layer.TLSSecurity
	}
	if layer.TLSServerName != nil {
		base.TLSServerName = layer.TLSServerName
	}
	if layer.ClientSecurity != nil {
		base.ClientSecurity = layer.ClientSecurity
	}
	if layer.InsecureDevMode != nil {
		base.InsecureDevMode = layer.InsecureDevMode
	}
	if layer.SecretKey != nil {
		base.SecretKey = layer.SecretKey
	}
	if layer.ConnectTimeout != nil {
		base.ConnectTimeout = layer.ConnectTimeout
	}
	if len(layer.ServerSettings) > 0 {
		if base.ServerSettings == nil {
			base.ServerSettings = make(map[string]string, len(layer.ServerSettings))
		}
		for k, v := range layer.ServerSettings {
			base.ServerSettings[k] = v
		}
	}
	return base
}

// finalize applies defaults and the TLS security derivation rules of
// spec.md §4.I, producing the canonical Endpoint.
func finalize(merged Options) (*Endpoint, error) {
	// Unlike buildLevels's per-level check, merged has already been
	// through overlayNonCompound: every contributing level normalized its
	// own Database/Branch fallback independently, so an ordinary "only a
	// database supplied" level arrives here with both fields set and
	// equal. Only a genuine conflict - distinct values surviving the
	// merge - is an error; re-running the same-level exclusivity check
	// here would reject the common single-field case.
	if merged.Database != nil && merged.Branch != nil && *merged.Database != *merged.Branch {
		return nil, verrors.ConnectionFailed("database and branch are mutually exclusive").Err()
	}

	host := "localhost"
	if merged.Host != nil {
		host = *merged.Host
	}
	port := DefaultPort
	if merged.Port != nil {
		port = *merged.Port
	}

	user := "edgedb"
	if merged.User != nil {
		user = *merged.User
	}
	var password string
	if merged.Password != nil {
		password = *merged.Password
	}

	database := "edgedb"
	branch := "main"
	if merged.Database != nil {
		database = *merged.Database
		branch = *merged.Database
	}
	if merged.Branch != nil {
		branch = *merged.Branch
	}

	tlsSecurity, ca, err := resolveTLSSecurity(merged)
	if err != nil {
		return nil, err
	}

	serverName := host
	if merged.TLSServerName != nil {
		serverName = *merged.TLSServerName
	}

	timeout := DefaultConnectTimeout
	if merged.ConnectTimeout != nil {
		timeout = *merged.ConnectTimeout
	}

	return &Endpoint{
		Addrs:          []HostPort{{Host: host, Port: port}},
		User:           user,
		Password:       password,
		Database:       database,
		Branch:         branch,
		TLSCA:          ca,
		TLSSecurity:    tlsSecurity,
		TLSServerName:  serverName,
		ALPN:           ALPNProtocol,
		ConnectTimeout: timeout,
		ServerSettings: merged.ServerSettings,
	}, nil
}

// resolveTLSSecurity implements spec.md §4.I's derivation table
// (testable property 17).
func resolveTLSSecurity(o Options) (TLSSecurity, []byte, error) {
	var ca []byte
	switch {
	case o.TLSCA != nil:
		ca = []byte(*o.TLSCA)
	case o.TLSCAFile != nil:
		data, err := os.ReadFile(*o.TLSCAFile)
		if err != nil {
			return "", nil, verrors.ConnectionFailed(fmt.Sprintf("reading tls_ca_file: %v", err)).Err()
		}
		ca = data
	}

	var requested *TLSSecurity
	if o.TLSSecurity != nil {
		v := TLSSecurity(*o.TLSSecurity)
		requested = &v
	}

	if o.ClientSecurity != nil && *o.ClientSecurity == "strict" {
		if requested != nil && (*requested == TLSNoHostVerification || *requested == TLSInsecure) {
			return "", nil, verrors.ConnectionFailed(
				"EDGEDB_CLIENT_SECURITY=strict cannot be combined with a weaker tls_security").Err()
		}
		return TLSStrict, ca, nil
	}

	if requested != nil {
		return *requested, ca, nil
	}

	if o.InsecureDevMode != nil && *o.InsecureDevMode {
		return TLSInsecure, ca, nil
	}

	if len(ca) > 0 {
		return TLSNoHostVerification, ca, nil
	}

	return TLSStrict, ca, nil
}
