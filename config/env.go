package config

import (
	"os"
	"strconv"
	"strings"
)

func strPtr(s string) *string { return &s }

func envString(name string) *string {
	v, ok := os.LookupEnv(name)
	if !ok {
		return nil
	}
	return &v
}

// envOptions builds the environment-variable layer (spec.md §4.I level
// 3, variable names enumerated there).
func envOptions() Options {
	var o Options

	o.DSN = envString("EDGEDB_DSN")
	o.InstanceName = envString("EDGEDB_INSTANCE")
	o.CredentialsFile = envString("EDGEDB_CREDENTIALS_FILE")
	o.Host = envString("EDGEDB_HOST")

	// EDGEDB_PORT=tcp://... is a Docker-injected linking artifact, not a
	// real port, and must be treated as absent (spec.md §4.I, testable
	// property 16).
	if raw, ok := os.LookupEnv("EDGEDB_PORT"); ok && !strings.HasPrefix(raw, "tcp") {
		if p, err := strconv.Atoi(raw); err == nil {
			o.Port = &p
		}
	}

	o.Database = envString("EDGEDB_DATABASE")
	o.Branch = envString("EDGEDB_BRANCH")
	o.User = envString("EDGEDB_USER")
	o.Password = envString("EDGEDB_PASSWORD")
	o.SecretKey = envString("EDGEDB_SECRET_KEY")
	o.CloudProfile = envString("EDGEDB_CLOUD_PROFILE")
	o.TLSCA = envString("EDGEDB_TLS_CA")
	o.TLSCAFile = envString("EDGEDB_TLS_CA_FILE")
	o.TLSServerName = envString("EDGEDB_TLS_SERVER_NAME")
	o.TLSSecurity = envString("EDGEDB_CLIENT_TLS_SECURITY")
	o.ClientSecurity = envString("EDGEDB_CLIENT_SECURITY")

	return o
}
