package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	verrors "github.com/ha1tch/veloq-go/pkg/errors"
)

func strp(s string) *string { return &s }
func intp(i int) *int       { return &i }
func boolp(b bool) *bool    { return &b }

func TestResolveNoEndpointsWhenEverythingEmpty(t *testing.T) {
	empty := t.TempDir() // guaranteed not to contain an edgedb.toml ancestor chain we control
	_, err := resolveFrom(Options{}, empty)
	if err == nil {
		t.Fatal("expected an error")
	}
	if verrors.GetCode(err) != verrors.ErrCodeNoEndpoints {
		t.Fatalf("expected ErrCodeNoEndpoints, got %v", err)
	}
}

func TestResolveHostPortDefaults(t *testing.T) {
	dir := t.TempDir()
	ep, err := resolveFrom(Options{Host: strp("db.example.com")}, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ep.Addrs) != 1 || ep.Addrs[0].Host != "db.example.com" || ep.Addrs[0].Port != DefaultPort {
		t.Fatalf("unexpected addrs: %+v", ep.Addrs)
	}
	if ep.User != "edgedb" {
		t.Fatalf("expected default user, got %q", ep.User)
	}
	if ep.TLSSecurity != TLSStrict {
		t.Fatalf("expected default tls_security=strict, got %v", ep.TLSSecurity)
	}
	if ep.ALPN != ALPNProtocol {
		t.Fatalf("unexpected ALPN: %q", ep.ALPN)
	}
}

func TestResolveExplicitCompoundMoreThanOneIsFatal(t *testing.T) {
	dir := t.TempDir()
	_, err := resolveFrom(Options{DSN: strp("edgedb://host/db"), Host: strp("other")}, dir)
	if err == nil {
		t.Fatal("expected an error for two compound parameters at one level")
	}
}

func TestResolveExplicitLevelWinsOverEnv(t *testing.T) {
	t.Setenv("EDGEDB_HOST", "env-host")
	dir := t.TempDir()

	ep, err := resolveFrom(Options{Host: strp("explicit-host")}, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ep.Addrs[0].Host != "explicit-host" {
		t.Fatalf("expected explicit level to win, got %q", ep.Addrs[0].Host)
	}
}

func TestResolveEnvPortIgnoredWhenDockerStyle(t *testing.T) {
	t.Setenv("EDGEDB_HOST", "env-host")
	t.Setenv("EDGEDB_PORT", "tcp://10.0.0.1:5656")
	dir := t.TempDir()

	ep, err := resolveFrom(Options{}, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ep.Addrs[0].Port != DefaultPort {
		t.Fatalf("expected default port when EDGEDB_PORT is tcp://-shaped, got %d", ep.Addrs[0].Port)
	}
}

func TestResolveDatabaseBranchFallback(t *testing.T) {
	dir := t.TempDir()
	ep, err := resolveFrom(Options{Host: strp("h"), Database: strp("mydb")}, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ep.Database != "mydb" || ep.Branch != "mydb" {
		t.Fatalf("expected branch to fall back to database, got db=%q branch=%q", ep.Database, ep.Branch)
	}
}

func TestResolveDatabaseBranchConflictSameLevelIsFatal(t *testing.T) {
	dir := t.TempDir()
	_, err := resolveFrom(Options{Host: strp("h"), Database: strp("a"), Branch: strp("b")}, dir)
	if err == nil {
		t.Fatal("expected an error for database+branch at the same level")
	}
}

func TestResolveTLSSecurityDefaultsToStrictWithNoCA(t *testing.T) {
	dir := t.TempDir()
	ep, err := resolveFrom(Options{Host: strp("h")}, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ep.TLSSecurity != TLSStrict {
		t.Fatalf("expected strict, got %v", ep.TLSSecurity)
	}
}

func TestResolveTLSSecurityCAWithoutExplicitSecurityImpliesNoHostVerification(t *testing.T) {
	dir := t.TempDir()
	ep, err := resolveFrom(Options{Host: strp("h"), TLSCA: strp("-----BEGIN CERTIFICATE-----\n...")}, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ep.TLSSecurity != TLSNoHostVerification {
		t.Fatalf("expected no_host_verification, got %v", ep.TLSSecurity)
	}
}

func TestResolveTLSSecurityInsecureDevModeImpliesInsecure(t *testing.T) {
	dir := t.TempDir()
	ep, err := resolveFrom(Options{Host: strp("h"), InsecureDevMode: boolp(true)}, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ep.TLSSecurity != TLSInsecure {
		t.Fatalf("expected insecure, got %v", ep.TLSSecurity)
	}
}

func TestResolveTLSSecurityStrictClientSecurityRejectsWeakerOverride(t *testing.T) {
	dir := t.TempDir()
	_, err := resolveFrom(Options{
		Host:           strp("h"),
		ClientSecurity: strp("strict"),
		TLSSecurity:    strp("insecure"),
	}, dir)
	if err == nil {
		t.Fatal("expected an error combining strict client security with a weaker tls_security")
	}
}

func TestResolveTLSSecurityStrictClientSecurityForcesStrict(t *testing.T) {
	dir := t.TempDir()
	ep, err := resolveFrom(Options{Host: strp("h"), ClientSecurity: strp("strict")}, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ep.TLSSecurity != TLSStrict {
		t.Fatalf("expected strict, got %v", ep.TLSSecurity)
	}
}

func TestResolveConnectTimeoutDefault(t *testing.T) {
	dir := t.TempDir()
	ep, err := resolveFrom(Options{Host: strp("h")}, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ep.ConnectTimeout != DefaultConnectTimeout {
		t.Fatalf("expected default connect timeout, got %v", ep.ConnectTimeout)
	}
}

func TestResolveConnectTimeoutExplicitOverride(t *testing.T) {
	dir := t.TempDir()
	d := 3 * time.Second
	ep, err := resolveFrom(Options{Host: strp("h"), ConnectTimeout: &d}, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ep.ConnectTimeout != d {
		t.Fatalf("expected overridden connect timeout, got %v", ep.ConnectTimeout)
	}
}

func TestResolveProcessConfigUsedWhenNoExplicitCompound(t *testing.T) {
	defer ClearProcessConfig()
	SetProcessConfig(Options{Host: strp("proc-host")})
	dir := t.TempDir()

	ep, err := resolveFrom(Options{}, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ep.Addrs[0].Host != "proc-host" {
		t.Fatalf("expected process-level host, got %q", ep.Addrs[0].Host)
	}
}

func TestResolveCredentialsFileLevel(t *testing.T) {
	dir := t.TempDir()
	credPath := filepath.Join(dir, "creds.json")
	if err := os.WriteFile(credPath, []byte(`{"host":"cred-host","port":1234,"user":"alice","database":"appdb"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	ep, err := resolveFrom(Options{CredentialsFile: &credPath}, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ep.Addrs[0].Host != "cred-host" || ep.Addrs[0].Port != 1234 || ep.User != "alice" || ep.Database != "appdb" {
		t.Fatalf("unexpected endpoint from credentials file: %+v", ep)
	}
}
