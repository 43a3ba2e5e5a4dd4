package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestIsLocalInstanceName(t *testing.T) {
	valid := []string{"myinstance", "my-instance", "a", "a-b-c-1"}
	for _, v := range valid {
		if !IsLocalInstanceName(v) {
			t.Errorf("expected %q to be a valid local instance name", v)
		}
	}
	invalid := []string{"-leading", "trailing-", "has/slash", ""}
	for _, v := range invalid {
		if IsLocalInstanceName(v) {
			t.Errorf("expected %q to be rejected as a local instance name", v)
		}
	}
}

func TestIsCloudInstanceName(t *testing.T) {
	if !IsCloudInstanceName("myorg/myinstance") {
		t.Error("expected org/name to be a valid cloud instance name")
	}
	if IsCloudInstanceName("myinstance") {
		t.Error("a bare name must not match the cloud instance grammar")
	}
	if IsCloudInstanceName("a/b/c") {
		t.Error("more than one slash must not match")
	}
}

func TestReadCredentialsFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "inst.json")
	creds := Credentials{
		Host: "h", Port: 5656, User: "u", Password: "p",
		Database: "d", TLSCA: "-----BEGIN CERTIFICATE-----", TLSSecurity: "strict",
	}
	data, err := json.Marshal(creds)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	o, err := readCredentialsFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.Host == nil || *o.Host != "h" || o.Port == nil || *o.Port != 5656 {
		t.Fatalf("unexpected options: %+v %+v", o.Host, o.Port)
	}
	if o.TLSSecurity == nil || *o.TLSSecurity != "strict" {
		t.Fatalf("unexpected tls_security: %+v", o.TLSSecurity)
	}
}

func TestReadCredentialsFileMissingIsConnectionFailed(t *testing.T) {
	_, err := readCredentialsFile(filepath.Join(t.TempDir(), "nope.json"))
	if err == nil {
		t.Fatal("expected an error for a missing credentials file")
	}
}

func TestResolveInstanceNameRejectsInvalidGrammar(t *testing.T) {
	_, err := resolveInstanceName("-not-valid", nil)
	if err == nil {
		t.Fatal("expected an error for a name matching neither grammar")
	}
}

func TestResolveCloudInstanceIsNotImplemented(t *testing.T) {
	_, err := resolveInstanceName("myorg/myinstance", nil)
	if err == nil {
		t.Fatal("expected a not-implemented error for cloud instance resolution")
	}
}
