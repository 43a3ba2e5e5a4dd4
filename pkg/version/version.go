// Package version provides version information for the veloq driver.
//
// The driver version is embedded from version.txt in this package. The
// wire protocol version is fixed by the spec this
// driver implements and is unrelated to the driver's own release
// version.
package version

import (
	_ "embed"
	"fmt"
	"strings"
)

//go:embed version.txt
var versionFile string

// Version is the current release version of the driver, embedded from
// version.txt at compile time.
var Version = strings.TrimSpace(versionFile)

// String returns the driver release version string.
func String() string {
	return Version
}

// Full returns a full version string with the package name.
func Full() string {
	return "veloq-go " + Version
}

// ProtocolMajor and ProtocolMinor identify the wire protocol version this
// driver negotiates during the handshake (spec.md §4.G, §6).
const (
	ProtocolMajor = 0
	ProtocolMinor = 11

	// MinAcceptedMinor and MaxAcceptedMinor bound the minor versions this
	// driver accepts from a server handshake reply (currently a single value).
	MinAcceptedMinor = 11
	MaxAcceptedMinor = 11
)

// ProtocolString renders the negotiated protocol version as "major.minor".
func ProtocolString() string {
	return fmt.Sprintf("%d.%d", ProtocolMajor, ProtocolMinor)
}
