// Package version provides version information for the merkle price oracle.
package version

// Version is the current version of the oracle.
const Version = "1.0.0"

// AgentString returns the full agent string with versioning.
// Format: merkle-oracle/v{version}
func AgentString() string {
	return "merkle-oracle/v" + Version
}
