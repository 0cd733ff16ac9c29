// ABOUTME: Build version and product identity
// ABOUTME: Used for the HTTP User-Agent and the TUI header
package version

const (
	// Version is the client release
	Version = "0.3.0"
	// Product is the client name
	Product = "livedub"
	// Manufacturer identifies the publisher
	Manufacturer = "livedub project"
)

// UserAgent returns the value sent in the User-Agent header
func UserAgent() string {
	return Product + "-go/" + Version
}
