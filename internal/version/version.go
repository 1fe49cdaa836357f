// ABOUTME: Build and product identification constants
// ABOUTME: Reported in protocol hellos, mDNS TXT records and the CLI
package version

const (
	// Version is the release version
	Version = "0.1.0"
	// Product is the product name
	Product = "Dualdeck"
	// Manufacturer identifies the maker
	Manufacturer = "Dualdeck Project"
)

// String returns the product and version, e.g. "Dualdeck 0.1.0"
func String() string {
	return Product + " " + Version
}
