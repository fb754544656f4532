// Package common holds process-wide helpers shared by the binaries.
package common

// PackageName is used as the metrics namespace and default log service name.
const PackageName = "people_registry"

// Version is set at build time with -ldflags "-X github.com/ruteri/people-registry/common.Version=...".
var Version = "dev"
