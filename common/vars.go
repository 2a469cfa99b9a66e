// Package common holds process wide settings shared by the binaries.
package common

// Version is set at build time with -ldflags "-X github.com/ruteri/tdf-pipeline/common.Version=...".
var Version = "dev"

const PackageName = "github.com/ruteri/tdf-pipeline"
