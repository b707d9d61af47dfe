package version

// Version is the current version of the roomcall CLI.
// Release builds override it with:
//
//	go build -ldflags="-X 'github.com/BioHazard786/roomcall/internal/version.Version=v1.0.0'"
var Version = "dev"
