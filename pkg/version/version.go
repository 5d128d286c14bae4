package version

import (
	"fmt"
	"runtime"
)

// Build information, overridden at link time:
//
//	go build -ldflags "-X github.com/zsiec/flowprobe/pkg/version.Version=v0.3.0"
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// WireFormat names the datagram layout this build speaks. Sender and receiver
// builds must agree on it.
const WireFormat = "flowpacket/be17"

// Info describes the running binary.
type Info struct {
	Version    string `json:"version"`
	GitCommit  string `json:"git_commit"`
	BuildTime  string `json:"build_time"`
	GoVersion  string `json:"go_version"`
	Platform   string `json:"platform"`
	WireFormat string `json:"wire_format"`
}

// GetInfo returns the version information.
func GetInfo() Info {
	return Info{
		Version:    Version,
		GitCommit:  GitCommit,
		BuildTime:  BuildTime,
		GoVersion:  runtime.Version(),
		Platform:   runtime.GOOS + "/" + runtime.GOARCH,
		WireFormat: WireFormat,
	}
}

func (i Info) String() string {
	return fmt.Sprintf("flowprobe %s (commit: %s, built: %s, %s, %s, wire: %s)",
		i.Version, i.GitCommit, i.BuildTime, i.GoVersion, i.Platform, i.WireFormat)
}

// Short returns "flowprobe <version>".
func (i Info) Short() string {
	return "flowprobe " + i.Version
}
