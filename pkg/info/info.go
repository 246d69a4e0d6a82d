// Package info carries build and instance identity, stamped at link time.
package info

import (
	"fmt"
	"os"

	"github.com/google/uuid"
)

var (
	Version    = "0.0.0"
	Dist       = "1"
	GitRev     = "000000"
	BuildTime  = "2000-01-01_00:00:00"
	InstanceID = uuid.New().String()
)

var (
	EnvMode = "development"
)

func init() {
	mode := os.Getenv("NOTEX_MODE")
	if mode != "" {
		EnvMode = mode
	}
}

// Banner returns the one-line identity printed at startup and
// registered with etcd for discovery.
func Banner(app string) string {
	return fmt.Sprintf("%s %s-%s (%s, built %s, instance %s)",
		app, Version, Dist, GitRev, BuildTime, InstanceID)
}
