package config

import (
	"fmt"
	"os"
	"strings"
)

// Template returns a starter config. "minimal" uses only local sources;
// "full" shows every source kind.
func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "minimal":
		return minimalTemplate, nil
	case "full":
		return fullTemplate, nil
	default:
		return "", fmt.Errorf("unknown config template: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const minimalTemplate = `id = "entropyctl"
addr = ":9100"
cors_origins = ["http://localhost:3000"]
max_length = 4096
fallback = ["urandom", "system"]

[[sources]]
name = "urandom"
kind = "devrandom"
path = "/dev/urandom"
buffer = 256

[[sources]]
name = "system"
kind = "system"
`

const fullTemplate = `id = "entropyctl"
addr = ":9100"
cors_origins = ["http://localhost:3000"]
max_length = 4096
default = "fallback"
fallback = ["random", "getrandom", "randomorg", "system"]

[seeder]
interval = "1m"
initial_backoff = "1s"
max_backoff = "1m"

[[sources]]
name = "random"
kind = "devrandom"
path = "/dev/random"

[[sources]]
name = "getrandom"
kind = "getrandom"
non_blocking = true

[[sources]]
name = "system"
kind = "system"

[[sources]]
name = "randomorg"
kind = "randomorg"
retry_delay = "10s"
max_request_size = 625
# api_key = "00000000-0000-0000-0000-000000000000"

[[sources]]
name = "pool"
kind = "pool"
path = "/var/lib/entropyctl/pool.bin"

[[sources]]
name = "peer"
kind = "http"
url = "http://entropy.lan:9100"
remote_source = "random"

[[sources]]
name = "pi"
kind = "remote"
host = "raspberrypi.lan"
user = "entropy"
key_path = "~/.ssh/id_ed25519"
known_hosts = "~/.ssh/known_hosts"
device = "/dev/hwrng"
timeout = "5s"
`
