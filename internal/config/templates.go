package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "profile":
		return profileTemplate, nil
	case "service":
		return serviceTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
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

const profileTemplate = `[multiplexer]
lcid = 0
direction = "uplink"
primary_data_bearer = 3

[[bearers]]
lcid = 1
kind = "control"

[[bearers]]
lcid = 2
kind = "control"

[[bearers]]
lcid = 3
kind = "data"

[[mrbs]]
lcid = 1
kind = "data"

[security]
enc_key = "000102030405060708090a0b0c0d0e0f"
int_key = "101112131415161718191a1b1c1d1e1f"
cipher = "eea2"
integrity = "eia2"
enable_integrity = [1, 2]
enable_encryption = [1, 2, 3]

[tuning]
lwa_ratio = [1, 0]
ema_ratio = [1, 8]
report_period = 128
timestamp = false
autoconfig = false
random = false
`

const serviceTemplate = `name = "pdcpctl"
addr = "127.0.0.1:9300"
cors_origins = ["http://localhost:3000"]
profile = "profile.toml"
queue_depth = 256
admin_token = ""
`
