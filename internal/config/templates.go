package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "controller":
		return controllerTemplate, nil
	case "profile":
		return profileTemplate, nil
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

const controllerTemplate = `name = "labctl"
addr = ":3262"
cors_origins = ["http://localhost:3000"]
# auth_token = "change-me"

[session]
connect_timeout = "5s"
read_timeout = "2s"
write_timeout = "2s"
max_connect_attempts = 3

[[instruments]]
id = "synth.clock"
kind = "synth"
device = "synth-1.lab"
port = 80

[instruments.settings]
reference_frequency = 100e6
reference_divider = 4
mute_till_lock_enabled = true
output_power_level = 0

[[instruments]]
id = "temp.table"
kind = "temp"
device = "temp-1.lab"

[[instruments]]
id = "shutter.main"
kind = "shutter"
device = "shutter-1.lab"
`

const profileTemplate = `# synthplan profile: any planner setting, unset keys keep defaults
reference_frequency = 10e6
reference_doubler_enabled = true
reference_divider = 1
channel_spacing = 0
output_power_level = 3
`
