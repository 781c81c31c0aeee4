package config

import "os"

func IsDebug() bool {
	return os.Getenv("DESKBOT_DEBUG") == "1"
}
