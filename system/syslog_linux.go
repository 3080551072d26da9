//go:build linux

package system

import (
	"log"
	"log/syslog"
)

// EnableSyslog sends the standard logger output to syslog
func EnableSyslog() error {
	lgr, err := syslog.New(syslog.LOG_NOTICE|syslog.LOG_DAEMON, "n2kd")
	if err != nil {
		return err
	}

	log.SetOutput(lgr)
	log.SetFlags(0)

	return nil
}
