package logflags

import (
	"errors"
	"io/ioutil"
	"log"
	"strings"

	"github.com/sirupsen/logrus"
)

var ptrace = false
var session = false

func makeLogger(flag bool, fields logrus.Fields) *logrus.Entry {
	logger := logrus.New().WithFields(fields)
	logger.Logger.Level = logrus.DebugLevel
	if !flag {
		logger.Logger.Level = logrus.PanicLevel
	}
	return logger
}

// Ptrace returns true if the target layer should log every trace request
// issued against the tracee.
func Ptrace() bool {
	return ptrace
}

// PtraceLogger returns a configured logger for the target layer.
func PtraceLogger() *logrus.Entry {
	return makeLogger(ptrace, logrus.Fields{"layer": "target"})
}

// Session returns true if the debug session should log command handling.
func Session() bool {
	return session
}

// SessionLogger returns a logger for the debug session.
func SessionLogger() *logrus.Entry {
	return makeLogger(session, logrus.Fields{"layer": "session"})
}

var errLogstrWithoutLog = errors.New("--log-output specified without --log")

// Setup sets logging layers based on the contents of logstr.
func Setup(logFlag bool, logstr string) error {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	if !logFlag {
		log.SetOutput(ioutil.Discard)
		if logstr != "" {
			return errLogstrWithoutLog
		}
		return nil
	}
	if logstr == "" {
		logstr = "session"
	}
	for _, logcmd := range strings.Split(logstr, ",") {
		switch logcmd {
		case "ptrace":
			ptrace = true
		case "session":
			session = true
		}
	}
	return nil
}
