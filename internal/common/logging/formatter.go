package logging

import (
	"bytes"
	"strings"

	log "github.com/sirupsen/logrus"
)

// CommandLineFormatter prints bare messages, prefixing those at warning level or above
// with their level.
type CommandLineFormatter struct{}

func (f *CommandLineFormatter) Format(entry *log.Entry) ([]byte, error) {
	var b bytes.Buffer
	if entry.Level <= log.WarnLevel {
		b.WriteString(strings.ToUpper(entry.Level.String()))
		b.WriteString(": ")
	}
	b.WriteString(entry.Message)
	if err, ok := entry.Data[log.ErrorKey]; ok {
		b.WriteString(": ")
		b.WriteString(toString(err))
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

func toString(v interface{}) string {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
