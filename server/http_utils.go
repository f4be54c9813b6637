package server

import (
	"strconv"
	"strings"
	"time"
)

// rootMessage drops the "[Component.Method]" context prefixes that wrapping
// adds, leaving the part of the message that is fit for a client.
func rootMessage(err error) string {
	msg := err.Error()
	for strings.HasPrefix(msg, "[") {
		i := strings.Index(msg, ": ")
		if i < 0 {
			break
		}
		msg = msg[i+2:]
	}
	return msg
}

func retryAfterSeconds(d time.Duration) string {
	secs := int(d.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
