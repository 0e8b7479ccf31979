package utilities

import (
	"github.com/segmentio/ksuid"
)

// NewKSUID generates a new globally unique KSUID string.
func NewKSUID() string {
	return ksuid.New().String()
}

// NewRequestID returns a sortable id for correlating a request across log lines.
// An incoming id is kept when it parses as a KSUID so upstream proxies can chain it.
func NewRequestID(incoming string) string {
	if incoming != "" {
		if _, err := ksuid.Parse(incoming); err == nil {
			return incoming
		}
	}
	return NewKSUID()
}
