package embedding

import (
	"errors"
	"fmt"
	"strings"
)

// ErrFatalAPI marks provider errors that no amount of retrying will fix
// (billing, quota, credentials). Check with errors.Is. Rate limits are transient
// and not fatal.
var ErrFatalAPI = errors.New("fatal embedding API error")

var fatalAPIPatterns = []string{
	"credit balance",
	"quota exceeded",
	"billing",
	"invalid api key",
	"authentication",
	"unauthorized",
	"401",
	"403",
}

func isFatalAPIError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range fatalAPIPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

func wrapFatalError(err error) error {
	if !isFatalAPIError(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrFatalAPI, err)
}
