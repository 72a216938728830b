package middleware

import (
	"strings"
	"time"
)

var now = time.Now

func joinArgs(args []string) string {
	return strings.Join(args, " ")
}
