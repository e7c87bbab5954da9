package integration

import (
	"fmt"
	"time"
)

// TestCredentials generates unique test user credentials.
func TestCredentials(suffix string) (username, password string) {
	ts := time.Now().UnixNano()
	username = fmt.Sprintf("test-%d-%s", ts, suffix)
	password = "TestPassword123!"
	return
}
