package testutil

import (
	"os"
	"testing"
)

// IntegrationEnv enables tests that need Docker or a live backing store.
const IntegrationEnv = "INTEGRATION_TESTS"

// SkipIfShort skips the test if running in short mode
func SkipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
}

// RequireIntegration skips the test unless INTEGRATION_TESTS=1 is set
func RequireIntegration(t *testing.T) {
	t.Helper()
	SkipIfShort(t)
	if os.Getenv(IntegrationEnv) != "1" {
		t.Skipf("skipping integration test (set %s=1 to run)", IntegrationEnv)
	}
}
