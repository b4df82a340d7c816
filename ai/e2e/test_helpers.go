//go:build e2e_manual

package e2e

import (
	"os"
	"testing"
)

// RequireManualE2E guards tests that call a real LLM provider.
// Call it on the first line of every such test.
func RequireManualE2E(t *testing.T) {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping live E2E test in short mode")
	}
	if os.Getenv("CI") != "" {
		t.Fatal("CRITICAL: Manual E2E test running in CI environment! Aborting.")
	}
	if os.Getenv("ENABLE_MANUAL_E2E") != "true" {
		t.Skip("Skipping live E2E test: ENABLE_MANUAL_E2E not set to 'true'")
	}
	if os.Getenv("MINDCARE_LLM_API_KEY") == "" {
		t.Skip("Skipping live E2E test: MINDCARE_LLM_API_KEY not set")
	}
}
