//go:build integration

package testdb

import "os"

// Environment variables consulted for the test database URL, in order.
const (
	EnvTestDatabaseURL = "TASKFLOW_TEST_DATABASE_URL"
	EnvDatabaseURL     = "TASKFLOW_DATABASE_URL"
	EnvGenericURL      = "DATABASE_URL"
)

// DatabaseURL returns the first configured database URL, or "".
func DatabaseURL() string {
	for _, key := range []string{EnvTestDatabaseURL, EnvDatabaseURL, EnvGenericURL} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}

// isCIEnvironment reports whether the tests run under a CI system.
func isCIEnvironment() bool {
	for _, key := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "CIRCLECI"} {
		if os.Getenv(key) != "" {
			return true
		}
	}
	return false
}
