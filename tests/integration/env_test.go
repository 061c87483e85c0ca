//go:build integration
// +build integration

package integration

import (
	"fmt"
	"os"
)

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func baseServerEnv(realmID string) []string {
	return []string{
		fmt.Sprintf("SCIMSQL_DATABASE_HOST=%s", os.Getenv("MYSQL_TEST_HOST")),
		fmt.Sprintf("SCIMSQL_DATABASE_PORT=%s", getEnvOrDefault("MYSQL_TEST_PORT", "3306")),
		fmt.Sprintf("SCIMSQL_DATABASE_USER=%s", getEnvOrDefault("MYSQL_TEST_USER", "root")),
		fmt.Sprintf("SCIMSQL_DATABASE_PASSWORD=%s", os.Getenv("MYSQL_TEST_PASSWORD")),
		fmt.Sprintf("SCIMSQL_DATABASE_DATABASE=%s", getEnvOrDefault("MYSQL_TEST_DATABASE", "keycloak")),
		fmt.Sprintf("SCIMSQL_DATABASE_TLS_MODE=%s", getEnvOrDefault("MYSQL_TEST_TLS_MODE", "off")),
		fmt.Sprintf("SCIMSQL_SCIM_REALM=%s", realmID),
	}
}
