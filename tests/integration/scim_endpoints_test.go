//go:build integration
// +build integration

package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSCIMEndpoints_TokenAuth(t *testing.T) {
	requireIntegrationEnv(t)

	db := openTestDB(t)
	f := seedFixture(t, db)

	const port = 18082
	const token = "integration-test-token"
	startTestServer(t, "../../bin/scim-mysql-test", port, f.RealmID,
		"SCIMSQL_SERVER_AUTH_TOKEN_ENABLED=true",
		"SCIMSQL_SERVER_AUTH_TOKEN="+token,
	)

	t.Run("missing token is rejected with a scim error", func(t *testing.T) {
		resp, err := http.Get(fmt.Sprintf("http://localhost:%d/Users", port))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "application/scim+json", resp.Header.Get("Content-Type"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "401", body["status"])
	})

	t.Run("list users", func(t *testing.T) {
		status, body := scimList(t, port, "/Users", "", token)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, []string{"urn:ietf:params:scim:api:messages:2.0:ListResponse"}, body.Schemas)
		assert.Equal(t, int64(3), body.TotalResults)
		assert.Equal(t, int64(1), body.StartIndex)
		assert.ElementsMatch(t, []string{"alice", "bob", "carol"}, userNames(body.Resources))
	})

	t.Run("filtered users", func(t *testing.T) {
		status, body := scimList(t, port, "/Users", `filter=userName%20eq%20%22alice%22`, token)
		require.Equal(t, http.StatusOK, status)
		require.Equal(t, int64(1), body.TotalResults)
		require.Len(t, body.Resources, 1)

		user := body.Resources[0]
		assert.Equal(t, "alice", user["userName"])
		assert.Equal(t, f.AliceID, user["id"])

		meta, ok := user["meta"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "User", meta["resourceType"])
		assert.Equal(t, "/Users/"+f.AliceID, meta["location"])
	})

	t.Run("paged and sorted users", func(t *testing.T) {
		status, body := scimList(t, port, "/Users", "sortBy=userName&sortOrder=descending&startIndex=2&count=1", token)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, int64(3), body.TotalResults)
		assert.Equal(t, int64(2), body.StartIndex)
		assert.Equal(t, 1, body.ItemsPerPage)
		assert.Equal(t, []string{"bob"}, userNames(body.Resources))
	})

	t.Run("list groups", func(t *testing.T) {
		status, body := scimList(t, port, "/Groups", "", token)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, int64(2), body.TotalResults)
	})

	t.Run("malformed filter is a scim bad request", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet,
			fmt.Sprintf("http://localhost:%d/Users?filter=userName%%20eq", port), nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "invalidFilter", body["scimType"])
	})

	t.Run("unknown attribute is rejected, not ignored", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet,
			fmt.Sprintf("http://localhost:%d/Users?filter=password%%20eq%%20%%22x%%22", port), nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("writes are not supported", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost,
			fmt.Sprintf("http://localhost:%d/Users", port), nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}
