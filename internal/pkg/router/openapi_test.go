package router

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const openAPIFile = "../../../public/docs/v1/openapi.yml"

func loadOpenAPI(t *testing.T) *openapi3.T {
	t.Helper()
	doc, err := openapi3.NewLoader().LoadFromFile(openAPIFile)
	require.NoError(t, err)
	require.NoError(t, doc.Validate(context.Background()))
	return doc
}

func TestOpenAPI_DocumentedPathsAreRouted(t *testing.T) {
	doc := loadOpenAPI(t)
	app := newApp(t)

	for path := range doc.Paths.Map() {
		req := httptest.NewRequest(http.MethodPost, "/api"+path, strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.NotEqual(t, http.StatusNotFound, resp.StatusCode, path)
		assert.NotEqual(t, http.StatusMethodNotAllowed, resp.StatusCode, path)
	}
}

func TestOpenAPI_ResponsesMatchSchemas(t *testing.T) {
	doc := loadOpenAPI(t)
	app := newApp(t)

	tests := []struct {
		path   string
		body   string
		schema string
	}{
		{"/api/create-checkout", `{"username":"Steve","email":"steve@example.com","productType":"subscription","productId":"vip","price":14.9,"productName":"VIP Monthly"}`, "CheckoutResult"},
		{"/api/check-subscription", `{"username":"Steve"}`, "SubscriptionStatus"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, http.StatusOK, resp.StatusCode)

			raw, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			var value interface{}
			require.NoError(t, json.Unmarshal(raw, &value))

			schema := doc.Components.Schemas[tt.schema]
			require.NotNil(t, schema)
			assert.NoError(t, schema.Value.VisitJSON(value))
		})
	}
}
