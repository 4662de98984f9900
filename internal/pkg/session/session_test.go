package session

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionValues_RoundTrip(t *testing.T) {
	prev := GetSessionStore()
	UseStore(NewStore(nil))
	t.Cleanup(func() { UseStore(prev) })

	app := fiber.New()
	app.Post("/remember", func(c *fiber.Ctx) error {
		return SetSessionValues(c, map[string]string{
			KeyBuyerUsername: "Steve",
			KeyBuyerEmail:    "steve@example.com",
		})
	})
	app.Get("/whoami", func(c *fiber.Ctx) error {
		return c.SendString(GetSessionValue(c, KeyBuyerUsername) + "|" + GetSessionValue(c, KeyBuyerEmail))
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/remember", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var cookie string
	for _, c := range resp.Cookies() {
		if c.Name == "session_id" {
			cookie = c.Name + "=" + c.Value
		}
	}
	require.NotEmpty(t, cookie)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Cookie", cookie)
	resp, err = app.Test(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "Steve|steve@example.com", string(body))

	// a fresh visitor has nothing stored
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/whoami", nil))
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	assert.Equal(t, "|", strings.TrimSpace(string(body)))
}

func TestSessionValues_WithoutStore(t *testing.T) {
	prev := GetSessionStore()
	UseStore(nil)
	t.Cleanup(func() { UseStore(prev) })

	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		err := SetSessionValue(c, KeyBuyerUsername, "Steve")
		assert.EqualError(t, err, "session store not initialized")
		return c.SendString(GetSessionValue(c, KeyBuyerUsername))
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Empty(t, string(body))
}
