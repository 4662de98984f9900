package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jackmine/storefront/internal/pkg/session"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// init session unless main or a test installed one
	if session.GetSessionStore() == nil {
		session.NewSessionStore()
	}

	h.registerPublicRoutes(app)
	h.registerCSRFProtectedRoutes(app)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
