package handlers

import (
	"log"

	"github.com/anjiri1684/smartscore/middleware"
	"github.com/anjiri1684/smartscore/websocket"
	fiberws "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// WebsocketUpgrade rejects plain HTTP requests and stores the caller for
// the upgraded connection.
func WebsocketUpgrade(c *fiber.Ctx) error {
	if !fiberws.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	principal, ok := middleware.CurrentUser(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
	}
	c.Locals("principal", principal)
	return c.Next()
}

// EventStream keeps the connection registered with the hub until the
// client goes away. Incoming messages are ignored.
var EventStream = fiberws.New(func(conn *fiberws.Conn) {
	principal, ok := conn.Locals("principal").(middleware.Principal)
	if !ok {
		conn.Close()
		return
	}

	client := &websocket.Client{UserID: principal.UserID, Conn: conn}
	websocket.Default.Register(client)
	defer websocket.Default.Unregister(client)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if fiberws.IsUnexpectedCloseError(err, fiberws.CloseGoingAway, fiberws.CloseNormalClosure) {
				log.Printf("Websocket read error for %s: %v", principal.UserID, err)
			}
			return
		}
	}
})
