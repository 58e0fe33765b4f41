package websocket

import (
	"github.com/gofiber/websocket/v2"
)

const sendBuffer = 256

// ServeWs registers the upgraded connection under clientID and blocks in the
// read loop until the peer goes away.
func ServeWs(hub *Hub, c *websocket.Conn, clientID string) {
	client := &Client{Hub: hub, Conn: c, ID: clientID, Send: make(chan []byte, sendBuffer)}
	hub.register <- client

	go client.writePump()
	client.readPump()
}
