// internal/handlers/ws_codes.go
package handlers

// WebSocket close codes for the game socket, beyond the standard range.
const (
	BadSubprotocolError   = 3000 // client did not negotiate the durak subprotocol
	InvalidAuthTokenError = 3001 // auth token invalid or expired
	InvalidUserIDError    = 3002 // token subject is not a valid user id
	InvalidGameIDError    = 3003 // game id in the socket URL is unknown
)
