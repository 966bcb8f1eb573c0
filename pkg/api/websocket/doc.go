// Package websocket provides real-time event streaming via WebSocket.
//
// Clients connect to /api/v1/sessions/:id/ws to receive every change made
// to an editing session's graph as it is committed. The stream ends with a
// session.closed event when the session is closed or expires.
package websocket
