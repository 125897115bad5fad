// Package router decodes inbound frames into typed messages and dispatches
// them by tag. Pong frames are forwarded straight to the heartbeat and never
// reach domain handlers; unknown tags and malformed frames are logged and
// dropped without affecting the connection.
package router
