// Package protocol implements the recognition service wire format.
//
// Client to server audio is one binary message per chunk:
//
//	[u32 LE metadata length][UTF-8 JSON metadata][int16 LE PCM, rest of message]
//
// Server to client control and transcript events are JSON text messages
// tagged by a "type" field.
package protocol
