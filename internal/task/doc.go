// Package task defines sticky-note tasks, their colors and sort keys, and
// validates task payloads exchanged with the data server.
//
// A task on the wire looks like:
//
//	{
//	  "id": 3,
//	  "task": "Write report",
//	  "startDate": "2024-01-01",
//	  "endDate": "2024-01-10",
//	  "completed": false,
//	  "color": "color-1"
//	}
//
// The id is assigned by the server and is omitted when a task is created.
//
// # Colors
//
// New tasks take their color from a fixed three-entry palette
// (color-1, color-2, color-3) in round-robin order. The color is stored with
// the task so it survives reloads.
//
// # Sort Keys
//
//   - "start": sent to the server as _sort=start
//   - "deadline": sent as _sort=deadline
//   - "complete": sent as _sort=completed
//
// # Validation
//
// List responses and create bodies are checked against the embedded JSON
// Schemas in schemas/. Create bodies must not carry an id, must have
// completed=false, and the text is limited to MaxTextLength characters.
package task
