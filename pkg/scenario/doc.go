// Package scenario replays scripted drawer interactions against a Controller,
// a navigation stack and a simulated renderer, and records what became
// visible after every step.
//
// A scenario file looks like:
//
//	{
//	  "name": "queued drawer is purged with its screen",
//	  "auto_ack": true,
//	  "steps": [
//	    {"op": "push", "route": "main"},
//	    {"op": "open", "id": "drawer1"},
//	    {"op": "open", "id": "drawer2"},
//	    {"op": "replace", "route": "empty"},
//	    {"op": "expect", "current": "", "pending": []}
//	  ]
//	}
//
// Open, toggle and force bind to the screen on top of the stack unless the
// step sets "app": true. With auto_ack the simulated renderer acknowledges a
// close as soon as it sees it; otherwise "ack" steps do.
//
// Files ending in .yaml or .yml hold the same document in YAML and are
// checked against the same schema.
package scenario
