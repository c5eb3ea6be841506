package scenario

// Schema is the JSON Schema for scenario files.
const Schema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["name", "steps"],
  "additionalProperties": false,
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "description": {"type": "string"},
    "auto_ack": {"type": "boolean"},
    "ref_counted_lock": {"type": "boolean"},
    "steps": {
      "type": "array",
      "minItems": 1,
      "items": {"$ref": "#/definitions/step"}
    }
  },
  "definitions": {
    "step": {
      "type": "object",
      "required": ["op"],
      "additionalProperties": false,
      "properties": {
        "op": {
          "enum": ["push", "pop", "replace", "open", "close", "toggle", "force", "ack", "lock", "unlock", "expect"]
        },
        "id": {"type": "string", "minLength": 1},
        "route": {"type": "string", "minLength": 1, "pattern": "^[^:]+$"},
        "app": {"type": "boolean"},
        "payload": {},
        "current": {"type": "string"},
        "closing": {"type": "boolean"},
        "pending": {"type": "array", "items": {"type": "string"}},
        "locked": {"type": "boolean"},
        "comment": {"type": "string"}
      },
      "allOf": [
        {
          "if": {"properties": {"op": {"enum": ["push", "replace"]}}},
          "then": {"required": ["route"]}
        },
        {
          "if": {"properties": {"op": {"enum": ["open", "close", "toggle", "force"]}}},
          "then": {"required": ["id"]}
        },
        {
          "if": {"properties": {"op": {"const": "expect"}}},
          "then": {"required": ["current"]}
        }
      ]
    }
  }
}`
