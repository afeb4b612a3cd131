package payload

import "encoding/json"

// DefaultSchema describes the commit-export contract. Producers that build
// payloads by hand can validate against it before delivery.
var DefaultSchema = json.RawMessage(`{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["repo", "owner", "commits"],
  "properties": {
    "repo": {"type": "string", "minLength": 1},
    "owner": {"type": "string", "minLength": 1},
    "branch": {"type": "string"},
    "job_minutes": {"type": "integer", "minimum": 1},
    "commits": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "message", "author", "timestamp", "url"],
        "properties": {
          "id": {"type": "string"},
          "message": {"type": "string"},
          "author": {
            "type": "object",
            "required": ["name", "email"],
            "properties": {
              "name": {"type": "string"},
              "email": {"type": "string"}
            }
          },
          "timestamp": {"type": "string"},
          "url": {"type": "string"},
          "additions": {"type": "integer", "minimum": 0},
          "deletions": {"type": "integer", "minimum": 0},
          "files": {
            "type": "object",
            "properties": {
              "added": {"type": "array", "items": {"type": "string"}},
              "modified": {"type": "array", "items": {"type": "string"}},
              "removed": {"type": "array", "items": {"type": "string"}},
              "total": {"type": "integer", "minimum": 0}
            }
          }
        }
      }
    }
  }
}`)
