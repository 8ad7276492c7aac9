// Package docs registers the OpenAPI document for the performance read API
// with swag, so gin-swagger can serve it under /swagger/.
//
// Regenerate with: swag init -g cmd/server/main.go -o docs
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/perf/stats": {
            "get": {
                "description": "Counters since start or last reset, plus average/p95/p99 over the sliding window of recent requests.",
                "produces": ["application/json"],
                "tags": ["Performance"],
                "summary": "Current performance statistics",
                "operationId": "getPerfStats",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/perf.Stats"}},
                    "429": {"description": "Rate limited", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/perf/digests": {
            "get": {
                "description": "Returns persisted performance digests, newest first.",
                "produces": ["application/json"],
                "tags": ["Performance"],
                "summary": "Digest history",
                "operationId": "listPerfDigests",
                "parameters": [
                    {"maximum": 100, "minimum": 1, "type": "integer", "default": 20, "description": "Max digests to return", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ListDigestsResponse"}},
                    "404": {"description": "Digest store disabled", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "429": {"description": "Rate limited", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/perf/digests/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Performance"],
                "summary": "One digest",
                "operationId": "getPerfDigest",
                "parameters": [
                    {"type": "string", "format": "uuid", "description": "Digest ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.Digest"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/perf/reset": {
            "post": {
                "description": "Clears counters and the sliding window. Disabled unless PERF_RESET_ENABLED is set.",
                "tags": ["Performance"],
                "summary": "Reset statistics",
                "operationId": "resetPerfStats",
                "responses": {
                    "204": {"description": "Reset", "schema": {"type": "string"}},
                    "404": {"description": "Reset disabled", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "domain.Digest": {
            "type": "object",
            "properties": {
                "avg_ms": {"type": "number"},
                "created_at": {"type": "string"},
                "critical_pct": {"type": "number"},
                "id": {"type": "string"},
                "p95_ms": {"type": "number"},
                "p95_target_met": {"type": "boolean"},
                "p95_target_ms": {"type": "number"},
                "p99_ms": {"type": "number"},
                "slow_pct": {"type": "number"},
                "taken_at": {"type": "string"},
                "total_requests": {"type": "integer"},
                "very_slow_pct": {"type": "number"},
                "window_size": {"type": "integer"}
            }
        },
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string", "example": "not_found"},
                "message": {"type": "string", "example": "resource not found"},
                "request_id": {"type": "string", "example": "4bf92f35"}
            }
        },
        "handlers.ListDigestsResponse": {
            "type": "object",
            "properties": {
                "digests": {"type": "array", "items": {"$ref": "#/definitions/domain.Digest"}},
                "limit": {"type": "integer", "example": 20}
            }
        },
        "perf.Stats": {
            "type": "object",
            "properties": {
                "average_response_time_ms": {"type": "number", "example": 42.5},
                "critical_request_count": {"type": "integer", "example": 1},
                "last_updated": {"type": "string"},
                "p95_response_time_ms": {"type": "number", "example": 120},
                "p95_target_met": {"type": "boolean", "example": true},
                "p95_target_ms": {"type": "number", "example": 150},
                "p99_response_time_ms": {"type": "number", "example": 310},
                "slow_request_count": {"type": "integer", "example": 12},
                "slow_request_percentage": {"type": "number", "example": 1.14},
                "total_requests": {"type": "integer", "example": 1050},
                "very_slow_request_count": {"type": "integer", "example": 3},
                "window_size": {"type": "integer", "example": 1000}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Go Perf Monitor API",
	Description:      "Request performance statistics and digest history.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
