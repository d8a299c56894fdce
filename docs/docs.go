// Package docs registers the OpenAPI document served at /swagger.
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
        "/health": {
            "get": {
                "description": "Returns overall status with Slack Socket Mode and snapshot cache connectivity",
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/slack/interactions": {
            "post": {
                "description": "Acknowledges a signed block_actions payload and processes it in the background",
                "consumes": ["application/x-www-form-urlencoded"],
                "produces": ["application/json"],
                "tags": ["slack"],
                "summary": "Slack interactivity endpoint",
                "parameters": [
                    {"type": "string", "description": "Slack interaction payload", "name": "payload", "in": "formData", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/api/v1/scan": {
            "post": {
                "description": "Fetches unpaid invoices and posts overdue summaries to the admin channel",
                "produces": ["application/json"],
                "tags": ["scan"],
                "summary": "Run Scan-and-Post now",
                "parameters": [
                    {"type": "string", "description": "API key", "name": "x-reminders-auth-key", "in": "header", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.SuccessResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/api/v1/scheduler/start": {
            "post": {
                "description": "Starts running Scan-and-Post on a cron schedule, defaulting to the configured one",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["scheduler"],
                "summary": "Start the scan scheduler",
                "parameters": [
                    {"type": "string", "description": "API key", "name": "x-reminders-auth-key", "in": "header", "required": true},
                    {"description": "Scheduler parameters (optional)", "name": "request", "in": "body", "schema": {"$ref": "#/definitions/handlers.StartSchedulerRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.SuccessResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/response.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/api/v1/scheduler/stop": {
            "post": {
                "description": "Stops scheduled scans. A scan already in flight runs to completion.",
                "produces": ["application/json"],
                "tags": ["scheduler"],
                "summary": "Stop the scan scheduler",
                "parameters": [
                    {"type": "string", "description": "API key", "name": "x-reminders-auth-key", "in": "header", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.SuccessResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/response.ErrorResponse"}}
                }
            }
        },
        "/api/v1/scheduler/status": {
            "get": {
                "description": "Returns the schedule, run statistics and failure state",
                "produces": ["application/json"],
                "tags": ["scheduler"],
                "summary": "Get scheduler status",
                "parameters": [
                    {"type": "string", "description": "API key", "name": "x-reminders-auth-key", "in": "header", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.SuccessResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handlers.StartSchedulerRequest": {
            "type": "object",
            "properties": {
                "schedule": {"type": "string"},
                "alertAfter": {"type": "integer", "minimum": 0}
            }
        },
        "response.SuccessResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "data": {}
            }
        },
        "response.ErrorResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "error": {"type": "string"},
                "data": {}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "Invoice Reminders API",
	Description:      "Overdue invoice reminders for TidyHQ, driven from Slack",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
