// Package docs holds the OpenAPI document served at /swagger/ when the
// binary is built with -tags=swagger. Regenerate with:
//
//	swag init -g cmd/clinicd/docs.go -o docs
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "clinicd maintainers"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/": {
            "get": {
                "produces": ["application/json"],
                "tags": ["meta"],
                "summary": "Service banner",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/api/v1/analyze": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Classifies (or accepts a caller label), summarizes and generates a recommendation.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["analysis"],
                "summary": "Analyze clinical text",
                "parameters": [
                    {
                        "description": "Analysis request",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/types.AnalyzeRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.AnalyzeResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "415": {"description": "Unsupported Media Type", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "504": {"description": "Gateway Timeout", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/api/v1/get_status": {
            "get": {
                "produces": ["application/json"],
                "tags": ["status"],
                "summary": "Preferred execution device",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.DeviceStatusResponse"}}
                }
            }
        },
        "/api/v1/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Basic health",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.HealthResponse"}}
                }
            }
        },
        "/api/v1/health/detailed": {
            "get": {
                "description": "Per-category model state plus a host snapshot. Returns 503 when unhealthy.",
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Detailed health",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.DetailedHealthResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/types.DetailedHealthResponse"}}
                }
            }
        },
        "/api/v1/health/live": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Liveness",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.HealthResponse"}}
                }
            }
        },
        "/api/v1/health/ready": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Readiness",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.HealthResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/types.HealthResponse"}}
                }
            }
        },
        "/status": {
            "get": {
                "produces": ["application/json"],
                "tags": ["status"],
                "summary": "Model slot status",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StatusResponse"}}
                }
            }
        }
    },
    "definitions": {
        "types.AnalyzeRequest": {
            "type": "object",
            "properties": {
                "auto_classify": {"type": "boolean", "example": true},
                "pathology": {"type": "string", "example": "Depression"},
                "text": {"type": "string", "example": "Patient reports persistent low mood for six weeks, loss of interest in hobbies and early waking."}
            }
        },
        "types.AnalyzeResponse": {
            "type": "object",
            "properties": {
                "classification": {"$ref": "#/definitions/types.Classification"},
                "metadata": {"$ref": "#/definitions/types.Metadata"},
                "recommendation": {"type": "string"},
                "summary": {"type": "string"}
            }
        },
        "types.Classification": {
            "type": "object",
            "properties": {
                "all_probabilities": {"type": "object", "additionalProperties": {"type": "number"}},
                "confidence": {"type": "number", "example": 0.87},
                "pathology": {"type": "string", "example": "Depression"}
            }
        },
        "types.Prediction": {
            "type": "object",
            "properties": {
                "pathology": {"type": "string", "example": "Anxiety"},
                "probability": {"type": "number", "example": 0.31}
            }
        },
        "types.Metadata": {
            "type": "object",
            "properties": {
                "input_length": {"type": "integer", "example": 412},
                "low_confidence": {"type": "boolean", "example": false},
                "mode": {"type": "string", "example": "auto"},
                "recommendation_length": {"type": "integer", "example": 1460},
                "request_id": {"type": "string"},
                "stage_timings": {"type": "object", "additionalProperties": {"type": "number"}},
                "summary_length": {"type": "integer", "example": 188},
                "summary_target_tokens": {"type": "integer", "example": 128},
                "top_predictions": {"type": "array", "items": {"$ref": "#/definitions/types.Prediction"}}
            }
        },
        "types.ErrorResponse": {
            "type": "object",
            "properties": {
                "category": {"type": "string", "example": "validation_error"},
                "code": {"type": "integer", "example": 400},
                "error": {"type": "string", "example": "text must be at least 50 characters"},
                "retry_after_seconds": {"type": "integer", "example": 42},
                "stage": {"type": "string", "example": "summarize"}
            }
        },
        "types.DeviceStatusResponse": {
            "type": "object",
            "properties": {
                "device": {"type": "string", "example": "cuda"},
                "status": {"type": "string", "example": "ok"}
            }
        },
        "types.SlotStatus": {
            "type": "object",
            "properties": {
                "attempts": {"type": "integer"},
                "backend": {"type": "string", "example": "llama"},
                "category": {"type": "string", "example": "generate"},
                "device": {"type": "string", "example": "cuda"},
                "error": {"type": "string"},
                "inflight": {"type": "integer"},
                "load_seconds": {"type": "number"},
                "loaded_at_unix": {"type": "integer"},
                "max_queue_depth": {"type": "integer"},
                "optimized": {"type": "boolean"},
                "queue_len": {"type": "integer"},
                "state": {"type": "string", "example": "loaded"}
            }
        },
        "types.StatusResponse": {
            "type": "object",
            "properties": {
                "device": {"type": "string"},
                "ready": {"type": "boolean"},
                "server_time_unix": {"type": "integer"},
                "slots": {"type": "array", "items": {"$ref": "#/definitions/types.SlotStatus"}},
                "uptime_seconds": {"type": "integer"}
            }
        },
        "types.HealthResponse": {
            "type": "object",
            "properties": {
                "models_loaded": {"type": "boolean"},
                "service": {"type": "string"},
                "status": {"type": "string", "example": "healthy"},
                "timestamp": {"type": "string"}
            }
        },
        "types.CheckResult": {
            "type": "object",
            "properties": {
                "details": {"type": "object", "additionalProperties": true},
                "error": {"type": "string"},
                "status": {"type": "string", "example": "healthy"}
            }
        },
        "types.DetailedHealthResponse": {
            "type": "object",
            "properties": {
                "checks": {"type": "object", "additionalProperties": {"$ref": "#/definitions/types.CheckResult"}},
                "status": {"type": "string", "example": "healthy"},
                "timestamp": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "clinicd API",
	Description:      "Clinical text analysis: classification, summarization and recommendation generation.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
