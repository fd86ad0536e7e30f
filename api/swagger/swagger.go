package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Player Forms API",
        "description": "Generates filled classification PDF forms from an uploaded roster workbook",
        "version": "0.1.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Forms", "description": "Form generation jobs and downloads"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"}
                }
            }
        },
        "/api/v1/forms/generate": {
            "post": {
                "tags": ["Forms"],
                "summary": "Generate PDF forms from an uploaded workbook",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "file", "in": "formData", "required": true, "type": "file", "description": "Roster workbook (.xlsx)"}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Malformed workbook or invalid upload", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/forms/jobs/{id}": {
            "get": {
                "tags": ["Forms"],
                "summary": "Poll generation job progress",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown job", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/forms/download/{token}": {
            "get": {
                "tags": ["Forms"],
                "summary": "Download the generated archive via signed token",
                "produces": ["application/zip"],
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "ZIP archive"},
                    "403": {"description": "Invalid or expired token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "GenerationJob": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "status": {"type": "string", "enum": ["QUEUED", "PROCESSING", "FINISHED", "FAILED"]},
                "progress": {"type": "integer"},
                "summary": {"$ref": "#/definitions/GenerationSummary"},
                "resultUrl": {"type": "string"},
                "error": {"type": "string"}
            }
        },
        "GenerationSummary": {
            "type": "object",
            "properties": {
                "sheets": {"type": "integer"},
                "rowsTotal": {"type": "integer"},
                "rowsProcessed": {"type": "integer"},
                "formsGenerated": {"type": "integer"},
                "failures": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/RowError"}
                }
            }
        },
        "RowError": {
            "type": "object",
            "properties": {
                "sheet": {"type": "string"},
                "row": {"type": "integer"},
                "player": {"type": "string"},
                "code": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
