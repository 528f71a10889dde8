package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Busca Ativa API",
        "description": "Absence follow-up and disciplinary occurrence tracking",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Students", "description": "Student directory and per-student views"},
        {"name": "AbsenceActions", "description": "Absence follow-up steps"},
        {"name": "Occurrences", "description": "Disciplinary occurrences"},
        {"name": "Events", "description": "Record change notifications"},
        {"name": "Health", "description": "Probes"}
    ],
    "paths": {
        "/health": {
            "get": {"tags": ["Health"], "summary": "Liveness probe", "responses": {"200": {"description": "OK"}}}
        },
        "/ready": {
            "get": {"tags": ["Health"], "summary": "Readiness probe", "responses": {"200": {"description": "Ready"}, "503": {"description": "A dependency is down"}}}
        },
        "/students": {
            "get": {
                "tags": ["Students"],
                "summary": "List students",
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "class_name", "in": "query", "type": "string"},
                    {"name": "active", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "sort", "in": "query", "type": "string", "enum": ["full_name", "enrollment", "class_name", "created_at"]},
                    {"name": "order", "in": "query", "type": "string", "enum": ["asc", "desc"]}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/students/{id}": {
            "get": {
                "tags": ["Students"],
                "summary": "Get student",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}, "404": {"description": "Not found"}}
            }
        },
        "/students/{id}/absence-process": {
            "get": {
                "tags": ["Students"],
                "summary": "Open absence cycle, next step and pending status",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/students/{id}/absence-processes": {
            "get": {
                "tags": ["Students"],
                "summary": "Every absence cycle of a student",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/students/{id}/occurrences/summary": {
            "get": {
                "tags": ["Students"],
                "summary": "Occurrence counters by severity",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/absence-actions": {
            "get": {
                "tags": ["AbsenceActions"],
                "summary": "List absence actions",
                "parameters": [
                    {"name": "student_id", "in": "query", "type": "string"},
                    {"name": "process_id", "in": "query", "type": "string"},
                    {"name": "action_type", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["AbsenceActions"],
                "summary": "Register the next step of the student's cycle",
                "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AbsenceAction"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation failed or required fields missing"},
                    "409": {"description": "STEP_PENDING or INVALID_TRANSITION"}
                }
            }
        },
        "/absence-actions/{id}": {
            "get": {
                "tags": ["AbsenceActions"],
                "summary": "Get absence action",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "patch": {
                "tags": ["AbsenceActions"],
                "summary": "JSON merge patch of an absence action",
                "consumes": ["application/merge-patch+json", "application/json"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"type": "object"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "delete": {
                "tags": ["AbsenceActions"],
                "summary": "Delete an absence action",
                "description": "Blocked when later steps exist. An encaminhamento_ct takes its analise with it.",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "Deleted ids", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}, "409": {"description": "DELETION_BLOCKED"}}
            }
        },
        "/absence-actions/requirements": {
            "get": {
                "tags": ["AbsenceActions"],
                "summary": "Static and conditional fields of a step type",
                "parameters": [
                    {"name": "action_type", "in": "query", "required": true, "type": "string"},
                    {"name": "first_in_cycle", "in": "query", "type": "boolean"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["AbsenceActions"],
                "summary": "Evaluate a form being filled in",
                "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AbsenceAction"}}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/absence-actions/export": {
            "get": {
                "tags": ["AbsenceActions"],
                "summary": "Absence process report",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]},
                    {"name": "student_id", "in": "query", "type": "string"},
                    {"name": "class_name", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string", "enum": ["open", "pending", "concluded"]}
                ],
                "responses": {"200": {"description": "Report file"}}
            }
        },
        "/occurrences": {
            "get": {
                "tags": ["Occurrences"],
                "summary": "List occurrences",
                "parameters": [
                    {"name": "student_id", "in": "query", "type": "string"},
                    {"name": "date_from", "in": "query", "type": "string"},
                    {"name": "date_to", "in": "query", "type": "string"},
                    {"name": "severity", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Occurrences"],
                "summary": "Register an occurrence",
                "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/OccurrenceRequest"}}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/occurrences/{id}": {
            "get": {
                "tags": ["Occurrences"],
                "summary": "Get occurrence",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "put": {
                "tags": ["Occurrences"],
                "summary": "Replace an occurrence",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/OccurrenceRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "delete": {
                "tags": ["Occurrences"],
                "summary": "Delete an occurrence",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"204": {"description": "Deleted"}}
            }
        },
        "/events": {
            "get": {
                "tags": ["Events"],
                "summary": "Server-sent record change events",
                "produces": ["text/event-stream"],
                "parameters": [{"name": "types", "in": "query", "type": "string", "description": "absence_action, occurrence"}],
                "responses": {"200": {"description": "Event stream"}}
            }
        }
    },
    "definitions": {
        "AbsenceAction": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "student_id": {"type": "string"},
                "process_id": {"type": "string"},
                "action_type": {"type": "string", "enum": ["tentativa_1", "tentativa_2", "tentativa_3", "visita", "encaminhamento_ct", "analise"]},
                "period_start": {"type": "string", "format": "date-time"},
                "period_end": {"type": "string", "format": "date-time"},
                "absence_count": {"type": "integer"},
                "meeting_date": {"type": "string", "format": "date-time"},
                "meeting_time": {"type": "string", "example": "09:30"},
                "contact_succeeded": {"$ref": "#/definitions/Answer"},
                "contact_person": {"type": "string"},
                "contact_date": {"type": "string", "format": "date-time"},
                "contact_reason": {"type": "string"},
                "contact_returned": {"$ref": "#/definitions/Answer"},
                "visit_agent": {"type": "string"},
                "visit_date": {"type": "string", "format": "date-time"},
                "visit_succeeded": {"$ref": "#/definitions/Answer"},
                "visit_contact_person": {"type": "string"},
                "visit_reason": {"type": "string"},
                "visit_returned": {"$ref": "#/definitions/Answer"},
                "ct_sent_date": {"type": "string", "format": "date-time"},
                "ct_feedback": {"type": "string"},
                "ct_returned": {"$ref": "#/definitions/Answer"},
                "analysis_notes": {"type": "string"},
                "created_by": {"type": "string"},
                "created_at": {"type": "string", "format": "date-time"},
                "updated_at": {"type": "string", "format": "date-time"}
            },
            "required": ["student_id", "action_type"]
        },
        "Answer": {
            "type": "string",
            "enum": ["yes", "no"],
            "x-nullable": true
        },
        "OccurrenceRequest": {
            "type": "object",
            "properties": {
                "student_id": {"type": "string"},
                "occurred_at": {"type": "string", "format": "date-time"},
                "category": {"type": "string"},
                "severity": {"type": "string", "enum": ["leve", "moderada", "grave"]},
                "description": {"type": "string"},
                "measures_taken": {"type": "string"},
                "guardian_notified": {"$ref": "#/definitions/Answer"},
                "created_by": {"type": "string"}
            },
            "required": ["student_id", "occurred_at", "category", "severity", "description"]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "details": {"type": "object"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
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
