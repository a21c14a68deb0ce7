// Package docs registers the OpenAPI document served under /swagger.
// Keep it in sync with the @Router annotations in internal/routes.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/register": {
            "post": {
                "tags": ["Auth"],
                "summary": "User registration",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/models.RegisterRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.RegisterResponse"}},
                    "400": {"description": "Invalid request", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}},
                    "409": {"description": "Username already exists", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}}
                }
            }
        },
        "/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "User login",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/models.LoginRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.AuthResponse"}},
                    "400": {"description": "Invalid request or invalid credentials", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}}
                }
            }
        },
        "/upload": {
            "post": {
                "security": [{"Bearer": []}],
                "tags": ["Wallpapers"],
                "summary": "Upload wallpaper",
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "parameters": [
                    {"type": "file", "in": "formData", "name": "image", "required": true},
                    {"type": "string", "in": "header", "name": "Idempotency-Key"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/models.UploadResponse"}},
                    "400": {"description": "Missing file or not an image", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}},
                    "401": {"description": "Unauthenticated", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}},
                    "413": {"description": "Image too large", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}},
                    "502": {"description": "Image storage failure", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}}
                }
            }
        },
        "/my-wallpapers": {
            "get": {
                "security": [{"Bearer": []}],
                "tags": ["Wallpapers"],
                "summary": "My wallpapers",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"type": "string"}}},
                    "401": {"description": "Unauthenticated", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}}
                }
            }
        },
        "/wallpapers": {
            "get": {
                "tags": ["Wallpapers"],
                "summary": "All wallpapers",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.GalleryItem"}}}
                }
            }
        },
        "/wallpaper": {
            "delete": {
                "security": [{"Bearer": []}],
                "tags": ["Wallpapers"],
                "summary": "Delete wallpaper",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/models.DeleteWallpaperRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.MessageResponse"}},
                    "403": {"description": "Not the owner", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}},
                    "404": {"description": "Unknown wallpaper", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}}
                }
            }
        },
        "/favorites": {
            "get": {
                "security": [{"Bearer": []}],
                "tags": ["Favorites"],
                "summary": "My favorites",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.FavoriteEntry"}}}
                }
            },
            "post": {
                "security": [{"Bearer": []}],
                "tags": ["Favorites"],
                "summary": "Add favorite",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/models.FavoriteRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.FavoriteResponse"}},
                    "404": {"description": "Unknown wallpaper", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}}
                }
            },
            "delete": {
                "security": [{"Bearer": []}],
                "tags": ["Favorites"],
                "summary": "Remove favorite",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/models.FavoriteRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.FavoriteResponse"}}
                }
            }
        },
        "/healthz": {"get": {"tags": ["System"], "summary": "Health check", "responses": {"200": {"description": "Healthy"}}}},
        "/readyz": {"get": {"tags": ["System"], "summary": "Readiness check", "responses": {"200": {"description": "Ready"}, "503": {"description": "Not ready"}}}},
        "/version": {"get": {"tags": ["System"], "summary": "Version information", "responses": {"200": {"description": "Version info"}}}}
    },
    "definitions": {
        "errors.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {
                    "type": "object",
                    "properties": {
                        "code": {"type": "string"},
                        "message": {"type": "string"},
                        "trace_id": {"type": "string"}
                    }
                },
                "message": {"type": "string"}
            }
        },
        "models.RegisterRequest": {"type": "object", "properties": {"username": {"type": "string"}, "password": {"type": "string"}}},
        "models.LoginRequest": {"type": "object", "properties": {"username": {"type": "string"}, "password": {"type": "string"}}},
        "models.RegisterResponse": {"type": "object", "properties": {"message": {"type": "string"}, "user_id": {"type": "string"}, "username": {"type": "string"}}},
        "models.AuthResponse": {"type": "object", "properties": {"token": {"type": "string"}, "user_id": {"type": "string"}, "username": {"type": "string"}, "expires_in": {"type": "integer"}}},
        "models.UploadResponse": {"type": "object", "properties": {"url": {"type": "string"}}},
        "models.GalleryItem": {"type": "object", "properties": {"url": {"type": "string"}, "username": {"type": "string"}, "created_at": {"type": "string"}, "is_favorite": {"type": "boolean"}}},
        "models.FavoriteRequest": {"type": "object", "properties": {"wallpaper_url": {"type": "string"}}},
        "models.FavoriteResponse": {"type": "object", "properties": {"message": {"type": "string"}, "wallpaper_url": {"type": "string"}, "favorited": {"type": "boolean"}}},
        "models.FavoriteEntry": {"type": "object", "properties": {"wallpaper_url": {"type": "string"}, "username": {"type": "string"}}},
        "models.DeleteWallpaperRequest": {"type": "object", "properties": {"url": {"type": "string"}}},
        "models.MessageResponse": {"type": "object", "properties": {"message": {"type": "string"}}}
    },
    "securityDefinitions": {
        "Bearer": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Wallpaper API",
	Description:      "Wallpaper sharing service: accounts, uploads, gallery and favorites.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
