package httpapi

import (
	"net/http"

	"github.com/Guilhem-Bonnet/watch-roulette/internal/buildinfo"
	"github.com/Guilhem-Bonnet/watch-roulette/internal/httpjson"
)

// handleOpenAPI renvoie la description OpenAPI de l'API v1.
func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	httpjson.Write(w, http.StatusOK, openAPIDocument())
}

func openAPIDocument() map[string]any {
	jsonOK := func(description, schemaRef string) map[string]any {
		return map[string]any{
			"description": description,
			"content": map[string]any{
				"application/json": map[string]any{
					"schema": map[string]any{"$ref": schemaRef},
				},
			},
		}
	}
	jsonArray := func(description, itemRef string) map[string]any {
		return map[string]any{
			"description": description,
			"content": map[string]any{
				"application/json": map[string]any{
					"schema": map[string]any{"type": "array", "items": map[string]any{"$ref": itemRef}},
				},
			},
		}
	}
	jsonErr := func(description string) map[string]any {
		return jsonOK(description, "#/components/schemas/Error")
	}
	queryParam := func(name, typ, description string, extra map[string]any) map[string]any {
		schema := map[string]any{"type": typ}
		for k, v := range extra {
			schema[k] = v
		}
		return map[string]any{"name": name, "in": "query", "description": description, "schema": schema}
	}
	pathParam := func(name string, schema map[string]any) map[string]any {
		return map[string]any{"name": name, "in": "path", "required": true, "schema": schema}
	}

	strArray := map[string]any{"type": "array", "items": map[string]any{"type": "string"}}

	return map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":   "watch-roulette API",
			"version": buildinfo.Current().Version,
		},
		"components": map[string]any{
			"schemas": map[string]any{
				"Error": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"error":   map[string]any{"type": "string"},
						"details": map[string]any{"type": "object", "additionalProperties": map[string]any{"type": "string"}},
					},
					"required": []any{"error"},
				},
				"Title": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"id":           map[string]any{"type": "string"},
						"title":        map[string]any{"type": "string"},
						"overview":     map[string]any{"type": "string"},
						"type":         map[string]any{"type": "string", "enum": []any{"movie", "series"}},
						"releaseYear":  map[string]any{"type": "integer"},
						"firstAirYear": map[string]any{"type": "integer"},
						"lastAirYear":  map[string]any{"type": "integer"},
						"rating":       map[string]any{"type": "integer", "minimum": 0, "maximum": 100},
						"genres":       strArray,
						"cast":         strArray,
						"directors":    strArray,
						"creators":     strArray,
						"images": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"poster":      map[string]any{"type": "string"},
								"posterLarge": map[string]any{"type": "string"},
								"backdrop":    map[string]any{"type": "string"},
							},
						},
						"link":        map[string]any{"type": "string"},
						"service":     map[string]any{"type": "string"},
						"runtime":     map[string]any{"type": "integer"},
						"seasonCount": map[string]any{"type": "integer"},
					},
					"required": []any{"id", "title", "overview", "type", "rating", "images"},
				},
				"PoolStatus": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"country":     map[string]any{"type": "string"},
						"type":        map[string]any{"type": "string", "enum": []any{"movie", "series"}},
						"size":        map[string]any{"type": "integer"},
						"refreshedAt": map[string]any{"type": "string", "format": "date-time"},
						"ageSeconds":  map[string]any{"type": "integer"},
						"expired":     map[string]any{"type": "boolean"},
						"refreshing":  map[string]any{"type": "boolean"},
						"queued":      map[string]any{"type": "boolean"},
					},
				},
				"Health": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"status":      map[string]any{"type": "string", "enum": []any{"ok", "degraded", "unavailable"}},
						"totalTitles": map[string]any{"type": "integer"},
						"hits":        map[string]any{"type": "integer"},
						"misses":      map[string]any{"type": "integer"},
						"hitRate":     map[string]any{"type": "number"},
						"inFlight":    map[string]any{"type": "integer"},
						"queueDepth":  map[string]any{"type": "integer"},
						"database":    map[string]any{"type": "string"},
						"pools":       map[string]any{"type": "array", "items": map[string]any{"$ref": "#/components/schemas/PoolStatus"}},
					},
				},
				"RefreshAccepted": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"pool":   map[string]any{"type": "string"},
						"status": map[string]any{"type": "string"},
						"queued": map[string]any{"type": "integer"},
					},
				},
				"RefreshRun": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"id":         map[string]any{"type": "string"},
						"country":    map[string]any{"type": "string"},
						"type":       map[string]any{"type": "string"},
						"state":      map[string]any{"type": "string", "enum": []any{"running", "completed", "partial", "empty", "failed"}},
						"pages":      map[string]any{"type": "integer"},
						"fetched":    map[string]any{"type": "integer"},
						"kept":       map[string]any{"type": "integer"},
						"errorCode":  map[string]any{"type": "string"},
						"error":      map[string]any{"type": "string"},
						"startedAt":  map[string]any{"type": "string", "format": "date-time"},
						"finishedAt": map[string]any{"type": "string", "format": "date-time"},
						"durationMs": map[string]any{"type": "integer"},
					},
				},
				"Settings": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"minWeight":            map[string]any{"type": "integer", "minimum": 1, "maximum": 100},
						"maxRecentPicks":       map[string]any{"type": "integer", "minimum": 1, "maximum": 50},
						"refreshWorkers":       map[string]any{"type": "integer", "minimum": 1, "maximum": 16},
						"defaultExcludeRecent": map[string]any{"type": "boolean"},
					},
					"additionalProperties": false,
				},
			},
		},
		"paths": map[string]any{
			"/api/v1/discover": map[string]any{
				"get": map[string]any{
					"summary": "Pick one random title",
					"parameters": []any{
						queryParam("country", "string", "ISO 3166-1 alpha-2 country code", map[string]any{"minLength": 2, "maxLength": 2}),
						queryParam("type", "string", "Content type", map[string]any{"enum": []any{"any", "movie", "series"}}),
						queryParam("minRating", "integer", "Minimum rating (strict pass only)", map[string]any{"minimum": 0, "maximum": 100}),
						queryParam("excludeRecent", "boolean", "Skip titles recently shown to the user (strict pass only)", nil),
						queryParam("userId", "string", "Opaque user id; defaults to the roulette_uid cookie", nil),
					},
					"responses": map[string]any{
						"200": jsonOK("Picked title. Header X-Roulette-Relaxed is set when filters were relaxed.", "#/components/schemas/Title"),
						"400": jsonErr("Invalid query"),
						"404": jsonErr("Unknown country or no content found"),
						"429": jsonErr("Rate limited"),
					},
				},
			},
			"/api/v1/pools": map[string]any{
				"get": map[string]any{
					"summary":   "List pools",
					"responses": map[string]any{"200": jsonArray("Pools", "#/components/schemas/PoolStatus")},
				},
			},
			"/api/v1/pools/refresh": map[string]any{
				"post": map[string]any{
					"summary":   "Queue a refresh of every pool",
					"responses": map[string]any{"202": jsonOK("Queued", "#/components/schemas/RefreshAccepted")},
				},
			},
			"/api/v1/pools/{country}/{type}/refresh": map[string]any{
				"post": map[string]any{
					"summary": "Queue a refresh of one pool",
					"parameters": []any{
						pathParam("country", map[string]any{"type": "string"}),
						pathParam("type", map[string]any{"type": "string", "enum": []any{"movie", "series"}}),
					},
					"responses": map[string]any{
						"202": jsonOK("Queued", "#/components/schemas/RefreshAccepted"),
						"400": jsonErr("Invalid type"),
						"404": jsonErr("Unknown pool"),
						"409": jsonErr("Refresh already queued or in flight"),
						"503": jsonErr("Refresh queue full"),
					},
				},
			},
			"/api/v1/refresh-runs": map[string]any{
				"get": map[string]any{
					"summary":    "List recent refresh runs",
					"parameters": []any{queryParam("limit", "integer", "Max runs (default 100, max 500)", nil)},
					"responses":  map[string]any{"200": jsonArray("Runs", "#/components/schemas/RefreshRun")},
				},
			},
			"/api/v1/refresh-runs/{id}": map[string]any{
				"get": map[string]any{
					"summary":    "Get a refresh run",
					"parameters": []any{pathParam("id", map[string]any{"type": "string"})},
					"responses": map[string]any{
						"200": jsonOK("Run", "#/components/schemas/RefreshRun"),
						"404": jsonErr("Not found"),
					},
				},
			},
			"/api/v1/settings": map[string]any{
				"get": map[string]any{
					"summary":   "Get settings",
					"responses": map[string]any{"200": jsonOK("Settings", "#/components/schemas/Settings")},
				},
				"put": map[string]any{
					"summary": "Update settings",
					"requestBody": map[string]any{
						"required": true,
						"content": map[string]any{
							"application/json": map[string]any{"schema": map[string]any{"$ref": "#/components/schemas/Settings"}},
						},
					},
					"responses": map[string]any{
						"200": jsonOK("Settings", "#/components/schemas/Settings"),
						"400": jsonErr("Invalid settings"),
					},
				},
				"delete": map[string]any{
					"summary":   "Reset settings to defaults",
					"responses": map[string]any{"200": jsonOK("Settings", "#/components/schemas/Settings")},
				},
			},
			"/api/v1/health": map[string]any{
				"get": map[string]any{
					"summary": "Pool health",
					"responses": map[string]any{
						"200": jsonOK("Healthy or degraded", "#/components/schemas/Health"),
						"503": jsonOK("No title can be served", "#/components/schemas/Health"),
					},
				},
			},
			"/api/v1/version": map[string]any{
				"get": map[string]any{
					"summary":   "Build info",
					"responses": map[string]any{"200": map[string]any{"description": "OK"}},
				},
			},
			"/api/v1/events": map[string]any{
				"get": map[string]any{
					"summary": "Server-sent events (pool.refreshing, pool.refreshed, pool.empty, pool.refresh_failed, settings.updated)",
					"responses": map[string]any{
						"200": map[string]any{"description": "text/event-stream"},
					},
				},
			},
			"/api/v1/openapi.json": map[string]any{
				"get": map[string]any{
					"summary":   "This document",
					"responses": map[string]any{"200": map[string]any{"description": "OK"}},
				},
			},
		},
	}
}
