// Package api is a client for the Hooker REST API.
package api

// DefaultBaseURL is the hosted Hooker instance.
const DefaultBaseURL = "https://hooker.monster"

// API route constants
const (
	RouteHooks        = "/api/hooks"  // + /{hookId}
	RouteEvents       = "/api/events" // + /{hookId} or /{eventId}
	RouteConfig       = "/api/config"
	RouteMQTTAuthUser = "/api/config/mqtt-jwt-user"
	RouteMQTTAuthHook = "/api/config/mqtt-jwt-hook/" // + {hookId}
)

// Sub-resources of a hook or event.
const (
	suffixName         = "name"
	suffixVisibility   = "visibility"
	suffixColumns      = "columns"
	suffixForwardRules = "forward-rules"
	suffixBookmark     = "bookmark"
)

// Query parameters for event listing.
const (
	QueryParamLimit    = "limit"
	QueryParamBeforeTs = "beforeTs"
	QueryParamBeforeID = "beforeId"
)
