package api

// HeaderAuthorization is the standard HTTP Authorization header.
const HeaderAuthorization = "Authorization"

// TokenPrefix is the scheme used for personal access tokens:
// "Authorization: Token <token>"
const TokenPrefix = "Token "

// HeaderContentType is set on every request carrying a JSON body.
const HeaderContentType = "Content-Type"

// ContentTypeJSON is the only body encoding the API speaks.
const ContentTypeJSON = "application/json"
