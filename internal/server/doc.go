/*
Package server provides the HTTP server and middleware chain for the gateway.

# Middleware Components

## Request ID (requestid.go)

RequestIDMiddleware keeps a UUID X-Request-ID from the caller or generates
one. It is stored in the context (GetRequestID), echoed in the response and
forwarded to the backend by the proxy.

## Logging (logging.go)

LoggingMiddleware emits one "request completed" record per request with
method, path, route pattern, status, bytes and duration. Handlers enrich it
with AddLogField/AddError; credential values are never logged, only the
cookie name they came from.

## Credentials (authmiddleware.go)

CredentialMiddleware resolves the bearer credential from cookies and stores it
in the context. RequireCredential answers 401 MISSING_CREDENTIAL when none
was found, without calling the backend.

## CORS (cors.go)

CORSMiddleware answers preflights and sets CORS headers for allowed origins.

## Timeout (timeout.go)

TimeoutMiddleware puts a deadline on the request context.

# Middleware Chain Order

 1. RequestIDMiddleware
 2. LoggingMiddleware
 3. CORSMiddleware (when origins are configured)
 4. TimeoutMiddleware
 5. Recoverer
 6. OTel instrumentation

The runtime appends CredentialMiddleware after the chain. Anonymous requests
pass through it untouched.
*/
package server
