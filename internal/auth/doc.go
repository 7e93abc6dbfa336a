// Package auth provides the optional credential gate in front of the MCP routes.
//
// # Authentication Methods
//
//   - JWT Tokens: clients send Authorization: Bearer <token>. Tokens are HS256,
//     issued by "dflow-mcp", and must carry sub and exp claims. Mint them with
//     `dflow-mcp token --sub NAME`.
//
//   - API Keys: clients send x-api-key: <key>, matched against auth.api_keys.
//
// When an Authorization header is present it decides the outcome; x-api-key is
// only consulted without one.
//
// # Middleware
//
//	gate := auth.Gate(auth.GateConfig{
//	    Tokens:  auth.NewJWTVerifier(secret),
//	    APIKeys: auth.NewAPIKeySet(keys),
//	    Exempt:  []string{"/health"},
//	})
//	handler = gate(handler)
//
// Rejected requests get HTTP 401 and a JSON-RPC error body (code -32600,
// "authentication required", id null) carrying the usual CORS headers.
// Preflight OPTIONS requests are never gated.
//
// Handlers read the caller with FromContext.
package auth
