// Package webhook authenticates GitHub webhook notifications and dispatches
// them to per-event handlers.
//
// # Security Model
//
//   - HMAC signatures verified with hmac.Equal (constant-time comparison)
//   - A single configured algorithm (sha256 by default); a header naming any
//     other algorithm is rejected instead of trusted
//   - Optional secondary token passed as the "hash" query parameter
//   - Body size limits enforced before anything else is read
//   - Request logging excludes payloads
//
// # Request Flow
//
//  1. HTTP request arrives at the configured path (any method)
//  2. Body size checked (413 if too large)
//  3. Notification built from the body and a snapshot of headers and query
//  4. Validation, first failure wins:
//     token, method (POST), event, signature presence, signature match
//  5. Dispatch by event name; unregistered events fall back to the
//     "default" handler or a built-in message ("ping" has its own)
//  6. The handler's response is written as {code, http_code, status, data}
//
// # Example Usage
//
//	h, err := webhook.NewHandler(webhook.Config{Secret: secret}, logger)
//	if err != nil {
//		return err
//	}
//	h.On(webhook.EventWorkflowRun, trigger.Handle)
//
//	server := webhook.NewServer(webhook.ServerConfig{Listen: "127.0.0.1:8080"}, h, logger)
//	if err := server.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
package webhook
