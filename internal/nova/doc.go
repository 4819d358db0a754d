// Package nova provides an HTTP client for the astrometry.net ("nova")
// plate-solving API.
//
// # Overview
//
// The client covers the calls platesolve needs to solve an image and fetch
// its results. It is stateful only in that it holds the session token
// returned by Login.
//
//   - client.go: Client, request helpers, URL normalization
//   - types.go: payloads mirroring the nova API schema
//   - errors.go: typed failures (AuthError, UploadError, TransportError)
//
// # Endpoints
//
//   - POST api/login                      → session token
//   - POST api/upload (multipart)         → submission id
//   - GET  api/submissions/{id}           → jobs, job_calibrations
//   - GET  api/jobs/{id}/info/            → tags, objects in field, calibration
//   - GET  api/jobs/{id}/annotations/     → labelled objects
//   - GET  {artifact}/{id}                → raw result bytes
//
// POST bodies carry a form field named request-json holding a JSON document,
// which is how nova expects its arguments.
//
// # Usage
//
//	client, err := nova.NewClient(nova.Options{APIKey: key})
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	if _, err := client.Login(ctx); err != nil {
//		return err
//	}
//	sub, err := client.Submit(ctx, "m104.jpg")
//
// # Resources
//
// The http.Client and its connection pool are created on the first request.
// Close releases idle connections and forgets the session; callers should
// defer it. A closed client can be reused after another Login.
//
// # Error Handling
//
//   - Login failures (non-2xx, malformed body, status != success): *AuthError
//   - Upload failures (missing file, network, rejected upload): *UploadError
//   - Everything else: *TransportError naming the operation
//
// HTTP failures inside these wrap a message like
// "api /api/submissions/42 returned status 500".
//
// # Design Rationale
//
// No retries, no token refresh and no rate limiting. The job monitor decides
// what to do with a failure; this package only reports it.
package nova
