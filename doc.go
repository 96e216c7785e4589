// Package fbgraph is a Go client for the Facebook Graph API and its legacy FQL
// endpoint.
//
// # Overview
//
// The client builds request URLs, performs the HTTP calls, maps JSON responses
// onto Go structs and walks paginated connections. Responses are decoded by
// the mapper package, which binds struct fields to JSON keys through the
// "facebook" struct tag:
//
//	type Post struct {
//		ID      string    `facebook:"id"`
//		Message string    `facebook:"message"`
//		Created time.Time `facebook:"created_time"`
//	}
//
// Representative Graph models live in pkg/types.
//
// # Quick Start
//
//	client, err := fbgraph.NewClient(&fbgraph.Config{
//		AccessToken: os.Getenv("FB_ACCESS_TOKEN"),
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	me, err := fbgraph.FetchObject[types.User](ctx, client, "me", fbgraph.Fields("id", "name"))
//	if err != nil {
//		log.Fatal(err)
//	}
//
// # Connection Lifecycle
//
// NewClient performs no network calls. When only an AppID and AppSecret are
// configured, the first API call (or an explicit Connect) obtains an app access
// token. A failed Connect is retried by the next call.
//
// # Pagination
//
// FetchConnection returns the first page of a connection as a *Connection.
// Graph links pages either with previous/next URLs or with before/after
// cursors; both are handled, and cursor-only pages are followed by re-issuing
// the original request with the cursor applied.
//
//	feed, err := fbgraph.FetchConnection[types.Post](ctx, client, "me/feed", fbgraph.Limit(25))
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	it := feed.Iterator(ctx)
//	for it.HasNext() {
//		posts, err := it.Next()
//		if err != nil {
//			log.Fatal(err)
//		}
//		for _, post := range posts {
//			fmt.Println(post.ID, post.Message)
//		}
//	}
//
// Connections are immutable: FetchNextPage returns a new Connection. Range
// over every item with Connection.All:
//
//	for post, err := range feed.All(ctx) {
//		...
//	}
//
// Request fbgraph.Summary() to receive a total count through TotalCount.
//
// # Rate Limiting
//
// Requests are throttled client-side and deferred when the API answers with
// Retry-After, an exhausted X-App-Usage quota or a business use case header
// announcing when access is regained. Nothing is retried automatically.
//
// # Error Handling
//
// Errors are defined in pkg/errors and match sentinel values with errors.Is:
//
//	_, err := fbgraph.FetchObject[types.Page](ctx, client, "20531316728")
//	switch {
//	case errors.Is(err, pkgerrs.ErrRateLimited):
//		// back off
//	case errors.Is(err, pkgerrs.ErrOAuth):
//		// refresh the token
//	case errors.Is(err, pkgerrs.ErrFieldConversion):
//		// the response did not match the struct
//	}
//
// Use errors.As with *errors.GraphError for the code, subcode and fbtrace_id.
//
// # Logging
//
// Provide a *slog.Logger in Config.Logger. Requests are logged at DEBUG with
// access tokens redacted; the mapper logs skipped and swallowed field failures.
//
// # Security Considerations
//
// Set UseAppSecretProof to sign every call with appsecret_proof, and keep
// tokens out of configuration files by referencing environment variables,
// which LoadConfig expands.
package fbgraph
