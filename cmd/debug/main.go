package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	fbgraph "github.com/jamesprial/go-fbgraph"
	"github.com/jamesprial/go-fbgraph/pkg/jsonvalue"
)

// sampleResponse mimics a cursor-paged feed as Graph returns it
const sampleResponse = `{
	"data": [
		{"id": "100_1", "message": "first", "created_time": "2024-05-01T10:00:00+0000"},
		{"id": "100_2", "story": "Someone shared a link.", "created_time": "2024-05-01T09:00:00+0000"}
	],
	"paging": {
		"cursors": {"before": "QVFIUk1", "after": "QVFIUjZA"}
	},
	"summary": {"total_count": 2}
}`

func main() {
	pages := flag.Int("pages", 2, "number of pages to walk")
	flag.Parse()

	token := os.Getenv("FB_ACCESS_TOKEN")
	if token == "" || flag.NArg() == 0 {
		// Without a token and a path, inspect a canned payload instead
		testParsingLogic()
		return
	}

	// Route structured logs to stdout with debug level
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	client, err := fbgraph.NewClient(&fbgraph.Config{
		AccessToken: token,
		AppSecret:   os.Getenv("FB_APP_SECRET"),
		UserAgent:   "debug-app/1.0",
		Logger:      logger,
	})
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}

	ctx := context.Background()
	conn, err := fbgraph.FetchConnection[jsonvalue.Value](ctx, client, flag.Arg(0), fbgraph.Summary())
	if err != nil {
		log.Fatalf("Failed to fetch %s: %v", flag.Arg(0), err)
	}

	for n := 1; n <= *pages; n++ {
		describe(n, conn)
		if !conn.HasNext() {
			fmt.Println("No more pages available")
			return
		}
		conn, err = conn.FetchNextPage(ctx)
		if err != nil {
			log.Fatalf("Failed to fetch page %d: %v", n+1, err)
		}
	}
}

func describe(n int, conn *fbgraph.Connection[jsonvalue.Value]) {
	fmt.Printf("\n=== PAGE %d ===\n", n)
	fmt.Printf("Items:   %d\n", len(conn.Data()))
	fmt.Printf("Scheme:  %s\n", conn.Scheme())
	fmt.Printf("Cursors: before=%q after=%q\n", conn.BeforeCursor(), conn.AfterCursor())
	if total, ok := conn.TotalCount(); ok {
		fmt.Printf("Total:   %d\n", total)
	}
	if next, ok := conn.NextPage(); ok {
		fmt.Printf("Next:    cursor=%q\n", next.Cursor)
	}
	if prev, ok := conn.PreviousPage(); ok {
		fmt.Printf("Prev:    cursor=%q\n", prev.Cursor)
	}
	for i, item := range conn.Data() {
		if i >= 3 {
			fmt.Printf("  ... %d more\n", len(conn.Data())-i)
			break
		}
		fmt.Printf("  %s\n", item)
	}
}

func testParsingLogic() {
	fmt.Println("Usage: FB_ACCESS_TOKEN=... debug [-pages n] <path>")
	fmt.Println("No token or path given. Running parsing logic test...")

	requestURL := fbgraph.DefaultBaseURL + fbgraph.DefaultAPIVersion + "/me/feed?limit=2"
	conn, err := fbgraph.NewConnection[jsonvalue.Value](nil, nil, requestURL, sampleResponse)
	if err != nil {
		log.Fatalf("Failed to parse sample: %v", err)
	}
	describe(1, conn)

	if next, ok := conn.NextPage(); ok {
		fmt.Printf("Next page would be requested from:\n  %s\n", next.URL)
	}
}
