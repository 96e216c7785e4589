package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	fbgraph "github.com/jamesprial/go-fbgraph"
	pkgerrs "github.com/jamesprial/go-fbgraph/pkg/errors"
	"github.com/jamesprial/go-fbgraph/pkg/types"
	"github.com/jamesprial/go-fbgraph/pkg/validation"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file (optional)")
	pageID := flag.String("page", "20531316728", "page whose posts are listed")
	maxPosts := flag.Int("max", 15, "maximum number of posts to list")
	flag.Parse()

	// Route structured logs to stderr; adjust the level as needed.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	config := &fbgraph.Config{}
	if *configPath != "" {
		loaded, err := fbgraph.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
		config = loaded
	}
	if config.AccessToken == "" {
		config.AccessToken = os.Getenv("FB_ACCESS_TOKEN")
	}
	if config.AppID == "" {
		config.AppID = os.Getenv("FB_APP_ID")
	}
	if config.AppSecret == "" {
		config.AppSecret = os.Getenv("FB_APP_SECRET")
	}
	config.UserAgent = "example-app/1.0"
	config.Logger = logger

	client, err := fbgraph.NewClient(config)
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}

	ctx := context.Background()
	if err := client.Connect(ctx); err != nil {
		log.Fatalf("Failed to connect to the Graph API: %v", err)
	}
	fmt.Println("Connected to", client.BaseURL())

	// The "me" alias only resolves with a user or page token
	if config.AccessToken != "" {
		me, err := fbgraph.FetchObject[types.User](ctx, client, "me", fbgraph.Fields("id", "name"))
		switch {
		case errors.Is(err, pkgerrs.ErrOAuth):
			log.Fatalf("Access token rejected: %v", err)
		case err != nil:
			log.Printf("Failed to fetch me: %v", err)
		default:
			fmt.Printf("Authenticated as %s (%s)\n", me.Name, me.ID)
		}
	}

	page, err := fbgraph.FetchObject[types.Page](ctx, client, *pageID,
		fbgraph.Fields("id", "name", "category", "fan_count", "link"))
	if err != nil {
		log.Fatalf("Failed to fetch page %s: %v", *pageID, err)
	}
	if err := validation.ValidatePage(&page); err != nil {
		logger.Warn("page failed validation", "page", *pageID, "error", err)
	}
	fmt.Printf("\nPage: %s [%s], %d fans\n%s\n", page.Name, page.Category, page.FanCount, page.Link)

	// 1. Walk the page's posts page by page
	fmt.Println("\n1. Posts:")
	posts, err := fbgraph.FetchConnection[types.Post](ctx, client, *pageID+"/posts",
		fbgraph.Fields("id", "message", "created_time", "status_type"), fbgraph.Limit(5))
	if err != nil {
		log.Fatalf("Failed to fetch posts: %v", err)
	}

	it := posts.Iterator(ctx)
	listed := 0
	for it.HasNext() && listed < *maxPosts {
		batch, err := it.Next()
		if err != nil {
			log.Printf("Failed to fetch the next page: %v", err)
			break
		}
		for _, post := range batch {
			if err := validation.ValidatePost(&post); err != nil {
				logger.Warn("post failed validation", "post", post.ID, "error", err)
			}
			listed++
			fmt.Printf("   %s  %s  %.60s\n", post.Created.Format("2006-01-02"), post.ObjectID, post.Message)
		}
	}
	fmt.Printf("   Listed %d posts (paging: %s)\n", listed, it.Snapshot().Scheme())

	// 2. Count comments on the first post with a summary
	if first := posts.Data(); len(first) > 0 {
		comments, err := fbgraph.FetchConnection[types.Comment](ctx, client, first[0].ID+"/comments",
			fbgraph.Summary(), fbgraph.Limit(3))
		if err != nil {
			log.Printf("Failed to fetch comments: %v", err)
		} else {
			fmt.Println("\n2. Comments on the latest post:")
			if total, ok := comments.TotalCount(); ok {
				fmt.Printf("   %d in total\n", total)
			}
			for _, c := range comments.Data() {
				author := "unknown"
				if c.From != nil {
					author = c.From.Name
				}
				fmt.Printf("   - %s: %.80s\n", author, c.Message)
			}
		}
	}

	// 3. Fetch several objects in one batch call
	fmt.Println("\n3. Batch:")
	responses, err := client.ExecuteBatch(ctx,
		fbgraph.GetRequest(*pageID, fbgraph.Fields("id", "name")),
		fbgraph.GetRequest(*pageID+"/posts", fbgraph.Limit(1)),
	)
	if err != nil {
		log.Printf("Batch failed: %v", err)
		return
	}
	for i, resp := range responses {
		if resp == nil {
			continue
		}
		if err := resp.Err(); err != nil {
			fmt.Printf("   %d: %v\n", i, err)
			continue
		}
		fmt.Printf("   %d: status %d, %d bytes\n", i, resp.Code, len(resp.Body))
	}
}
