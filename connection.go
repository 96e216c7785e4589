package fbgraph

import (
	"context"
	"net/http"
	"net/url"

	"github.com/jamesprial/go-fbgraph/internal"
	pkgerrs "github.com/jamesprial/go-fbgraph/pkg/errors"
	"github.com/jamesprial/go-fbgraph/pkg/jsonvalue"
	"github.com/jamesprial/go-fbgraph/pkg/mapper"
)

// PageFetcher retrieves the JSON text of one page of a connection. *Client
// implements it; RequestorFetcher adapts a bare WebRequestor.
type PageFetcher interface {
	FetchPage(ctx context.Context, rawURL string) (string, error)
}

// WebRequestor is the minimal HTTP transport: one GET returning the status
// code and body.
type WebRequestor interface {
	Get(ctx context.Context, rawURL string) (int, string, error)
}

// RequestorFetcher adapts a WebRequestor to PageFetcher. Failed round trips
// and non-2xx statuses are returned as *errors.TransportError without looking
// at the body.
type RequestorFetcher struct {
	Requestor WebRequestor
}

// FetchPage implements PageFetcher.
func (f RequestorFetcher) FetchPage(ctx context.Context, rawURL string) (string, error) {
	status, body, err := f.Requestor.Get(ctx, rawURL)
	if err != nil {
		return "", &pkgerrs.TransportError{URL: internal.RedactURL(rawURL), Err: err}
	}
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return "", &pkgerrs.TransportError{URL: internal.RedactURL(rawURL), StatusCode: status, Body: body}
	}
	return body, nil
}

// PagingScheme identifies how a page links to its neighbours.
type PagingScheme int

const (
	// PagingNone means the payload carried no paging block.
	PagingNone PagingScheme = iota
	// PagingURL means the payload carried previous and/or next URLs.
	PagingURL
	// PagingCursor means the payload carried only before/after cursors.
	PagingCursor
)

func (s PagingScheme) String() string {
	switch s {
	case PagingURL:
		return "url"
	case PagingCursor:
		return "cursor"
	default:
		return "none"
	}
}

// PageDescriptor tells how to fetch a neighbouring page. URL is always an
// absolute request URL; Cursor is set when the URL was built from a cursor.
type PageDescriptor struct {
	URL    string
	Cursor string
}

// Connection is one page of a Graph connection together with its paging
// metadata. A Connection never changes after construction: fetching another
// page returns a new Connection.
type Connection[T any] struct {
	fetcher    PageFetcher
	mapper     *mapper.Mapper
	requestURL string

	data       []T
	scheme     PagingScheme
	previous   string
	next       string
	before     string
	after      string
	totalCount int64
	hasTotal   bool
	summary    jsonvalue.Value

	// repeated is set when the page's after cursor is the one that requested it,
	// either as the after parameter of its URL or as the linking page's cursor
	repeated bool
}

// NewConnection maps one page payload. requestURL is the URL that produced
// the payload; it is needed to follow cursors when the payload carries no
// next/previous URLs and may be empty otherwise. A nil mapper uses mapper.New().
func NewConnection[T any](fetcher PageFetcher, m *mapper.Mapper, requestURL, text string) (*Connection[T], error) {
	if m == nil {
		m = mapper.New()
	}

	root, err := m.Parse(text)
	if err != nil {
		return nil, err
	}
	env := internal.ParseEnvelope(root)

	data, err := mapper.ListFromValue[T](m, jsonvalue.Array(env.Data...))
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = []T{}
	}

	c := &Connection[T]{
		fetcher:    fetcher,
		mapper:     m,
		requestURL: requestURL,
		data:       data,
		previous:   env.Previous,
		next:       env.Next,
		before:     env.Before,
		after:      env.After,
		totalCount: env.TotalCount,
		hasTotal:   env.HasTotalCount,
		summary:    env.Summary,
	}

	switch {
	case c.previous != "" || c.next != "":
		c.scheme = PagingURL
	case c.before != "" || c.after != "":
		c.scheme = PagingCursor
	}

	if c.after != "" && c.after == queryParam(requestURL, "after") {
		c.repeated = true
	}
	return c, nil
}

// Data returns the items of this page. It is never nil.
func (c *Connection[T]) Data() []T {
	return c.data
}

// TotalCount returns summary.total_count; ok is false unless the request asked
// for a summary and the API sent one.
func (c *Connection[T]) TotalCount() (count int64, ok bool) {
	return c.totalCount, c.hasTotal
}

// Summary returns the raw summary object, or JSON null when absent.
func (c *Connection[T]) Summary() jsonvalue.Value {
	return c.summary
}

// Scheme reports which paging scheme the payload used.
func (c *Connection[T]) Scheme() PagingScheme {
	return c.scheme
}

// RequestURL returns the URL this page was fetched from, if known.
func (c *Connection[T]) RequestURL() string {
	return c.requestURL
}

// BeforeCursor returns paging.cursors.before, or "".
func (c *Connection[T]) BeforeCursor() string {
	return c.before
}

// AfterCursor returns paging.cursors.after, or "".
func (c *Connection[T]) AfterCursor() string {
	return c.after
}

// HasNext reports whether a following page can be fetched.
func (c *Connection[T]) HasNext() bool {
	_, ok := c.NextPage()
	return ok
}

// HasPrevious reports whether a preceding page can be fetched.
func (c *Connection[T]) HasPrevious() bool {
	_, ok := c.PreviousPage()
	return ok
}

// NextPage describes the following page. With URL paging this is the next
// URL; with cursor paging it is the request URL with the after cursor
// applied. A page whose after cursor equals the one that requested it has no
// next page, since following it would fetch the same page forever.
func (c *Connection[T]) NextPage() (PageDescriptor, bool) {
	if c.repeated {
		return PageDescriptor{}, false
	}

	switch c.scheme {
	case PagingURL:
		if c.next == "" {
			return PageDescriptor{}, false
		}
		return PageDescriptor{URL: c.next, Cursor: c.after}, true
	case PagingCursor:
		if c.after == "" || len(c.data) == 0 {
			return PageDescriptor{}, false
		}
		u, ok := withCursor(c.requestURL, "after", "before", c.after)
		if !ok {
			return PageDescriptor{}, false
		}
		return PageDescriptor{URL: u, Cursor: c.after}, true
	}
	return PageDescriptor{}, false
}

// PreviousPage describes the preceding page. With cursor paging a previous
// page exists only when this page was itself requested with a cursor.
func (c *Connection[T]) PreviousPage() (PageDescriptor, bool) {
	switch c.scheme {
	case PagingURL:
		if c.previous == "" {
			return PageDescriptor{}, false
		}
		return PageDescriptor{URL: c.previous, Cursor: c.before}, true
	case PagingCursor:
		if c.before == "" {
			return PageDescriptor{}, false
		}
		after, before := queryParam(c.requestURL, "after"), queryParam(c.requestURL, "before")
		if (after == "" && before == "") || before == c.before {
			return PageDescriptor{}, false
		}
		u, ok := withCursor(c.requestURL, "before", "after", c.before)
		if !ok {
			return PageDescriptor{}, false
		}
		return PageDescriptor{URL: u, Cursor: c.before}, true
	}
	return PageDescriptor{}, false
}

// FetchNextPage fetches the following page. It returns
// errors.ErrPaginationExhausted when there is none.
func (c *Connection[T]) FetchNextPage(ctx context.Context) (*Connection[T], error) {
	desc, ok := c.NextPage()
	if !ok {
		return nil, pkgerrs.ErrPaginationExhausted
	}
	next, err := c.fetch(ctx, desc)
	if err != nil {
		return nil, err
	}
	// next URLs need not carry the cursor, so compare with the page that linked here
	if desc.Cursor != "" && next.after == desc.Cursor {
		next.repeated = true
	}
	return next, nil
}

// FetchPreviousPage fetches the preceding page. It returns
// errors.ErrPaginationExhausted when there is none.
func (c *Connection[T]) FetchPreviousPage(ctx context.Context) (*Connection[T], error) {
	desc, ok := c.PreviousPage()
	if !ok {
		return nil, pkgerrs.ErrPaginationExhausted
	}
	return c.fetch(ctx, desc)
}

func (c *Connection[T]) fetch(ctx context.Context, desc PageDescriptor) (*Connection[T], error) {
	if c.fetcher == nil {
		return nil, &pkgerrs.StateError{Operation: "fetch page", Message: "connection has no page fetcher"}
	}

	body, err := c.fetcher.FetchPage(ctx, desc.URL)
	if err != nil {
		return nil, err
	}
	return NewConnection[T](c.fetcher, c.mapper, desc.URL, body)
}

// Iterator returns a forward-only iterator whose first Next yields this page.
func (c *Connection[T]) Iterator(ctx context.Context) *Iterator[T] {
	return &Iterator[T]{ctx: ctx, current: c}
}

// withCursor returns rawURL with param set to cursor and opposite removed.
func withCursor(rawURL, param, opposite, cursor string) (string, bool) {
	if rawURL == "" {
		return "", false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	q := u.Query()
	q.Set(param, cursor)
	q.Del(opposite)
	u.RawQuery = q.Encode()
	return u.String(), true
}

func queryParam(rawURL, name string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Query().Get(name)
}
