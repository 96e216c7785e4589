package fbgraph

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrs "github.com/jamesprial/go-fbgraph/pkg/errors"
)

type item struct {
	ID string `facebook:"id"`
}

// pageFetcher serves page bodies keyed by the value of one query parameter.
type pageFetcher struct {
	param string
	pages map[string]string

	mu   sync.Mutex
	urls []string
	err  error
}

func (f *pageFetcher) FetchPage(_ context.Context, rawURL string) (string, error) {
	f.mu.Lock()
	f.urls = append(f.urls, rawURL)
	f.mu.Unlock()

	if f.err != nil {
		return "", f.err
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	body, ok := f.pages[u.Query().Get(f.param)]
	if !ok {
		return "", fmt.Errorf("no page for %s", rawURL)
	}
	return body, nil
}

func (f *pageFetcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.urls)
}

func itemsJSON(prefix string, n int) string {
	s := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			s += ","
		}
		s += fmt.Sprintf(`{"id":"%s%d"}`, prefix, i)
	}
	return s
}

const feedURL = "https://graph.example.com/v21.0/me/feed?access_token=tok&limit=2"

func TestConnectionCursorLoopGuard(t *testing.T) {
	fetcher := &pageFetcher{param: "after", pages: map[string]string{
		"":   `{"data":[{"id":"a"},{"id":"b"}],"paging":{"cursors":{"before":"b0","after":"c1"}}}`,
		"c1": `{"data":[{"id":"c"}],"paging":{"cursors":{"before":"b1","after":"c1"}}}`,
	}}

	body, err := fetcher.FetchPage(context.Background(), feedURL)
	require.NoError(t, err)
	first, err := NewConnection[item](fetcher, nil, feedURL, body)
	require.NoError(t, err)

	assert.Equal(t, PagingCursor, first.Scheme())
	assert.True(t, first.HasNext())
	assert.False(t, first.HasPrevious(), "first page was requested without a cursor")

	desc, ok := first.NextPage()
	require.True(t, ok)
	assert.Equal(t, "c1", desc.Cursor)

	second, err := first.FetchNextPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []item{{ID: "c"}}, second.Data())
	assert.False(t, second.HasNext(), "after cursor repeats the one that requested the page")

	_, err = second.FetchNextPage(context.Background())
	assert.ErrorIs(t, err, pkgerrs.ErrPaginationExhausted)
	assert.Equal(t, 2, fetcher.calls())
}

func TestConnectionLoopGuardWithoutCursorInNextURL(t *testing.T) {
	base := "https://graph.example.com/v21.0/me/feed?page="
	fetcher := &pageFetcher{param: "page", pages: map[string]string{
		"1": `{"data":[{"id":"a"}],"paging":{"cursors":{"after":"A"},"next":"` + base + `2"}}`,
		"2": `{"data":[{"id":"b"}],"paging":{"cursors":{"after":"A"},"next":"` + base + `3"}}`,
		"3": `{"data":[{"id":"c"}],"paging":{"cursors":{"after":"B"}}}`,
	}}

	first, err := NewConnection[item](fetcher, nil, base+"1", fetcher.pages["1"])
	require.NoError(t, err)
	assert.Equal(t, PagingURL, first.Scheme())
	require.True(t, first.HasNext())

	second, err := first.FetchNextPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.AfterCursor(), second.AfterCursor())
	assert.False(t, second.HasNext(), "after cursor repeats the one of the linking page")

	items, err := first.Collect(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []item{{ID: "a"}, {ID: "b"}}, items)
	assert.Equal(t, 2, fetcher.calls())
}

func TestConnectionCursorSynthesis(t *testing.T) {
	requestURL := "https://graph.example.com/v21.0/me/feed?before=old&limit=2"
	conn, err := NewConnection[item](nil, nil, requestURL,
		`{"data":[{"id":"1"}],"paging":{"cursors":{"before":"b1","after":"a1"}}}`)
	require.NoError(t, err)

	desc, ok := conn.NextPage()
	require.True(t, ok)
	u, err := url.Parse(desc.URL)
	require.NoError(t, err)
	assert.Equal(t, "a1", u.Query().Get("after"))
	assert.False(t, u.Query().Has("before"))
	assert.Equal(t, "2", u.Query().Get("limit"))
	assert.Equal(t, "/v21.0/me/feed", u.Path)

	prev, ok := conn.PreviousPage()
	require.True(t, ok)
	u, err = url.Parse(prev.URL)
	require.NoError(t, err)
	assert.Equal(t, "b1", u.Query().Get("before"))
	assert.False(t, u.Query().Has("after"))
}

func TestConnectionCursorPreviousRequiresCursorRequest(t *testing.T) {
	tests := []struct {
		name       string
		requestURL string
		want       bool
	}{
		{"no cursor on request", "https://graph.example.com/v21.0/me/feed", false},
		{"after on request", "https://graph.example.com/v21.0/me/feed?after=x", true},
		{"same before on request", "https://graph.example.com/v21.0/me/feed?before=b1", false},
		{"other before on request", "https://graph.example.com/v21.0/me/feed?before=b9", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, err := NewConnection[item](nil, nil, tt.requestURL,
				`{"data":[{"id":"1"}],"paging":{"cursors":{"before":"b1","after":"a1"}}}`)
			require.NoError(t, err)
			assert.Equal(t, tt.want, conn.HasPrevious())
		})
	}
}

func TestConnectionCursorEmptyPageEnds(t *testing.T) {
	conn, err := NewConnection[item](nil, nil, feedURL,
		`{"data":[],"paging":{"cursors":{"before":"b","after":"a"}}}`)
	require.NoError(t, err)

	assert.Empty(t, conn.Data())
	assert.NotNil(t, conn.Data())
	assert.False(t, conn.HasNext())
}

func TestConnectionURLPagingIterator(t *testing.T) {
	base := "https://graph.example.com/v21.0/me/feed?page="
	pages := map[string]string{}
	for i := 1; i <= 3; i++ {
		var paging []string
		if i > 1 {
			paging = append(paging, fmt.Sprintf(`"previous":"%s%d"`, base, i-1))
		}
		if i < 3 {
			paging = append(paging, fmt.Sprintf(`"next":"%s%d"`, base, i+1))
		}
		pagingJSON := ""
		for j, p := range paging {
			if j > 0 {
				pagingJSON += ","
			}
			pagingJSON += p
		}
		pages[fmt.Sprint(i)] = fmt.Sprintf(`{"data":[%s],"paging":{%s}}`, itemsJSON(fmt.Sprintf("p%d-", i), 6), pagingJSON)
	}
	fetcher := &pageFetcher{param: "page", pages: pages}

	first, err := NewConnection[item](fetcher, nil, base+"1", pages["1"])
	require.NoError(t, err)
	assert.Equal(t, PagingURL, first.Scheme())
	assert.False(t, first.HasPrevious())

	it := first.Iterator(context.Background())
	var all []item
	for i := 0; i < 3; i++ {
		require.True(t, it.HasNext(), "page %d", i+1)
		page, err := it.Next()
		require.NoError(t, err)
		assert.Len(t, page, 6)
		all = append(all, page...)
	}

	assert.Len(t, all, 18)
	assert.Equal(t, "p3-5", all[17].ID)
	assert.False(t, it.HasNext())
	assert.Equal(t, base+"3", it.Snapshot().RequestURL())
	assert.True(t, it.Snapshot().HasPrevious())

	_, err = it.Next()
	assert.ErrorIs(t, err, pkgerrs.ErrPaginationExhausted)
	assert.Equal(t, 2, fetcher.calls())

	prev, err := it.Snapshot().FetchPreviousPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "p2-0", prev.Data()[0].ID)
}

func TestConnectionTotalCount(t *testing.T) {
	conn, err := NewConnection[item](nil, nil, "", `{"data":[{"id":"1"}]}`)
	require.NoError(t, err)
	_, ok := conn.TotalCount()
	assert.False(t, ok)
	assert.True(t, conn.Summary().IsNull())

	conn, err = NewConnection[item](nil, nil, "", `{"data":[],"summary":{"total_count":42,"order":"ranked"}}`)
	require.NoError(t, err)
	count, ok := conn.TotalCount()
	assert.True(t, ok)
	assert.Equal(t, int64(42), count)
	order, _ := conn.Summary().Get("order")
	s, _ := order.AsString()
	assert.Equal(t, "ranked", s)
}

func TestConnectionDataShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []item
	}{
		{"array", `{"data":[{"id":"1"},{"id":"2"}]}`, []item{{ID: "1"}, {ID: "2"}}},
		{"single object", `{"data":{"id":"1"}}`, []item{{ID: "1"}}},
		{"empty object", `{"data":{}}`, []item{}},
		{"missing", `{"paging":{}}`, []item{}},
		{"top-level array", `[{"id":"9"}]`, []item{{ID: "9"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, err := NewConnection[item](nil, nil, "", tt.body)
			require.NoError(t, err)
			assert.Equal(t, tt.want, conn.Data())
			assert.Equal(t, PagingNone, conn.Scheme())
			assert.False(t, conn.HasNext())
		})
	}
}

func TestConnectionMalformedPage(t *testing.T) {
	_, err := NewConnection[item](nil, nil, "", `{"data":[`)
	assert.ErrorIs(t, err, pkgerrs.ErrMalformedJSON)

	_, err = NewConnection[item](nil, nil, "", "")
	assert.ErrorIs(t, err, pkgerrs.ErrEmptyInput)
}

func TestConnectionWithoutFetcher(t *testing.T) {
	conn, err := NewConnection[item](nil, nil, "",
		`{"data":[{"id":"1"}],"paging":{"next":"https://graph.example.com/v21.0/me/feed?page=2"}}`)
	require.NoError(t, err)
	require.True(t, conn.HasNext())

	_, err = conn.FetchNextPage(context.Background())
	var stateErr *pkgerrs.StateError
	assert.ErrorAs(t, err, &stateErr)
}

func TestConnectionFetchErrorKeepsIterator(t *testing.T) {
	fetcher := &pageFetcher{param: "page", err: errors.New("boom")}
	conn, err := NewConnection[item](fetcher, nil, "",
		`{"data":[{"id":"1"}],"paging":{"next":"https://graph.example.com/v21.0/me/feed?page=2"}}`)
	require.NoError(t, err)

	it := conn.Iterator(context.Background())
	_, err = it.Next()
	require.NoError(t, err)

	_, err = it.Next()
	assert.EqualError(t, err, "boom")
	assert.Same(t, conn, it.Snapshot())
	assert.True(t, it.HasNext())
}

func TestConnectionAllAndCollect(t *testing.T) {
	base := "https://graph.example.com/v21.0/me/feed?page="
	fetcher := &pageFetcher{param: "page", pages: map[string]string{
		"2": fmt.Sprintf(`{"data":[%s],"paging":{"previous":"%s1"}}`, itemsJSON("b", 2), base),
	}}
	first, err := NewConnection[item](fetcher, nil, base+"1",
		fmt.Sprintf(`{"data":[%s],"paging":{"next":"%s2"}}`, itemsJSON("a", 3), base))
	require.NoError(t, err)

	var ids []string
	for it, err := range first.All(context.Background()) {
		require.NoError(t, err)
		ids = append(ids, it.ID)
	}
	assert.Equal(t, []string{"a0", "a1", "a2", "b0", "b1"}, ids)

	items, err := first.Collect(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	fetcher.err = errors.New("offline")
	items, err = first.Collect(context.Background(), 0)
	assert.Error(t, err)
	assert.Len(t, items, 3)
}

type statusRequestor struct {
	status int
	body   string
	err    error
}

func (r statusRequestor) Get(context.Context, string) (int, string, error) {
	return r.status, r.body, r.err
}

func TestRequestorFetcher(t *testing.T) {
	rawURL := "https://graph.example.com/v21.0/me/feed?access_token=secret"

	body, err := RequestorFetcher{Requestor: statusRequestor{status: 200, body: `{"data":[]}`}}.
		FetchPage(context.Background(), rawURL)
	require.NoError(t, err)
	assert.Equal(t, `{"data":[]}`, body)

	_, err = RequestorFetcher{Requestor: statusRequestor{status: 500, body: "down"}}.
		FetchPage(context.Background(), rawURL)
	var transportErr *pkgerrs.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, 500, transportErr.StatusCode)
	assert.NotContains(t, transportErr.URL, "secret")

	_, err = RequestorFetcher{Requestor: statusRequestor{err: errors.New("reset")}}.
		FetchPage(context.Background(), rawURL)
	assert.ErrorIs(t, err, pkgerrs.ErrTransport)
}

func TestPagingSchemeString(t *testing.T) {
	assert.Equal(t, "none", PagingNone.String())
	assert.Equal(t, "url", PagingURL.String())
	assert.Equal(t, "cursor", PagingCursor.String())
}
