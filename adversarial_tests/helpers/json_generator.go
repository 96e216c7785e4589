package helpers

import (
	"fmt"
	"strings"
)

// JSONGenerator creates malicious and malformed Graph API payloads for testing
type JSONGenerator struct{}

// NewJSONGenerator creates a new JSON generator
func NewJSONGenerator() *JSONGenerator {
	return &JSONGenerator{}
}

// GenerateDeeplyNestedThread creates a comment whose replies are nested depth
// levels deep through the comments edge.
func (g *JSONGenerator) GenerateDeeplyNestedThread(depth int) string {
	var sb strings.Builder
	for i := 0; i < depth; i++ {
		fmt.Fprintf(&sb, `{"id":"c%d","message":"reply at depth %d","comments":{"data":[`, i, i)
	}
	fmt.Fprintf(&sb, `{"id":"c%d","message":"leaf"}`, depth)
	for i := 0; i < depth; i++ {
		sb.WriteString(`]}}`)
	}
	return sb.String()
}

// GenerateMalformedEnvelopes creates connection payloads whose paging block or
// data member has the wrong shape. Each is valid JSON.
func (g *JSONGenerator) GenerateMalformedEnvelopes() []string {
	return []string{
		// data of the wrong kind
		`{"data": null}`,
		`{"data": "feed"}`,
		`{"data": 12345}`,
		`{"data": true}`,

		// paging of the wrong kind
		`{"data": [], "paging": null}`,
		`{"data": [], "paging": "next"}`,
		`{"data": [], "paging": []}`,
		`{"data": [], "paging": {"next": 42}}`,
		`{"data": [], "paging": {"cursors": "abc"}}`,
		`{"data": [], "paging": {"cursors": {"after": 1, "before": false}}}`,

		// summary of the wrong kind
		`{"data": [], "summary": []}`,
		`{"data": [], "summary": {"total_count": "many"}}`,
		`{"data": [], "summary": {"total_count": -1}}`,
		`{"data": [], "summary": {"total_count": 1e400}}`,

		// not an envelope at all
		`"just a string"`,
		`42`,
		`null`,
		`{}`,
	}
}

// GenerateMalformedItems creates feed items whose fields have hostile values.
func (g *JSONGenerator) GenerateMalformedItems() []string {
	return []string{
		`{"id": 123}`,
		`{"id": null, "message": null}`,
		`{"id": "1", "created_time": "yesterday"}`,
		`{"id": "1", "created_time": 99999999999999999999}`,
		`{"id": "1", "status_type": "not_a_status"}`,
		`{"id": "1", "from": "someone"}`,
		`{"id": "1", "from": []}`,
		`{"id": "1", "shares": {"count": "lots"}}`,
		`{"id": "1", "likes": {"data": "none"}}`,
		`{"id": "1", "message_tags": {"0": {"id": "2"}}}`,
		`{"id": "1", "privacy": {"value": 7}}`,
		`{"id": "` + strings.Repeat("9", 10000) + `"}`,
		`{"id": "1", "message": "` + strings.Repeat("\\u0000", 100) + `"}`,
	}
}

// GenerateMalformedErrors creates error payloads of unexpected shapes.
func (g *JSONGenerator) GenerateMalformedErrors() []string {
	return []string{
		`{"error": null}`,
		`{"error": 17}`,
		`{"error": []}`,
		`{"error": {}}`,
		`{"error": {"code": "four", "message": 1}}`,
		`{"error": {"code": 4.5, "error_subcode": "x"}}`,
		`{"error_code": "613"}`,
		`{"error_code": null, "error_msg": null}`,
	}
}

// GenerateSyntaxErrors creates text that is not valid JSON.
func (g *JSONGenerator) GenerateSyntaxErrors() []string {
	return []string{
		`{"data": [`,
		`{"data": [}`,
		`{"data": []}}`,
		`{"data": [] "paging": {}}`,
		`{data: []}`,
		`{'data': []}`,
		`{"data": [1,]}`,
		`{"data": NaN}`,
		`<html><body>Service Unavailable</body></html>`,
		`{"data": []} trailing`,
		"{\"data\": \"\xff\xfe\"",
	}
}

// GenerateJSONBomb creates deeply nested empty arrays
func (g *JSONGenerator) GenerateJSONBomb(depth int) string {
	return strings.Repeat("[", depth) + strings.Repeat("]", depth)
}

// GenerateLargeFeed creates a feed page with size items
func (g *JSONGenerator) GenerateLargeFeed(size int) string {
	items := make([]string, size)
	for i := range items {
		items[i] = fmt.Sprintf(`{"id":"100_%d","message":"post %d"}`, i, i)
	}
	return `{"data":[` + strings.Join(items, ",") + `],"paging":{"cursors":{"before":"MA","after":"MQ"}}}`
}

// GenerateSelfReferencingPaging creates a page whose next link points back at
// the URL it was fetched from.
func (g *JSONGenerator) GenerateSelfReferencingPaging(selfURL string) string {
	return fmt.Sprintf(`{"data":[{"id":"1"}],"paging":{"cursors":{"after":"c2VsZg"},"next":%q}}`, selfURL)
}

// GenerateMalformedTokenResponses creates token endpoint responses that carry
// no usable token
func (g *JSONGenerator) GenerateMalformedTokenResponses() []string {
	return []string{
		``,
		`{}`,
		`{"access_token": ""}`,
		`{"access_token": null}`,
		`{"token_type": "bearer"}`,
		`expires=5183999`,
		`access_token=&expires=5183999`,
		`{"access_token": "abc"`,
	}
}
