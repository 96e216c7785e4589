package fbgraph

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/jamesprial/go-fbgraph/internal"
	pkgerrs "github.com/jamesprial/go-fbgraph/pkg/errors"
	"github.com/jamesprial/go-fbgraph/pkg/jsonvalue"
	"github.com/jamesprial/go-fbgraph/pkg/mapper"
)

// BatchRequest is one operation of a batch call.
type BatchRequest struct {
	Method string
	// Path is relative to the versioned API root, e.g. "me/feed"
	Path   string
	Params []Parameter

	// Name lets later operations refer to this one's result with JSONPath,
	// e.g. "{result=friends:$.data.*.id}"
	Name string
	// DependsOn names an operation that must complete first
	DependsOn string
	// OmitResponseOnSuccess drops the response of a named operation
	OmitResponseOnSuccess bool
}

// GetRequest builds a GET batch operation.
func GetRequest(path string, params ...Parameter) *BatchRequest {
	return &BatchRequest{Method: http.MethodGet, Path: path, Params: params}
}

// PostRequest builds a POST batch operation whose parameters travel in the body.
func PostRequest(path string, params ...Parameter) *BatchRequest {
	return &BatchRequest{Method: http.MethodPost, Path: path, Params: params}
}

// DeleteRequest builds a DELETE batch operation.
func DeleteRequest(path string) *BatchRequest {
	return &BatchRequest{Method: http.MethodDelete, Path: path}
}

// BatchHeader is one response header of a batch operation.
type BatchHeader struct {
	Name  string `facebook:"name"`
	Value string `facebook:"value"`
}

// BatchResponse is the result of one batch operation.
type BatchResponse struct {
	Code    int           `facebook:"code"`
	Headers []BatchHeader `facebook:"headers"`
	Body    string        `facebook:"body"`
}

// Err returns the Graph error carried by the operation's body, a
// TransportError for any other non-2xx code, or nil.
func (r *BatchResponse) Err() error {
	if root, err := jsonvalue.Parse(r.Body); err == nil {
		if graphErr := internal.ParseGraphError(r.Code, root); graphErr != nil {
			return graphErr
		}
	}
	if r.Code < http.StatusOK || r.Code >= http.StatusMultipleChoices {
		return &pkgerrs.TransportError{StatusCode: r.Code, Body: r.Body}
	}
	return nil
}

// Header returns the value of the named header, matched case-insensitively.
func (r *BatchResponse) Header(name string) string {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// BatchResult maps the body of a batch response to T after checking Err.
func BatchResult[T any](c *Client, r *BatchResponse) (T, error) {
	var zero T
	if r == nil {
		return zero, &pkgerrs.StateError{Operation: "batch result", Message: "response was omitted"}
	}
	if err := r.Err(); err != nil {
		return zero, err
	}
	return mapper.Object[T](c.mapper, r.Body)
}

// ExecuteBatch sends up to 50 operations in one call. The responses line up
// with requests; an operation whose response was omitted yields nil.
func (c *Client) ExecuteBatch(ctx context.Context, requests ...*BatchRequest) ([]*BatchResponse, error) {
	if err := c.validator.ValidateBatchSize(len(requests)); err != nil {
		return nil, err
	}

	envelope, err := c.batchEnvelope(requests)
	if err != nil {
		return nil, err
	}

	body, err := c.post(ctx, "", []Parameter{Param("batch", envelope), Param("include_headers", "true")})
	if err != nil {
		return nil, err
	}

	responses, err := mapper.List[*BatchResponse](c.mapper, body)
	if err != nil {
		return nil, err
	}
	if len(responses) != len(requests) {
		c.logger.Warn("batch response count differs from request count",
			"requests", len(requests), "responses", len(responses))
	}
	return responses, nil
}

// batchEnvelope renders the batch parameter:
//
//	[{"method":"GET","relative_url":"me?fields=id"},{"method":"POST","relative_url":"me/feed","body":"message=hi"}]
func (c *Client) batchEnvelope(requests []*BatchRequest) (jsonvalue.Value, error) {
	ops := make([]jsonvalue.Value, 0, len(requests))
	for i, r := range requests {
		if r == nil {
			return jsonvalue.Value{}, &pkgerrs.ConfigError{Field: fmt.Sprintf("batch[%d]", i), Message: "request cannot be nil"}
		}
		if err := c.validator.ValidateObjectPath(r.Path); err != nil {
			return jsonvalue.Value{}, err
		}
		if err := c.validator.ValidateParameterNames(parameterNames(r.Params)); err != nil {
			return jsonvalue.Value{}, err
		}

		method := strings.ToUpper(r.Method)
		if method == "" {
			method = http.MethodGet
		}

		values := url.Values{}
		if err := encodeParameters(c.mapper, values, r.Params); err != nil {
			return jsonvalue.Value{}, &pkgerrs.RequestError{Operation: "encode batch parameters", Err: err}
		}

		relativeURL := strings.Trim(r.Path, "/")
		members := []jsonvalue.Member{{Key: "method", Value: jsonvalue.String(method)}}
		switch {
		case method == http.MethodPost && len(values) > 0:
			members = append(members,
				jsonvalue.Member{Key: "relative_url", Value: jsonvalue.String(relativeURL)},
				jsonvalue.Member{Key: "body", Value: jsonvalue.String(values.Encode())})
		case len(values) > 0:
			members = append(members,
				jsonvalue.Member{Key: "relative_url", Value: jsonvalue.String(relativeURL + "?" + values.Encode())})
		default:
			members = append(members,
				jsonvalue.Member{Key: "relative_url", Value: jsonvalue.String(relativeURL)})
		}

		if r.Name != "" {
			members = append(members, jsonvalue.Member{Key: "name", Value: jsonvalue.String(r.Name)})
		}
		if r.DependsOn != "" {
			members = append(members, jsonvalue.Member{Key: "depends_on", Value: jsonvalue.String(r.DependsOn)})
		}
		if r.OmitResponseOnSuccess {
			members = append(members, jsonvalue.Member{Key: "omit_response_on_success", Value: jsonvalue.Bool(true)})
		}
		ops = append(ops, jsonvalue.Object(members...))
	}
	return jsonvalue.Array(ops...), nil
}
