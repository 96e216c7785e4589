package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jamesprial/go-fbgraph/pkg/types"
)

// Regular expressions for validating Graph API identifiers
var (
	// objectIDRegex matches numeric node IDs and composite IDs such as "pageid_postid"
	objectIDRegex = regexp.MustCompile(`^[0-9]+(_[0-9]+)*$`)

	// aliasRegex matches vanity names and the "me" alias (letters, digits, dots)
	aliasRegex = regexp.MustCompile(`^[A-Za-z0-9.]{1,50}$`)

	// apiVersionRegex matches versions such as "v2.0" or "v21.0"
	apiVersionRegex = regexp.MustCompile(`^v[0-9]+\.[0-9]+$`)
)

// IsValidObjectID checks if a string is a numeric or composite Graph node ID
func IsValidObjectID(s string) bool {
	return objectIDRegex.MatchString(s)
}

// IsValidAlias checks if a string is a vanity name such as "me" or "zuck"
func IsValidAlias(s string) bool {
	return aliasRegex.MatchString(s)
}

// IsValidAPIVersion checks if a string is a Graph API version such as "v21.0"
func IsValidAPIVersion(s string) bool {
	return apiVersionRegex.MatchString(s)
}

// ValidateFields checks a fields expression such as
// "id,name,likes.limit(5).summary(true){id,name}". Every field needs a name,
// modifiers need an argument list and nested selections must be closed.
func ValidateFields(expr string) error {
	p := &fieldsParser{s: expr}
	if err := p.list(); err != nil {
		return fmt.Errorf("invalid fields expression %q: %w", expr, err)
	}
	if p.pos != len(p.s) {
		return fmt.Errorf("invalid fields expression %q: unexpected %q at offset %d", expr, p.s[p.pos], p.pos)
	}
	return nil
}

type fieldsParser struct {
	s   string
	pos int
}

func (p *fieldsParser) list() error {
	for {
		if err := p.item(); err != nil {
			return err
		}
		if !p.consume(',') {
			return nil
		}
	}
}

func (p *fieldsParser) item() error {
	if err := p.name(); err != nil {
		return err
	}
	for p.consume('.') {
		if err := p.name(); err != nil {
			return err
		}
		if err := p.args(); err != nil {
			return err
		}
	}
	if p.consume('{') {
		if err := p.list(); err != nil {
			return err
		}
		if !p.consume('}') {
			return fmt.Errorf("missing '}' at offset %d", p.pos)
		}
	}
	return nil
}

func (p *fieldsParser) name() error {
	start := p.pos
	for p.pos < len(p.s) && isFieldByte(p.s[p.pos]) {
		p.pos++
	}
	if start == p.pos {
		return fmt.Errorf("expected a field name at offset %d", start)
	}
	return nil
}

// args skips a parenthesized modifier argument, e.g. "(5)" in "limit(5)".
func (p *fieldsParser) args() error {
	if !p.consume('(') {
		return fmt.Errorf("expected '(' at offset %d", p.pos)
	}
	for depth := 1; p.pos < len(p.s); p.pos++ {
		switch p.s[p.pos] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				p.pos++
				return nil
			}
		}
	}
	return fmt.Errorf("missing ')'")
}

func (p *fieldsParser) consume(b byte) bool {
	if p.pos < len(p.s) && p.s[p.pos] == b {
		p.pos++
		return true
	}
	return false
}

func isFieldByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

// ValidateGraphObject validates any type that implements the GraphObject interface
func ValidateGraphObject(obj types.GraphObject) error {
	if obj == nil {
		return fmt.Errorf("graph object is nil")
	}

	id := obj.GetID()
	if id == "" {
		return fmt.Errorf("graph object validation failed: ID is required")
	}
	if !IsValidObjectID(id) {
		return fmt.Errorf("graph object validation failed: ID has invalid format: %s", id)
	}
	return nil
}

// ValidateLocation validates coordinates of a Location
func ValidateLocation(l *types.Location) error {
	if l == nil {
		return fmt.Errorf("location is nil")
	}

	var errs []error
	if l.Latitude < -90 || l.Latitude > 90 {
		errs = append(errs, fmt.Errorf("Latitude %f is outside [-90, 90]", l.Latitude))
	}
	if l.Longitude < -180 || l.Longitude > 180 {
		errs = append(errs, fmt.Errorf("Longitude %f is outside [-180, 180]", l.Longitude))
	}

	if len(errs) > 0 {
		return fmt.Errorf("location validation failed: %w", joinValidationErrors(errs))
	}
	return nil
}

// ValidatePost validates a Post
func ValidatePost(p *types.Post) error {
	if p == nil {
		return fmt.Errorf("post is nil")
	}

	var errs []error
	if err := ValidateGraphObject(p); err != nil {
		errs = append(errs, err)
	}
	if p.From != nil && p.From.ID == "" {
		errs = append(errs, fmt.Errorf("From is present but has no ID"))
	}
	if !p.Created.IsZero() && !p.Updated.IsZero() && p.Updated.Before(p.Created) {
		errs = append(errs, fmt.Errorf("Updated (%s) is before Created (%s)", p.Updated, p.Created))
	}
	if p.Shares != nil && p.Shares.Count < 0 {
		errs = append(errs, fmt.Errorf("Shares.Count cannot be negative, got %d", p.Shares.Count))
	}
	if p.Place != nil && p.Place.Location != nil {
		if err := ValidateLocation(p.Place.Location); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("post validation failed: %w", joinValidationErrors(errs))
	}
	return nil
}

// ValidateComment validates a Comment
func ValidateComment(c *types.Comment) error {
	if c == nil {
		return fmt.Errorf("comment is nil")
	}

	var errs []error
	if err := ValidateGraphObject(c); err != nil {
		errs = append(errs, err)
	}
	if c.LikeCount < 0 {
		errs = append(errs, fmt.Errorf("LikeCount cannot be negative, got %d", c.LikeCount))
	}
	if c.CommentCount < 0 {
		errs = append(errs, fmt.Errorf("CommentCount cannot be negative, got %d", c.CommentCount))
	}
	for i, tag := range c.MessageTags {
		if tag.Offset < 0 || tag.Length < 0 || tag.Offset+tag.Length > len([]rune(c.Message)) {
			errs = append(errs, fmt.Errorf("MessageTags[%d] range [%d, %d) is outside the message", i, tag.Offset, tag.Offset+tag.Length))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("comment validation failed: %w", joinValidationErrors(errs))
	}
	return nil
}

// ValidatePage validates a Page
func ValidatePage(p *types.Page) error {
	if p == nil {
		return fmt.Errorf("page is nil")
	}

	var errs []error
	if err := ValidateGraphObject(p); err != nil {
		errs = append(errs, err)
	}
	if p.FanCount < 0 {
		errs = append(errs, fmt.Errorf("FanCount cannot be negative, got %d", p.FanCount))
	}
	if p.Location != nil {
		if err := ValidateLocation(p.Location); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("page validation failed: %w", joinValidationErrors(errs))
	}
	return nil
}

// joinValidationErrors combines multiple errors into a single error message
func joinValidationErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}

	var msgs []string
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}
