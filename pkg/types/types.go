package types

import (
	"strings"
	"time"

	"github.com/jamesprial/go-fbgraph/pkg/jsonvalue"
)

// GraphObject defines the common behavior of Graph API nodes such as users,
// pages, posts and comments.
type GraphObject interface {
	GetID() string
}

// NamedObject holds the fields almost every Graph node carries. It is embedded
// by the concrete node types and is also what the API returns for references
// such as "from" or "hometown".
type NamedObject struct {
	ID   string `facebook:"id"`
	Name string `facebook:"name"`
}

// GetID returns the node's ID.
func (n NamedObject) GetID() string {
	return n.ID
}

// Location is a postal address with optional coordinates.
type Location struct {
	Street    string  `facebook:"street"`
	City      string  `facebook:"city"`
	State     string  `facebook:"state"`
	Country   string  `facebook:"country"`
	Zip       string  `facebook:"zip"`
	Latitude  float64 `facebook:"latitude"`
	Longitude float64 `facebook:"longitude"`
}

// Place is a page that represents a physical location.
type Place struct {
	NamedObject
	Location *Location `facebook:"location"`
	// LocationText is set when the API sends the location as a plain string.
	LocationText string `facebook:"location"`
}

// Summary is the metadata object returned when summary=true is requested.
type Summary struct {
	TotalCount int64  `facebook:"total_count"`
	CanLike    bool   `facebook:"can_like"`
	HasLiked   bool   `facebook:"has_liked"`
	CanComment bool   `facebook:"can_comment"`
	Order      string `facebook:"order"`
}

// User is a person's profile.
type User struct {
	NamedObject
	FirstName  string    `facebook:"first_name"`
	MiddleName string    `facebook:"middle_name"`
	LastName   string    `facebook:"last_name"`
	ShortName  string    `facebook:"short_name"`
	Email      string    `facebook:"email"`
	Link       string    `facebook:"link"`
	Birthday   string    `facebook:"birthday"`
	Gender     string    `facebook:"gender"`
	Locale     string    `facebook:"locale"`
	Timezone   float64   `facebook:"timezone"`
	Verified   bool      `facebook:"verified"`
	Updated    time.Time `facebook:"updated_time"`

	Hometown *NamedObject `facebook:"hometown"`
	Location *NamedObject `facebook:"location"`
	// HometownName is set when the API sends the hometown as a plain string.
	HometownName string `facebook:"hometown"`

	Languages []NamedObject `facebook:"languages"`
	Work      []Work        `facebook:"work"`
	Education []Education   `facebook:"education"`
}

// Work is one entry of a user's employment history.
type Work struct {
	Employer  *NamedObject `facebook:"employer"`
	Position  *NamedObject `facebook:"position"`
	Location  *NamedObject `facebook:"location"`
	StartDate string       `facebook:"start_date"`
	EndDate   string       `facebook:"end_date"`
}

// Education is one entry of a user's education history.
type Education struct {
	School        *NamedObject  `facebook:"school"`
	Year          *NamedObject  `facebook:"year"`
	Type          string        `facebook:"type"`
	Degree        *NamedObject  `facebook:"degree"`
	Concentration []NamedObject `facebook:"concentration"`
}

// Page is a Facebook page.
type Page struct {
	NamedObject
	Category     string            `facebook:"category"`
	CategoryList []NamedObject     `facebook:"category_list"`
	About        string            `facebook:"about"`
	Description  string            `facebook:"description"`
	Link         string            `facebook:"link"`
	Website      string            `facebook:"website"`
	Username     string            `facebook:"username"`
	FanCount     int64             `facebook:"fan_count"`
	Checkins     int64             `facebook:"checkins"`
	IsVerified   bool              `facebook:"is_verified"`
	Location     *Location         `facebook:"location"`
	Hours        map[string]string `facebook:"hours"`
	Emails       []string          `facebook:"emails"`
}

// StatusType describes how a post was created.
type StatusType string

// Post status types documented for the feed edge.
const (
	StatusMobileUpdate   StatusType = "mobile_status_update"
	StatusCreatedNote    StatusType = "created_note"
	StatusAddedPhotos    StatusType = "added_photos"
	StatusAddedVideo     StatusType = "added_video"
	StatusSharedStory    StatusType = "shared_story"
	StatusCreatedGroup   StatusType = "created_group"
	StatusCreatedEvent   StatusType = "created_event"
	StatusWallPost       StatusType = "wall_post"
	StatusAppStory       StatusType = "app_created_story"
	StatusPublishedStory StatusType = "published_story"
	StatusTaggedInPhoto  StatusType = "tagged_in_photo"
	StatusApprovedFriend StatusType = "approved_friend"
)

// EnumNames implements mapper.Enum.
func (StatusType) EnumNames() []string {
	return []string{
		string(StatusMobileUpdate), string(StatusCreatedNote), string(StatusAddedPhotos),
		string(StatusAddedVideo), string(StatusSharedStory), string(StatusCreatedGroup),
		string(StatusCreatedEvent), string(StatusWallPost), string(StatusAppStory),
		string(StatusPublishedStory), string(StatusTaggedInPhoto), string(StatusApprovedFriend),
	}
}

// PrivacyValue is the audience of a post.
type PrivacyValue string

const (
	PrivacyEveryone         PrivacyValue = "EVERYONE"
	PrivacyAllFriends       PrivacyValue = "ALL_FRIENDS"
	PrivacyFriendsOfFriends PrivacyValue = "FRIENDS_OF_FRIENDS"
	PrivacySelf             PrivacyValue = "SELF"
	PrivacyCustom           PrivacyValue = "CUSTOM"
)

// EnumNames implements mapper.Enum.
func (PrivacyValue) EnumNames() []string {
	return []string{
		string(PrivacyEveryone), string(PrivacyAllFriends), string(PrivacyFriendsOfFriends),
		string(PrivacySelf), string(PrivacyCustom),
	}
}

// Privacy describes who can see a post.
type Privacy struct {
	Value       *PrivacyValue `facebook:"value"`
	Description string        `facebook:"description"`
	Friends     string        `facebook:"friends"`
	Allow       string        `facebook:"allow"`
	Deny        string        `facebook:"deny"`
}

// Likes is the likes edge embedded in a post or comment.
type Likes struct {
	Data    []NamedObject `facebook:"data"`
	Summary *Summary      `facebook:"summary"`
}

// Comments is the comments edge embedded in a post.
type Comments struct {
	Data    []Comment `facebook:"data"`
	Summary *Summary  `facebook:"summary"`
}

// Shares is the share counter of a post.
type Shares struct {
	Count int64 `facebook:"count"`
}

// Post is an entry in a profile's feed.
type Post struct {
	ID           string       `facebook:"id"`
	From         *NamedObject `facebook:"from"`
	Message      string       `facebook:"message"`
	Story        string       `facebook:"story"`
	Link         string       `facebook:"link"`
	PermalinkURL string       `facebook:"permalink_url"`
	StatusType   *StatusType  `facebook:"status_type"`
	// RawStatusType keeps status types this package does not know yet.
	RawStatusType string          `facebook:"status_type"`
	Created       time.Time       `facebook:"created_time"`
	Updated       time.Time       `facebook:"updated_time"`
	Privacy       *Privacy        `facebook:"privacy"`
	Place         *Place          `facebook:"place"`
	Shares        *Shares         `facebook:"shares"`
	Likes         *Likes          `facebook:"likes"`
	Comments      *Comments       `facebook:"comments"`
	MessageTags   []MessageTag    `facebook:"message_tags"`
	Attachments   jsonvalue.Value `facebook:"attachments"`

	// ProfileID and ObjectID are the two halves of a feed ID "profile_object".
	ProfileID string
	ObjectID  string
}

// OnMappingCompleted splits the feed ID into its profile and object parts.
func (p *Post) OnMappingCompleted() {
	if profile, object, ok := strings.Cut(p.ID, "_"); ok {
		p.ProfileID, p.ObjectID = profile, object
	} else {
		p.ProfileID, p.ObjectID = "", p.ID
	}
}

// GetID returns the post's ID.
func (p Post) GetID() string {
	return p.ID
}

// MessageTag is a profile mentioned in a message.
type MessageTag struct {
	NamedObject
	Type   string `facebook:"type"`
	Offset int    `facebook:"offset"`
	Length int    `facebook:"length"`
}

// Comment is a comment on a post, photo or other comment.
type Comment struct {
	ID           string          `facebook:"id"`
	From         *NamedObject    `facebook:"from"`
	Message      string          `facebook:"message"`
	Created      time.Time       `facebook:"created_time"`
	LikeCount    int64           `facebook:"like_count"`
	CommentCount int64           `facebook:"comment_count"`
	UserLikes    bool            `facebook:"user_likes"`
	CanRemove    bool            `facebook:"can_remove"`
	IsHidden     bool            `facebook:"is_hidden"`
	PermalinkURL string          `facebook:"permalink_url"`
	Parent       *NamedObject    `facebook:"parent"`
	MessageTags  []MessageTag    `facebook:"message_tags"`
	Attachment   jsonvalue.Value `facebook:"attachment"`
}

// GetID returns the comment's ID.
func (c Comment) GetID() string {
	return c.ID
}
