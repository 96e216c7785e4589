package test_generators

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/jamesprial/go-fbgraph/pkg/mapper"
	"github.com/jamesprial/go-fbgraph/pkg/types"
)

// PostGenerator generates realistic feed posts for testing
type PostGenerator struct {
	rand             *rand.Rand
	messageTemplates []string
	storyTemplates   []string
	authors          []types.NamedObject
	places           []types.Place
	statusTypes      []types.StatusType
	profileID        string
	mapper           *mapper.Mapper
	now              time.Time
}

// NewPostGenerator creates a new post generator for the feed of profileID
func NewPostGenerator(seed int64, profileID string) *PostGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if profileID == "" {
		profileID = "100"
	}

	return &PostGenerator{
		rand: rand.New(rand.NewSource(seed)),
		messageTemplates: []string{
			"Just finished reading about %s. Thoughts?",
			"Can anyone recommend a good resource on %s?",
			"Big news today about %s!",
			"Throwback to when we first talked about %s",
			"Here's my take on %s",
			"Weekend plans: learning more about %s",
		},
		storyTemplates: []string{
			"%s shared a link.",
			"%s updated their status.",
			"%s added a new photo.",
			"%s was tagged in a post.",
		},
		authors: []types.NamedObject{
			{ID: "4", Name: "Mark Zuckerberg"},
			{ID: "5", Name: "Chris Hughes"},
			{ID: "6", Name: "Dustin Moskovitz"},
			{ID: "7", Name: "Eduardo Saverin"},
			{ID: "20531316728", Name: "Facebook"},
		},
		places: []types.Place{
			{NamedObject: types.NamedObject{ID: "108424279189115", Name: "Menlo Park, California"},
				Location: &types.Location{City: "Menlo Park", State: "CA", Country: "United States", Latitude: 37.4529, Longitude: -122.1817}},
			{NamedObject: types.NamedObject{ID: "109650795719651", Name: "Cambridge, Massachusetts"},
				Location: &types.Location{City: "Cambridge", State: "MA", Country: "United States", Latitude: 42.3736, Longitude: -71.1097}},
		},
		statusTypes: []types.StatusType{
			types.StatusMobileUpdate, types.StatusSharedStory, types.StatusAddedPhotos,
			types.StatusWallPost, types.StatusCreatedEvent,
		},
		profileID: profileID,
		mapper:    mapper.New(),
		now:       time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

// GeneratePost creates a realistic feed post
func (pg *PostGenerator) GeneratePost() types.Post {
	author := pg.randAuthor()
	created := pg.now.Add(-time.Duration(pg.rand.Intn(86400)) * time.Second) // within the last day
	objectID := fmt.Sprintf("%d", pg.rand.Int63n(1e15))
	status := pg.statusTypes[pg.rand.Intn(len(pg.statusTypes))]

	post := types.Post{
		ID:            pg.profileID + "_" + objectID,
		From:          &author,
		Message:       fmt.Sprintf(pg.randElement(pg.messageTemplates), pg.generateTopic()),
		PermalinkURL:  fmt.Sprintf("https://www.facebook.com/%s/posts/%s", pg.profileID, objectID),
		StatusType:    &status,
		RawStatusType: string(status),
		Created:       created,
		Updated:       pg.generateUpdatedTime(created),
		ProfileID:     pg.profileID,
		ObjectID:      objectID,
	}

	if pg.rand.Float32() < 0.3 { // 30% chance
		post.Story = fmt.Sprintf(pg.randElement(pg.storyTemplates), author.Name)
	}
	if pg.rand.Float32() < 0.2 { // 20% chance
		post.Link = pg.generateExternalURL()
	}
	if pg.rand.Float32() < 0.1 { // 10% chance
		place := pg.places[pg.rand.Intn(len(pg.places))]
		post.Place = &place
	}
	if pg.rand.Float32() < 0.5 {
		post.Shares = &types.Shares{Count: pg.generateCount()}
	}

	return post
}

// GeneratePosts creates multiple posts
func (pg *PostGenerator) GeneratePosts(count int) []types.Post {
	posts := make([]types.Post, count)
	for i := 0; i < count; i++ {
		posts[i] = pg.GeneratePost()
	}
	return posts
}

// PostOptions controls post generation characteristics
type PostOptions struct {
	MinShares   int64
	MaxShares   int64
	MinComments int
	MaxComments int
	StatusType  types.StatusType
	Author      *types.NamedObject
	WithPlace   bool
	WithLikes   bool
}

// GeneratePostWithOptions creates a post with specific options
func (pg *PostGenerator) GeneratePostWithOptions(opts PostOptions) types.Post {
	post := pg.GeneratePost()

	if opts.MaxShares > 0 {
		post.Shares = &types.Shares{Count: opts.MinShares + pg.rand.Int63n(opts.MaxShares-opts.MinShares+1)}
	}

	if opts.MaxComments > 0 {
		n := opts.MinComments + pg.rand.Intn(opts.MaxComments-opts.MinComments+1)
		comments := pg.GenerateComments(post.ID, n)
		post.Comments = &types.Comments{
			Data:    comments,
			Summary: &types.Summary{TotalCount: int64(n), Order: "ranked", CanComment: true},
		}
	}

	if opts.StatusType != "" {
		status := opts.StatusType
		post.StatusType = &status
		post.RawStatusType = string(status)
	}

	if opts.Author != nil {
		author := *opts.Author
		post.From = &author
	}

	if opts.WithPlace {
		place := pg.places[pg.rand.Intn(len(pg.places))]
		post.Place = &place
	} else {
		post.Place = nil
	}

	if opts.WithLikes {
		likers := make([]types.NamedObject, 1+pg.rand.Intn(len(pg.authors)))
		for i := range likers {
			likers[i] = pg.authors[i]
		}
		post.Likes = &types.Likes{Data: likers, Summary: &types.Summary{TotalCount: int64(len(likers)), CanLike: true}}
	}

	return post
}

// GenerateComments creates comments on the post with the given ID
func (pg *PostGenerator) GenerateComments(postID string, count int) []types.Comment {
	comments := make([]types.Comment, count)
	for i := range comments {
		author := pg.randAuthor()
		comments[i] = types.Comment{
			ID:        fmt.Sprintf("%s_%d", postID, i+1),
			From:      &author,
			Message:   pg.generateSentence(),
			Created:   pg.now.Add(-time.Duration(pg.rand.Intn(3600)) * time.Second),
			LikeCount: pg.generateCount(),
		}
	}
	return comments
}

// GenerateViralPost creates a post with heavy engagement
func (pg *PostGenerator) GenerateViralPost() types.Post {
	return pg.GeneratePostWithOptions(PostOptions{
		MinShares:   10000,
		MaxShares:   1000000,
		MinComments: 20,
		MaxComments: 50,
		StatusType:  types.StatusSharedStory,
		WithLikes:   true,
	})
}

// GenerateOldPost creates a post created years ago
func (pg *PostGenerator) GenerateOldPost() types.Post {
	post := pg.GeneratePost()
	years := pg.rand.Intn(10) + 5 // 5-14 years old
	post.Created = pg.now.AddDate(-years, 0, 0)
	post.Updated = post.Created
	return post
}

// ItemsJSON renders each post as its JSON wire form, ready to be served as the
// items of a connection page.
func (pg *PostGenerator) ItemsJSON(posts []types.Post) ([]string, error) {
	items := make([]string, len(posts))
	for i := range posts {
		s, err := pg.mapper.ToJSON(posts[i], mapper.SkipEmpty())
		if err != nil {
			return nil, fmt.Errorf("encoding post %s: %w", posts[i].ID, err)
		}
		items[i] = s
	}
	return items, nil
}

// FeedPages generates count posts split into pages of pageSize and renders
// each page's items as JSON.
func (pg *PostGenerator) FeedPages(count, pageSize int) ([]types.Post, [][]string, error) {
	posts := pg.GeneratePosts(count)
	items, err := pg.ItemsJSON(posts)
	if err != nil {
		return nil, nil, err
	}

	var pages [][]string
	for start := 0; start < len(items); start += pageSize {
		end := min(start+pageSize, len(items))
		pages = append(pages, items[start:end])
	}
	return posts, pages, nil
}

// Helper methods

func (pg *PostGenerator) randAuthor() types.NamedObject {
	return pg.authors[pg.rand.Intn(len(pg.authors))]
}

func (pg *PostGenerator) generateTopic() string {
	topics := []string{
		"the future of AI", "climate change solutions", "space exploration",
		"quantum computing", "renewable energy", "open source",
		"remote work culture", "privacy concerns", "sustainable living",
		"machine learning applications", "virtual reality", "cloud computing",
	}
	return pg.randElement(topics)
}

func (pg *PostGenerator) generateSentence() string {
	words := pg.rand.Intn(10) + 3
	wordList := []string{
		"great", "post", "thanks", "for", "sharing", "this", "is", "so",
		"interesting", "agree", "totally", "not", "sure", "about", "that",
		"love", "it", "congrats", "wow", "see", "you", "there",
	}

	parts := make([]string, words)
	for i := range parts {
		parts[i] = pg.randElement(wordList)
	}
	sentence := strings.Join(parts, " ")
	return strings.ToUpper(sentence[:1]) + sentence[1:] + "."
}

func (pg *PostGenerator) generateCount() int64 {
	// most posts see little engagement, few see a lot
	r := pg.rand.Float64()
	switch {
	case r < 0.7:
		return int64(pg.rand.Intn(100))
	case r < 0.95:
		return int64(pg.rand.Intn(900) + 100)
	default:
		return int64(pg.rand.Intn(90000) + 1000)
	}
}

func (pg *PostGenerator) generateUpdatedTime(created time.Time) time.Time {
	if pg.rand.Float32() < 0.8 { // 80% chance never edited
		return created
	}
	return created.Add(time.Duration(pg.rand.Intn(3600)) * time.Second)
}

func (pg *PostGenerator) generateExternalURL() string {
	domains := []string{
		"github.com", "youtube.com", "news.ycombinator.com",
		"medium.com", "wikipedia.org", "techcrunch.com",
	}
	return fmt.Sprintf("https://%s/%s", pg.randElement(domains), pg.randString(10))
}

func (pg *PostGenerator) randElement(slice []string) string {
	return slice[pg.rand.Intn(len(slice))]
}

func (pg *PostGenerator) randString(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[pg.rand.Intn(len(charset))]
	}
	return string(b)
}
