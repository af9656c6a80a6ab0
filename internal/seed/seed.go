// Package seed creates demo content through the domain services so seeded
// data obeys the same rules as API writes: hubs are created implicitly,
// replies stay one level deep, list entries carry timestamps.
package seed

import (
	"context"
	"fmt"

	"unify/internal/models"
	"unify/internal/observability"
	"unify/internal/service"

	"github.com/brianvoe/gofakeit/v6"
)

// Options sizes a random seed run.
type Options struct {
	Users           int
	Posts           int
	CommentsPerPost int
	// ReplyPercent is the chance in [0,100] that a comment is a reply.
	ReplyPercent int
	// MarketPercent is the chance in [0,100] that a post is a market item.
	MarketPercent int
	Hubs          []string
	// RandSeed makes runs reproducible; 0 picks a random seed.
	RandSeed int64
}

// DefaultOptions is a small but connected graph.
func DefaultOptions() Options {
	return Options{
		Users:           12,
		Posts:           40,
		CommentsPerPost: 4,
		ReplyPercent:    35,
		MarketPercent:   20,
		Hubs:            []string{"Housing", "Books", "Rides", "Events", "Market"},
	}
}

// Result lists what a run created.
type Result struct {
	Users    []string
	PostIDs  map[string]string // fixture key -> id; random runs use "post-N"
	Comments int
	Saved    int
	Cart     int
}

func newResult() *Result {
	return &Result{PostIDs: map[string]string{}}
}

// Seeder writes demo data.
type Seeder struct {
	posts    *service.PostService
	comments *service.CommentService
	lists    *service.SavedCartIndex
}

// NewSeeder creates a seeder over the given services.
func NewSeeder(posts *service.PostService, comments *service.CommentService, lists *service.SavedCartIndex) *Seeder {
	return &Seeder{posts: posts, comments: comments, lists: lists}
}

type fakeUser struct {
	id         string
	username   string
	university string
}

var universities = []string{"State University", "Tech Institute", "City College", "Lakeside University"}

// Random seeds opts.Users authors writing opts.Posts posts with comments,
// replies and saved/cart entries.
func (s *Seeder) Random(ctx context.Context, opts Options) (*Result, error) {
	if opts.Users <= 0 || opts.Posts < 0 || len(opts.Hubs) == 0 {
		return nil, fmt.Errorf("seed: need at least one user and one hub")
	}
	var faker *gofakeit.Faker
	if opts.RandSeed != 0 {
		faker = gofakeit.New(opts.RandSeed)
	} else {
		faker = gofakeit.NewCrypto()
	}

	users := make([]fakeUser, opts.Users)
	res := newResult()
	for i := range users {
		users[i] = fakeUser{
			id:         fmt.Sprintf("user-%03d", i+1),
			username:   faker.Username(),
			university: faker.RandomString(universities),
		}
		res.Users = append(res.Users, users[i].id)
	}
	pick := func() fakeUser { return users[faker.Number(0, len(users)-1)] }

	observability.LogAsyncOperationStart(ctx, "seed_random", map[string]interface{}{
		"users": opts.Users, "posts": opts.Posts,
	})

	for i := 0; i < opts.Posts; i++ {
		author := pick()
		in := service.CreatePostInput{
			AuthorID:         author.id,
			AuthorUsername:   author.username,
			AuthorUniversity: author.university,
			Title:            faker.Sentence(faker.Number(3, 8)),
			Body:             faker.Paragraph(1, 3, 12, "\n"),
			Hub:              faker.RandomString(opts.Hubs),
			IsAnonymous:      faker.Number(1, 100) <= 10,
		}
		if faker.Number(1, 100) <= opts.MarketPercent {
			price := faker.Price(5, 500)
			in.IsMarketItem = true
			in.Price = &price
			in.Contact = faker.Email()
		}
		thread, err := s.posts.CreatePost(ctx, in)
		if err != nil {
			return res, fmt.Errorf("seed post %d: %w", i, err)
		}
		res.PostIDs[fmt.Sprintf("post-%d", i+1)] = thread.ID

		var tops []string
		for j := 0; j < opts.CommentsPerPost; j++ {
			commenter := pick()
			parent := ""
			if len(tops) > 0 && faker.Number(1, 100) <= opts.ReplyPercent {
				parent = tops[faker.Number(0, len(tops)-1)]
			}
			c, err := s.comments.AddComment(ctx, service.AddCommentInput{
				PostID:           thread.ID,
				AuthorID:         commenter.id,
				AuthorUsername:   commenter.username,
				AuthorUniversity: commenter.university,
				Text:             faker.Sentence(faker.Number(4, 14)),
				ParentCommentID:  parent,
			})
			if err != nil {
				return res, fmt.Errorf("seed comment on %s: %w", thread.ID, err)
			}
			if parent == "" {
				tops = append(tops, c.ID)
			}
			res.Comments++
		}

		if faker.Bool() {
			if err := s.lists.Add(ctx, models.ListSaved, pick().id, thread.ID); err != nil {
				return res, err
			}
			res.Saved++
		}
		if thread.IsMarketItem && faker.Bool() {
			if err := s.lists.Add(ctx, models.ListCart, pick().id, thread.ID); err != nil {
				return res, err
			}
			res.Cart++
		}
	}

	observability.LogAsyncOperationEnd(ctx, "seed_random", map[string]interface{}{
		"posts": len(res.PostIDs), "comments": res.Comments, "saved": res.Saved, "cart": res.Cart,
	})
	return res, nil
}
