package seed

import (
	"context"
	"fmt"
	"io"
	"os"

	"unify/internal/models"
	"unify/internal/service"

	"gopkg.in/yaml.v3"
)

// Fixture describes a content graph explicitly.
//
//	posts:
//	  - key: room
//	    author: alice
//	    hub: Housing
//	    title: Room for rent
//	    body: Near campus
//	    comments:
//	      - author: bob
//	        text: Still available?
//	        replies:
//	          - author: alice
//	            text: Yes
//	saved:
//	  bob: [room]
type Fixture struct {
	Users map[string]FixtureUser `yaml:"users"`
	Posts []FixturePost          `yaml:"posts"`
	Saved map[string][]string    `yaml:"saved"`
	Cart  map[string][]string    `yaml:"cart"`
}

type FixtureUser struct {
	Username   string `yaml:"username"`
	University string `yaml:"university"`
}

type FixturePost struct {
	Key       string           `yaml:"key"`
	Author    string           `yaml:"author"`
	Hub       string           `yaml:"hub"`
	Title     string           `yaml:"title"`
	Body      string           `yaml:"body"`
	Anonymous bool             `yaml:"anonymous"`
	Market    *FixtureMarket   `yaml:"market"`
	Comments  []FixtureComment `yaml:"comments"`
}

type FixtureMarket struct {
	Price   float64 `yaml:"price"`
	Contact string  `yaml:"contact"`
}

type FixtureComment struct {
	Author  string           `yaml:"author"`
	Text    string           `yaml:"text"`
	Replies []FixtureComment `yaml:"replies"`
}

// LoadFixture decodes a fixture. Unknown fields are rejected.
func LoadFixture(r io.Reader) (*Fixture, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var fx Fixture
	if err := dec.Decode(&fx); err != nil {
		return nil, fmt.Errorf("seed: decode fixture: %w", err)
	}
	keys := map[string]bool{}
	for i, p := range fx.Posts {
		if p.Key == "" {
			return nil, fmt.Errorf("seed: post %d has no key", i)
		}
		if keys[p.Key] {
			return nil, fmt.Errorf("seed: duplicate post key %q", p.Key)
		}
		keys[p.Key] = true
		for _, c := range p.Comments {
			for _, r := range c.Replies {
				if len(r.Replies) > 0 {
					return nil, fmt.Errorf("seed: post %q nests replies deeper than one level", p.Key)
				}
			}
		}
	}
	for _, lists := range []map[string][]string{fx.Saved, fx.Cart} {
		for uid, ks := range lists {
			for _, k := range ks {
				if !keys[k] {
					return nil, fmt.Errorf("seed: list of %s names unknown post %q", uid, k)
				}
			}
		}
	}
	return &fx, nil
}

// LoadFixtureFile reads a fixture from path.
func LoadFixtureFile(path string) (*Fixture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return LoadFixture(f)
}

// Apply writes the fixture in document order.
func (s *Seeder) Apply(ctx context.Context, fx *Fixture) (*Result, error) {
	res := newResult()
	seen := map[string]bool{}
	user := func(id string) FixtureUser {
		if !seen[id] {
			seen[id] = true
			res.Users = append(res.Users, id)
		}
		u := fx.Users[id]
		if u.Username == "" {
			u.Username = id
		}
		return u
	}

	for _, p := range fx.Posts {
		author := user(p.Author)
		in := service.CreatePostInput{
			AuthorID:         p.Author,
			AuthorUsername:   author.Username,
			AuthorUniversity: author.University,
			Title:            p.Title,
			Body:             p.Body,
			Hub:              p.Hub,
			IsAnonymous:      p.Anonymous,
		}
		if p.Market != nil {
			price := p.Market.Price
			in.IsMarketItem = true
			in.Price = &price
			in.Contact = p.Market.Contact
		}
		thread, err := s.posts.CreatePost(ctx, in)
		if err != nil {
			return res, fmt.Errorf("seed post %q: %w", p.Key, err)
		}
		res.PostIDs[p.Key] = thread.ID

		for _, c := range p.Comments {
			top, err := s.comment(ctx, thread.ID, "", c, user)
			if err != nil {
				return res, fmt.Errorf("seed comments of %q: %w", p.Key, err)
			}
			res.Comments++
			for _, r := range c.Replies {
				if _, err := s.comment(ctx, thread.ID, top.ID, r, user); err != nil {
					return res, fmt.Errorf("seed replies of %q: %w", p.Key, err)
				}
				res.Comments++
			}
		}
	}

	for kind, lists := range map[models.ListKind]map[string][]string{models.ListSaved: fx.Saved, models.ListCart: fx.Cart} {
		for uid, ks := range lists {
			for _, k := range ks {
				if err := s.lists.Add(ctx, kind, uid, res.PostIDs[k]); err != nil {
					return res, err
				}
				if kind == models.ListSaved {
					res.Saved++
				} else {
					res.Cart++
				}
			}
		}
	}
	return res, nil
}

func (s *Seeder) comment(ctx context.Context, postID, parent string, c FixtureComment, user func(string) FixtureUser) (*models.Comment, error) {
	u := user(c.Author)
	return s.comments.AddComment(ctx, service.AddCommentInput{
		PostID:           postID,
		AuthorID:         c.Author,
		AuthorUsername:   u.Username,
		AuthorUniversity: u.University,
		Text:             c.Text,
		ParentCommentID:  parent,
	})
}
