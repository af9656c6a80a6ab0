// Command seed fills the configured document store with demo content.
package main

import (
	"context"
	"flag"
	"log"
	"strings"

	"unify/internal/bootstrap"
	"unify/internal/config"
	"unify/internal/seed"
)

func main() {
	defaults := seed.DefaultOptions()
	fixture := flag.String("fixture", "", "YAML fixture describing posts, comments and lists explicitly")
	users := flag.Int("users", defaults.Users, "Number of authors to generate")
	posts := flag.Int("posts", defaults.Posts, "Number of posts to create")
	comments := flag.Int("comments", defaults.CommentsPerPost, "Comments per post")
	hubs := flag.String("hubs", strings.Join(defaults.Hubs, ","), "Comma separated hub names")
	randSeed := flag.Int64("seed", 0, "Random seed for reproducible runs (0 = random)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()
	rt, err := bootstrap.InitRuntime(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	defer func() { _ = rt.Close(ctx) }()

	svc := rt.Services(cfg)
	s := seed.NewSeeder(svc.Posts, svc.Discuss, svc.Index)

	var res *seed.Result
	if *fixture != "" {
		fx, err := seed.LoadFixtureFile(*fixture)
		if err != nil {
			log.Fatalf("Failed to load fixture: %v", err)
		}
		res, err = s.Apply(ctx, fx)
		if err != nil {
			log.Fatalf("Fixture seeding failed: %v", err)
		}
	} else {
		opts := defaults
		opts.Users = *users
		opts.Posts = *posts
		opts.CommentsPerPost = *comments
		opts.Hubs = strings.Split(*hubs, ",")
		opts.RandSeed = *randSeed
		res, err = s.Random(ctx, opts)
		if err != nil {
			log.Fatalf("Seeding failed: %v", err)
		}
	}

	log.Printf("Seeded %d posts, %d comments, %d saved, %d cart entries for %d users",
		len(res.PostIDs), res.Comments, res.Saved, res.Cart, len(res.Users))
}
