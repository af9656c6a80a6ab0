// Command admin runs maintenance operations against the content graph.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"unify/internal/bootstrap"
	"unify/internal/config"
	"unify/internal/models"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  go run ./cmd/admin delete-hub <hub_id>             - Delete a hub with all its posts and comments")
	fmt.Println("  go run ./cmd/admin cascade-status <hub_id>         - Show the persisted cascade job of a hub")
	fmt.Println("  go run ./cmd/admin resume-cascades                 - Resume every unfinished hub deletion")
	fmt.Println("  go run ./cmd/admin activity <user_id> [replies]    - Print a user's activity feed")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	rt, err := bootstrap.InitRuntime(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	defer func() { _ = rt.Close(ctx) }()
	svc := rt.Services(cfg)

	arg := func() string {
		if len(os.Args) < 3 {
			usage()
			os.Exit(1)
		}
		return os.Args[2]
	}

	switch os.Args[1] {
	case "delete-hub":
		res, err := svc.Lifecycle.DeleteHub(ctx, arg())
		var abort *models.CascadeAbortError
		if errors.As(err, &abort) {
			printJSON(res)
			log.Fatalf("Cascade aborted; rerun to resume. Failed posts: %v", abort.FailedPostIDs())
		}
		if err != nil {
			log.Fatalf("Delete hub failed: %v", err)
		}
		printJSON(res)

	case "cascade-status":
		job, err := svc.Lifecycle.Status(ctx, arg())
		if err != nil {
			log.Fatalf("No cascade job: %v", err)
		}
		printJSON(job)

	case "resume-cascades":
		results, err := svc.Lifecycle.ResumePending(ctx)
		printJSON(results)
		if err != nil {
			log.Fatalf("Resume stopped: %v", err)
		}
		if len(results) == 0 {
			fmt.Println("No unfinished cascades")
		}

	case "activity":
		kind := models.ActivityCommented
		if len(os.Args) > 3 {
			kind = models.ActivityKind(os.Args[3])
		}
		feed, err := svc.Activity.Compute(ctx, arg(), kind)
		if err != nil {
			log.Fatalf("Activity failed: %v", err)
		}
		printJSON(feed)

	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Printf("encode output: %v", err)
	}
}
