package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/chamberlink/chamberlink/internal/auth"
	"github.com/chamberlink/chamberlink/internal/config"
	"github.com/chamberlink/chamberlink/internal/models"
	"github.com/chamberlink/chamberlink/internal/store"
)

// issue-token mints an API credential directly against the store. It exists
// to bootstrap the first admin credential; after that, POST /credentials
// does the same thing over HTTP.
func main() {
	userFlag := flag.String("user", "", "user UUID the credential belongs to")
	roleFlag := flag.String("role", models.RoleClient, "role: client, lawyer or admin")
	chamberFlag := flag.String("chamber", "", "chamber UUID scope (optional)")
	flag.Parse()

	userID, err := uuid.Parse(*userFlag)
	if err != nil {
		fatal("invalid -user: %v", err)
	}
	switch *roleFlag {
	case models.RoleClient, models.RoleLawyer, models.RoleAdmin:
	default:
		fatal("invalid -role %q", *roleFlag)
	}
	var chamberID *uuid.UUID
	if *chamberFlag != "" {
		id, err := uuid.Parse(*chamberFlag)
		if err != nil {
			fatal("invalid -chamber: %v", err)
		}
		chamberID = &id
	}

	cfg := config.Load()
	ctx := context.Background()

	var dataStore store.DataStore
	if cfg.DatabaseURL != "" {
		if err := store.RunMigrations(cfg.DatabaseURL); err != nil {
			fatal("migrations: %v", err)
		}
		dataStore, err = store.NewPostgresStore(ctx, cfg.DatabaseURL)
	} else {
		dataStore, err = store.NewSQLiteStore(ctx, cfg.SQLitePath)
	}
	if err != nil {
		fatal("open store: %v", err)
	}
	defer dataStore.Close()

	svc := auth.NewService(dataStore, nil)
	token, err := svc.IssueCredential(ctx, userID, *roleFlag, chamberID)
	if err != nil {
		fatal("issue credential: %v", err)
	}

	fmt.Printf("Bearer token: %s\n", token)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
