package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"scheme-admin/internal/cache"
	"scheme-admin/internal/catalog"
	"scheme-admin/internal/config"
	"scheme-admin/internal/db"
	"scheme-admin/internal/users"
)

var seedStates = []string{
	"Andhra Pradesh", "Assam", "Bihar", "Gujarat", "Karnataka", "Kerala",
	"Madhya Pradesh", "Maharashtra", "Odisha", "Punjab", "Rajasthan",
	"Tamil Nadu", "Telangana", "Uttar Pradesh", "West Bengal", "All India",
}

var seedCategories = []string{
	"Agriculture", "Education", "Health", "Housing", "Skill Development",
	"Social Welfare", "Women and Child", "Business and Entrepreneurship",
}

type seedAdmin struct {
	Name        string
	Email       string
	PasswordEnv string
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, cols, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatal(err)
	}
	defer client.Disconnect(context.Background())

	if err := db.EnsureIndexes(ctx, cols); err != nil {
		log.Fatal(err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	catalogService := catalog.NewService(catalog.NewRepository(cols.States, cols.Categories), cache.NewNoop(), cfg.CacheTTL(), cfg.Timezone, logger)

	seed := map[catalog.Kind][]string{
		catalog.KindStates:     seedStates,
		catalog.KindCategories: seedCategories,
	}
	for kind, names := range seed {
		created := 0
		for _, name := range names {
			_, isNew, err := catalogService.Ensure(ctx, kind, name)
			if err != nil {
				log.Fatalf("seed error for %s %q: %v", kind, name, err)
			}
			if isNew {
				created++
			}
		}
		log.Printf("seed %s: %d created, %d already present", kind, created, len(names)-created)
	}

	usersService := users.NewService(users.NewRepository(cols.Users), nil, "", cfg.Timezone)
	admins := []seedAdmin{
		{Name: envOrDefault("ADMIN_NAME", "Admin"), Email: os.Getenv("ADMIN_EMAIL"), PasswordEnv: "ADMIN_PASSWORD"},
		{Name: envOrDefault("ADMIN_NAME_2", "Admin 2"), Email: os.Getenv("ADMIN_EMAIL_2"), PasswordEnv: "ADMIN_PASSWORD_2"},
	}
	for _, admin := range admins {
		password := os.Getenv(admin.PasswordEnv)
		if admin.Email == "" || password == "" {
			log.Printf("seed admin: %s missing, skipping", admin.PasswordEnv)
			continue
		}
		user, isNew, err := usersService.EnsureAdmin(ctx, admin.Name, admin.Email, password)
		if err != nil {
			log.Fatalf("seed admin error for %s: %v", admin.Email, err)
		}
		if isNew {
			log.Printf("seed admin: created %s", user.Email)
		} else {
			log.Printf("seed admin: %s already exists", user.Email)
		}
	}

	log.Println("seed completed")
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
