package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	chassis "github.com/talosaether/rolechassis"
	"github.com/talosaether/rolechassis/authdb"
	"github.com/talosaether/rolechassis/events"
	"github.com/talosaether/rolechassis/roles"
)

// Roles declared in code live alongside the ones loaded from roles.yaml.
var (
	Viewer = roles.Declare("Viewer",
		roles.WithPermission("read_post", true),
	)
	Writer = roles.Declare("Writer",
		roles.WithPermission("read_post", true),
		roles.WithPermission("edit_post", true),
		roles.WithPermission("publish_post", false),
	)
)

func main() {
	ctx := context.Background()

	// Initialize chassis; roles picks up driver, db path and definitions from config
	app := chassis.New(
		chassis.WithConfigFile("./config.yaml"),
		chassis.WithModules(
			events.New(),
			roles.New(),
		),
	)

	// Ensure graceful shutdown
	defer func() {
		if err := app.Shutdown(ctx); err != nil {
			log.Printf("shutdown error: %v", err)
		}
	}()

	for _, eventType := range []string{
		roles.EventRoleAssigned,
		roles.EventRoleRemoved,
		roles.EventPermissionGranted,
		roles.EventPermissionRevoked,
	} {
		app.Events().Subscribe(eventType, events.Handler(func(ctx context.Context, eventType string, payload any) {
			fmt.Printf("[EVENT] %s: %+v\n", eventType, payload)
		}))
	}

	rolesMod := app.Roles().(*roles.Module)

	fmt.Println("\n=== Registered roles ===")
	for _, name := range rolesMod.RoleNames() {
		role, _ := rolesMod.Retrieve(name)
		fmt.Printf("  %-16s %v\n", name, role.Grants())
	}

	fmt.Println("\n=== Setup ===")
	userID, err := demoUser(ctx, rolesMod, "demo")
	if err != nil {
		log.Fatalf("demo user: %v", err)
	}
	fmt.Printf("Using demo user: %s\n", userID)

	fmt.Println("\n=== Assign writer ===")
	if err := app.Roles().AssignRole(ctx, userID, Writer.Name()); err != nil {
		log.Fatalf("assign role: %v", err)
	}
	printPermissions(ctx, rolesMod, userID)

	fmt.Println("\n=== Grant publish_post ===")
	if err := rolesMod.GrantPermission(ctx, userID, "publish_post"); err != nil {
		log.Fatalf("grant permission: %v", err)
	}
	printPermissions(ctx, rolesMod, userID)

	fmt.Println("\n=== Grant outside held roles ===")
	if err := rolesMod.GrantPermission(ctx, userID, "delete_comment"); err != nil {
		fmt.Printf("refused: %v\n", err)
	}

	fmt.Println("\n=== Remove writer, assign viewer ===")
	if err := app.Roles().RemoveRole(ctx, userID, Writer.Name()); err != nil {
		log.Fatalf("remove role: %v", err)
	}
	if err := app.Roles().AssignRole(ctx, userID, Viewer.Name()); err != nil {
		log.Fatalf("assign role: %v", err)
	}
	printPermissions(ctx, rolesMod, userID)

	fmt.Println("\n=== Clear roles ===")
	if err := rolesMod.ClearRoles(ctx, userID); err != nil {
		log.Fatalf("clear roles: %v", err)
	}
	printPermissions(ctx, rolesMod, userID)
}

// demoUser creates the user on first run and reuses it afterwards.
func demoUser(ctx context.Context, rolesMod *roles.Module, username string) (string, error) {
	user, err := rolesMod.CreateUser(ctx, username)
	if err == nil {
		return user.ID, nil
	}
	if !errors.Is(err, authdb.ErrUsernameExists) {
		return "", err
	}

	existing, err := rolesMod.Store().GetUserByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	return existing.ID, nil
}

func printPermissions(ctx context.Context, rolesMod *roles.Module, userID string) {
	held, err := rolesMod.UserRoles(ctx, userID)
	if err != nil {
		log.Printf("user roles: %v", err)
		return
	}
	permissions, err := rolesMod.Store().UserPermissions(ctx, userID)
	if err != nil {
		log.Printf("user permissions: %v", err)
		return
	}

	fmt.Printf("Roles: %v\n", held)
	fmt.Print("Permissions:")
	for _, permission := range permissions {
		fmt.Printf(" %s", permission.Codename)
	}
	fmt.Println()
}
