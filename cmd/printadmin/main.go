// Command printadmin manages login principals directly against the job
// store, with no network call into a running broker, grounded on
// original_source/scripts/create_admin_user.py's create-admin-or-reset-
// password flow. Subcommands: create-user, reset-password, disable-user,
// list-users.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/SpacksD/Printer-connect/pkg/auth"
	"github.com/SpacksD/Printer-connect/pkg/model"
	"github.com/SpacksD/Printer-connect/pkg/store"
	"github.com/fatih/color"
	flag "github.com/spf13/pflag"
)

const minPasswordLen = 6

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "create-user":
		runCreateUser(args)
	case "reset-password":
		runResetPassword(args)
	case "disable-user":
		runDisableUser(args)
	case "list-users":
		runListUsers(args)
	case "-h", "--help", "help":
		usage()
	default:
		fail("unknown subcommand %q", cmd)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: printadmin <subcommand> [flags]

Subcommands:
  create-user      create a new login principal
  reset-password   overwrite a user's password hash
  disable-user     mark a user inactive
  list-users       print every known user`)
}

func openStore(dataDir string) *store.Store {
	st, err := store.Open(dataDir)
	if err != nil {
		fail("failed to open store at %s: %v", dataDir, err)
	}
	return st
}

func runCreateUser(args []string) {
	fs := flag.NewFlagSet("create-user", flag.ExitOnError)
	dataDir := fs.String("data-dir", defaultDataDir(), "job store data directory")
	username := fs.String("username", "admin", "username for the new principal")
	role := fs.String("role", string(model.RoleAdmin), "role: admin, user, or viewer")
	_ = fs.Parse(args)

	parsedRole, roleErr := parseRole(*role)
	if roleErr != nil {
		fail("%v", roleErr)
	}

	st := openStore(*dataDir)
	defer st.Close()

	if _, err := st.GetUser(*username); err == nil {
		fail("user %q already exists; use reset-password instead", *username)
	}

	password := readPassword()
	hash, salt, err := auth.HashPassword(password)
	if err != nil {
		fail("failed to hash password: %v", err)
	}

	user := &model.User{
		Username:     *username,
		PasswordHash: hash,
		PasswordSalt: salt,
		Role:         parsedRole,
		IsActive:     true,
		CreatedAt:    time.Now(),
	}
	if err = st.CreateUser(user); err != nil {
		fail("failed to create user: %v", err)
	}
	success("created user %q with role %q", *username, *role)
}

func runResetPassword(args []string) {
	fs := flag.NewFlagSet("reset-password", flag.ExitOnError)
	dataDir := fs.String("data-dir", defaultDataDir(), "job store data directory")
	username := fs.String("username", "", "username to reset")
	_ = fs.Parse(args)
	if *username == "" {
		fail("--username is required")
	}

	st := openStore(*dataDir)
	defer st.Close()

	if _, err := st.GetUser(*username); err != nil {
		fail("user %q not found: %v", *username, err)
	}

	password := readPassword()
	hash, salt, err := auth.HashPassword(password)
	if err != nil {
		fail("failed to hash password: %v", err)
	}
	if err = st.UpdateUserPassword(*username, hash, salt); err != nil {
		fail("failed to update password: %v", err)
	}
	success("password updated for %q", *username)
}

func runDisableUser(args []string) {
	fs := flag.NewFlagSet("disable-user", flag.ExitOnError)
	dataDir := fs.String("data-dir", defaultDataDir(), "job store data directory")
	username := fs.String("username", "", "username to disable")
	_ = fs.Parse(args)
	if *username == "" {
		fail("--username is required")
	}

	st := openStore(*dataDir)
	defer st.Close()

	user, err := st.GetUser(*username)
	if err != nil {
		fail("user %q not found: %v", *username, err)
	}
	user.IsActive = false
	if err = st.UpdateUser(user); err != nil {
		fail("failed to disable user: %v", err)
	}
	success("disabled user %q", *username)
}

func runListUsers(args []string) {
	fs := flag.NewFlagSet("list-users", flag.ExitOnError)
	dataDir := fs.String("data-dir", defaultDataDir(), "job store data directory")
	_ = fs.Parse(args)

	st := openStore(*dataDir)
	defer st.Close()

	users, err := st.ListUsers()
	if err != nil {
		fail("failed to list users: %v", err)
	}
	for _, u := range users {
		status := "active"
		if !u.IsActive {
			status = "disabled"
		}
		fmt.Printf("%-20s %-8s %s\n", u.Username, u.Role, status)
	}
}

func readPassword() string {
	reader := bufio.NewReader(os.Stdin)
	fmt.Print("Password: ")
	password, _ := reader.ReadString('\n')
	password = strings.TrimRight(password, "\r\n")
	fmt.Print("Confirm password: ")
	confirm, _ := reader.ReadString('\n')
	confirm = strings.TrimRight(confirm, "\r\n")
	if password != confirm {
		fail("passwords do not match")
	}
	if len(password) < minPasswordLen {
		fail("password must be at least %d characters", minPasswordLen)
	}
	return password
}

func parseRole(raw string) (model.Role, error) {
	switch model.Role(raw) {
	case model.RoleAdmin, model.RoleUser, model.RoleViewer:
		return model.Role(raw), nil
	default:
		return "", fmt.Errorf("invalid role %q: must be admin, user, or viewer", raw)
	}
}

func defaultDataDir() string {
	if dir := os.Getenv("PRINTD_DATABASE_URL"); dir != "" {
		return dir
	}
	return "./data/store"
}

func success(format string, args ...any) {
	color.New(color.FgGreen).Printf("✓ "+format+"\n", args...)
}

func fail(format string, args ...any) {
	color.New(color.FgRed).Fprintf(os.Stderr, "✗ "+format+"\n", args...)
	os.Exit(1)
}
