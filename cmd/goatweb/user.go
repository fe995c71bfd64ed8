package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/go-while/go-goatweb/internal/auth"
	"github.com/go-while/go-goatweb/internal/config"
	"github.com/go-while/go-goatweb/internal/database"
	"github.com/go-while/go-goatweb/internal/models"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// readPassword reads a password without echo. Tests replace it.
var readPassword = func() (string, error) {
	b, err := term.ReadPassword(int(syscall.Stdin))
	return string(b), err
}

var (
	userFirst string
	userLast  string
	userEmail string
	userAdmin bool
	userYes   bool
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
	Long: `Create, list, delete users and change their passwords.

The database named in the config is used. Passwords are read from the
terminal without echo.`,
}

var userCreateCmd = &cobra.Command{
	Use:   "create <username>",
	Short: "Create a new user",
	Example: `  goatweb user create alice --first Alice --email alice@example.com
  goatweb user create root --admin`,
	Args: cobra.ExactArgs(1),
	RunE: withDB(userCreate),
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all users",
	Args:  cobra.NoArgs,
	RunE:  withDB(userList),
}

var userDeleteCmd = &cobra.Command{
	Use:   "delete <username>",
	Short: "Delete a user and all of its memos",
	Args:  cobra.ExactArgs(1),
	RunE:  withDB(userDelete),
}

var userPasswdCmd = &cobra.Command{
	Use:   "passwd <username>",
	Short: "Set a new password and clear the lockout",
	Args:  cobra.ExactArgs(1),
	RunE:  withDB(userPasswd),
}

func init() {
	userCreateCmd.Flags().StringVar(&userFirst, "first", "", "first name")
	userCreateCmd.Flags().StringVar(&userLast, "last", "", "last name")
	userCreateCmd.Flags().StringVar(&userEmail, "email", "", "email address")
	userCreateCmd.Flags().BoolVar(&userAdmin, "admin", false, "grant admin rights")
	userDeleteCmd.Flags().BoolVarP(&userYes, "yes", "y", false, "do not ask for confirmation")

	userCmd.AddCommand(userCreateCmd, userListCmd, userDeleteCmd, userPasswdCmd)
	rootCmd.AddCommand(userCmd)
}

// withDB opens the configured database around a user command
func withDB(fn func(cmd *cobra.Command, db *database.Database, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		db, err := database.Open(dbConfig(cfg))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDBConnect, err)
		}
		defer db.Close()
		return fn(cmd, db, args)
	}
}

// promptPassword asks twice and validates the result
func promptPassword(out io.Writer) (string, error) {
	fmt.Fprint(out, "Enter password: ")
	password, err := readPassword()
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if err := auth.ValidatePassword(password); err != nil {
		return "", err
	}
	fmt.Fprint(out, "Confirm password: ")
	confirm, err := readPassword()
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if password != confirm {
		return "", errors.New("passwords do not match")
	}
	return password, nil
}

func userCreate(cmd *cobra.Command, db *database.Database, args []string) error {
	out := cmd.OutOrStdout()
	username := models.NormalizeUsername(args[0])
	if err := auth.ValidateUsername(username); err != nil {
		return err
	}
	if err := auth.ValidateEmail(userEmail); err != nil {
		return err
	}
	if existing, err := db.GetUserByUsername(username); err == nil && existing != nil {
		return fmt.Errorf("user '%s' already exists", username)
	}

	password, err := promptPassword(out)
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	user := &models.User{
		Username:     username,
		FirstName:    userFirst,
		LastName:     userLast,
		Email:        userEmail,
		PasswordHash: hash,
		IsAdmin:      userAdmin,
	}
	if err := db.CreateUser(user); err != nil {
		return err
	}
	fmt.Fprintf(out, "✅ User '%s' created successfully (id %d)\n", username, user.ID)
	return nil
}

func userList(cmd *cobra.Command, db *database.Database, _ []string) error {
	users, err := db.ListUsers()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(users) == 0 {
		fmt.Fprintln(out, "No users found.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSERNAME\tNAME\tEMAIL\tADMIN\tFAILED LOGINS\tCREATED")
	for _, u := range users {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%t\t%d\t%s\n",
			u.ID, u.Username, u.DisplayName(), u.Email, u.IsAdmin, u.LoginAttempts,
			u.CreatedAt.Format("2006-01-02 15:04"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nTotal: %d users\n", len(users))
	return nil
}

func userDelete(cmd *cobra.Command, db *database.Database, args []string) error {
	out := cmd.OutOrStdout()
	username := args[0]
	if !userYes {
		fmt.Fprintf(out, "Delete user '%s' and all of its memos? [y/N]: ", username)
		answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		answer = strings.ToLower(strings.TrimSpace(answer))
		if answer != "y" && answer != "yes" {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}
	if err := db.DeleteUser(username); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("user '%s' not found", username)
		}
		return err
	}
	fmt.Fprintf(out, "✅ User '%s' deleted\n", username)
	return nil
}

func userPasswd(cmd *cobra.Command, db *database.Database, args []string) error {
	out := cmd.OutOrStdout()
	username := args[0]
	if _, err := db.GetUserByUsername(username); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("user '%s' not found", username)
		}
		return err
	}
	password, err := promptPassword(out)
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	if err := db.UpdateUserPassword(username, hash); err != nil {
		return err
	}
	fmt.Fprintf(out, "✅ Password of '%s' updated\n", username)
	return nil
}
