package cmd

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login [email] [password]",
	Short: "Log in and cache the access token",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		login(args[0], args[1])
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Revoke and forget the cached access token",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		logout()
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in account",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		whoami()
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
}

func login(email, password string) {
	payload := map[string]string{"email": email, "password": password}

	var result struct {
		Token string `json:"token"`
		User  struct {
			Username string
		} `json:"user"`
	}
	if err := doJSON(http.MethodPost, "/api/v1/auth/login", payload, false, &result); err != nil {
		log.Fatalf("Login failed: %v", err)
	}
	if err := saveToken(result.Token); err != nil {
		log.Fatalf("Could not cache token: %v", err)
	}
	fmt.Printf("Logged in as %s\n", result.User.Username)
}

func logout() {
	if err := doJSON(http.MethodPost, "/api/v1/auth/logout", nil, true, nil); err != nil {
		log.Fatalf("Logout failed: %v", err)
	}
	if path, err := tokenPath(); err == nil {
		os.Remove(path)
	}
	fmt.Println("Logged out.")
}

func whoami() {
	var user struct {
		Username string
		Email    string
		Roles    []struct {
			Name string
		}
	}
	if err := doJSON(http.MethodGet, "/api/v1/auth/me", nil, true, &user); err != nil {
		log.Fatalf("Request failed: %v", err)
	}

	fmt.Printf("%s <%s>\n", user.Username, user.Email)
	for _, r := range user.Roles {
		fmt.Printf("  role: %s\n", r.Name)
	}
}
