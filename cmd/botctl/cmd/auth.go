package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/Rohianon/chatcommerce/cmd/botctl/internal/auth"
	"github.com/Rohianon/chatcommerce/cmd/botctl/internal/client"
	"github.com/Rohianon/chatcommerce/cmd/botctl/internal/output"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authentication commands",
	Long:  "Login to the admin API, logout, and show the current session.",
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Login with an admin account",
	Long:  "Exchange an admin username and password for an access token.",
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Logout and clear stored credentials",
	RunE:  runLogout,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show authentication status",
	RunE:  runStatus,
}

var usernameFlag string

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(statusCmd)

	loginCmd.Flags().StringVarP(&usernameFlag, "username", "u", "", "admin username")
}

func runLogin(cmd *cobra.Command, args []string) error {
	username := usernameFlag
	if username == "" {
		username = prompt("Username")
	}
	password := promptSecret("Password")

	c := client.New()
	output.Info("Logging in...")

	token, err := c.Login(username, password)
	if err != nil {
		output.Error(err.Error())
		return nil
	}

	if err := auth.Save(&auth.StoredAuth{
		AccessToken: token.AccessToken,
		ExpiresAt:   token.ExpiresAt,
		Username:    username,
		APIURL:      viper.GetString("api_url"),
	}); err != nil {
		output.Warning("Could not save credentials: " + err.Error())
	}

	output.Success("Logged in successfully!")
	fmt.Println()
	output.KeyValue([][]string{
		{"User", username},
		{"Expires", token.ExpiresAt.Local().Format(time.RFC1123)},
	})

	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	if err := auth.Clear(); err != nil {
		output.Error("Failed to logout: " + err.Error())
		return nil
	}

	output.Success("Logged out successfully")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	stored, err := auth.Load()
	if err != nil {
		output.Error("Failed to read auth: " + err.Error())
		return nil
	}

	if stored == nil || stored.AccessToken == "" {
		if getFormat() == "json" {
			return output.JSON(map[string]any{"logged_in": false})
		}
		output.Info("Not logged in")
		output.Info("Run 'botctl auth login' to login")
		return nil
	}

	isExpired := time.Now().After(stored.ExpiresAt)

	if getFormat() == "json" {
		return output.JSON(map[string]any{
			"logged_in":  !isExpired,
			"username":   stored.Username,
			"api_url":    stored.APIURL,
			"expires_at": stored.ExpiresAt,
			"expired":    isExpired,
		})
	}

	if isExpired {
		output.Warning("Session expired")
		output.Info("Run 'botctl auth login' to login again")
		return nil
	}

	output.Success("Logged in")
	fmt.Println()
	output.KeyValue([][]string{
		{"User", stored.Username},
		{"API", stored.APIURL},
		{"Expires", stored.ExpiresAt.Format(time.RFC3339)},
	})

	return nil
}

func requireAuth() (*client.Client, error) {
	if !auth.IsLoggedIn() {
		output.Error("Not logged in. Run 'botctl auth login' first.")
		return nil, fmt.Errorf("not authenticated")
	}

	c := client.New()
	c.SetToken(auth.GetToken())
	return c, nil
}

func prompt(label string) string {
	fmt.Printf("%s: ", label)
	reader := bufio.NewReader(os.Stdin)
	text, _ := reader.ReadString('\n')
	return strings.TrimSpace(text)
}

func promptSecret(label string) string {
	fmt.Printf("%s: ", label)
	bytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return ""
	}
	return string(bytes)
}
