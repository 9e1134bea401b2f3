package instagram

import (
	"fmt"
	"strings"
)

const (
	// BaseURL is the base URL for Instagram
	BaseURL = "https://www.instagram.com"

	// CookieDomain is the domain session cookies are scoped to
	CookieDomain = ".instagram.com"

	// SavedFeedPath is the owner-relative path of the saved-posts feed
	SavedFeedPath = "/saved/all-posts/"
)

// RootURL returns the page visited before cookies are injected
func RootURL() string {
	return BaseURL + "/"
}

// GetSavedFeedURL constructs the URL of a user's saved posts feed
func GetSavedFeedURL(username string) string {
	if username == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s%s", BaseURL, username, SavedFeedPath)
}

// GetPostURL constructs the permanent URL for a post shortcode
func GetPostURL(shortcode string) string {
	if shortcode == "" {
		return ""
	}
	return fmt.Sprintf("%s/p/%s/", BaseURL, shortcode)
}

// GetUserProfileURL constructs the public profile URL for a user
func GetUserProfileURL(username string) string {
	if username == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/", BaseURL, username)
}

// IsValidUsername checks if a username is valid according to Instagram rules
func IsValidUsername(username string) bool {
	if username == "" || len(username) > 30 {
		return false
	}

	// Instagram usernames can only contain letters, numbers, periods, and underscores
	for _, char := range username {
		if !((char >= 'a' && char <= 'z') ||
			(char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') ||
			char == '.' || char == '_') {
			return false
		}
	}

	return true
}

// SanitizeUsername strips a leading @, surrounding spaces and trailing slashes
func SanitizeUsername(username string) string {
	username = strings.TrimSpace(username)
	username = strings.TrimPrefix(username, "@")
	return strings.TrimRight(username, "/ ")
}
