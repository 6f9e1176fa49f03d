package supabase

import (
	"fmt"

	"github.com/supabase-community/supabase-go"
)

// Client wraps the Supabase project client. It is used to resolve the user
// behind an access token when registering push subscriptions.
type Client struct {
	Supabase *supabase.Client
}

func NewClient(supabaseURL, serviceKey string) (*Client, error) {
	client, err := supabase.NewClient(supabaseURL, serviceKey, nil)
	if err != nil {
		return nil, err
	}

	return &Client{Supabase: client}, nil
}

// UserIDForToken asks Supabase Auth which user issued the given access
// token. The identity always comes from the token, never from request data.
func (c *Client) UserIDForToken(accessToken string) (string, error) {
	user, err := c.Supabase.Auth.WithToken(accessToken).GetUser()
	if err != nil {
		return "", fmt.Errorf("failed to resolve user from token: %w", err)
	}
	return user.ID.String(), nil
}
