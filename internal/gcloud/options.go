// Package gcloud builds client options for the Google Cloud REST adapters.
package gcloud

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

// ErrNoCredentials is returned when neither an API key nor a credentials
// file is configured.
var ErrNoCredentials = errors.New("gcloud: API key or credentials file required")

// Auth selects how a Google API client authenticates.
type Auth struct {
	APIKey          string
	CredentialsFile string
	Endpoint        string
	HTTPClient      *http.Client
}

// Options turns Auth into client options. An explicit HTTPClient is used
// as-is, which lets tests point the client at a local server.
func Options(ctx context.Context, auth Auth, scope string) ([]option.ClientOption, error) {
	var opts []option.ClientOption
	if auth.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(auth.Endpoint))
	}

	switch {
	case auth.HTTPClient != nil:
		opts = append(opts, option.WithHTTPClient(auth.HTTPClient))
	case auth.CredentialsFile != "":
		data, err := os.ReadFile(auth.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("gcloud: read credentials: %w", err)
		}
		creds, err := google.CredentialsFromJSON(ctx, data, scope)
		if err != nil {
			return nil, fmt.Errorf("gcloud: parse credentials: %w", err)
		}
		// the token source outlives ctx, so it gets a background context
		client := oauth2.NewClient(context.Background(), creds.TokenSource)
		opts = append(opts, option.WithHTTPClient(client))
	case auth.APIKey != "":
		opts = append(opts, option.WithAPIKey(auth.APIKey))
	default:
		return nil, ErrNoCredentials
	}
	return opts, nil
}
