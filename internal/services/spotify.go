// Spotify Web API implementation of [Source]
//
// Response types based on https://developer.spotify.com/documentation/web-api/reference/get-playlists-tracks
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/mixbridge/internal/models"
	"github.com/desertthunder/mixbridge/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"
	spotifyPageSize = 100
)

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Artists []SpotifyArtist `json:"artists"`
}

// SpotifyPlaylistTrack represents a track within a playlist context. Track is nil for removed
// or unavailable items.
type SpotifyPlaylistTrack struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

// SpotifyPlaylistTracks is one page of playlist items.
type SpotifyPlaylistTracks struct {
	Items  []SpotifyPlaylistTrack `json:"items"`
	Total  int                    `json:"total"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
	Next   *string                `json:"next"`
}

// SpotifyService implements [Source] for the Spotify Web API.
type SpotifyService struct {
	config  *clientcredentials.Config
	baseURL string
}

// NewSpotifyService creates a Spotify source from credentials.
//
// Requires "client_id" and "client_secret"; "token_url" and "api_url" override the public endpoints.
func NewSpotifyService(credentials map[string]string) (*SpotifyService, error) {
	clientID := credentials["client_id"]
	if clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret := credentials["client_secret"]
	if clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	tokenURL, ok := credentials["token_url"]
	if !ok || tokenURL == "" {
		tokenURL = spotifyTokenURL
	}

	baseURL, ok := credentials["api_url"]
	if !ok || baseURL == "" {
		baseURL = spotifyBaseURL
	}

	return &SpotifyService{
		config: &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// doRequest performs a GET against an absolute Spotify API URL with an authenticated client.
func (s *SpotifyService) doRequest(ctx context.Context, client *http.Client, apiURL string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return shared.ErrPlaylistNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		var errResp struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error.Message != "" {
			return fmt.Errorf("%w: spotify status %d: %s", shared.ErrAPIRequest, resp.StatusCode, errResp.Error.Message)
		}
		return fmt.Errorf("%w: spotify status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Tracks returns every track in the playlist, using the first credited artist.
func (s *SpotifyService) Tracks(ctx context.Context, ref string) ([]models.Track, error) {
	id, err := ParsePlaylistRef(ref)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("limit", fmt.Sprint(spotifyPageSize))
	params.Set("fields", "items(track(id,name,artists(id,name))),total,limit,offset,next")
	next := fmt.Sprintf("%s/playlists/%s/tracks?%s", s.baseURL, url.PathEscape(id), params.Encode())

	client := s.config.Client(ctx)

	var tracks []models.Track
	for next != "" {
		var page SpotifyPlaylistTracks
		if err := s.doRequest(ctx, client, next, &page); err != nil {
			if errors.Is(err, shared.ErrPlaylistNotFound) {
				return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, id)
			}
			return nil, err
		}

		for _, item := range page.Items {
			if item.Track == nil || item.Track.Name == "" || len(item.Track.Artists) == 0 {
				continue
			}
			tracks = append(tracks, models.Track{
				Artist: item.Track.Artists[0].Name,
				Title:  item.Track.Name,
			})
		}

		next = ""
		if page.Next != nil {
			next = *page.Next
		}
	}

	return tracks, nil
}

// ParsePlaylistRef extracts a playlist ID from a bare ID, a spotify:playlist: URI or an
// open.spotify.com share URL.
func ParsePlaylistRef(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("%w: playlist reference", shared.ErrMissingArgument)
	}

	if id, ok := strings.CutPrefix(ref, "spotify:playlist:"); ok {
		return id, nil
	}

	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		u, err := url.Parse(ref)
		if err != nil {
			return "", fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
		}
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		for i := 0; i < len(parts)-1; i++ {
			if parts[i] == "playlist" && parts[i+1] != "" {
				return parts[i+1], nil
			}
		}
		return "", fmt.Errorf("%w: not a playlist URL: %s", shared.ErrInvalidArgument, ref)
	}

	if strings.ContainsAny(ref, ":/ ") {
		return "", fmt.Errorf("%w: unrecognized playlist reference: %s", shared.ErrInvalidArgument, ref)
	}
	return ref, nil
}
