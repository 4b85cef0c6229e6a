// Package services implements the HTTP clients for the playlist [Source] and the acquisition
// [Backend].
//
// # Spotify
//
// [SpotifyService] authenticates with the OAuth2 client credentials grant, so only public or
// collaborative playlists the application can see are readable. Tokens are fetched and refreshed
// by the [clientcredentials] token source. Playlist items are paginated by following the "next"
// link until it is null; local files and removed tracks arrive as null and are skipped.
//
// # slskd
//
// [SlskdService] talks to the slskd REST API (api/v0) with an X-API-Key header:
//
//	POST   /searches                           start a search
//	GET    /searches/{id}?includeResponses=true  poll aggregated peer responses
//	POST   /transfers/downloads/{username}      queue a download
//	GET    /transfers/downloads                 list transfers grouped by user and directory
//	DELETE /transfers/downloads/{username}/{id} cancel a transfer
//
// # Error Handling
//
// Services use sentinel errors from the shared package:
//   - [shared.ErrMissingCredentials] : client id or secret not configured
//   - [shared.ErrAPIRequest] : non-2xx response
//   - [shared.ErrPlaylistNotFound] : playlist does not exist or is not visible
//   - [shared.ErrDownloadRejected] : the backend refused a download request
package services
