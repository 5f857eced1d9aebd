// Package google exports monthly budget summaries to a Google
// Spreadsheet. It authenticates with Service Account credentials when
// present, otherwise with an OAuth client plus the token saved by the
// oauth-init command.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"budgetblu/internal/budget"

	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	summarySheet  string
}

// NewFromEnv creates a Sheets client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID
// Credentials, in order of preference: GOOGLE_SERVICE_ACCOUNT_JSON,
// GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS; or an
// OAuth client (GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE)
// with a token from oauth-init (GOOGLE_OAUTH_TOKEN_JSON or
// GOOGLE_OAUTH_TOKEN_FILE).
// Optional: GOOGLE_SHEET_NAME (default "Budget Summary"); the current
// year is prefixed automatically.
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	sheetBase := strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME"))
	if sheetBase == "" {
		sheetBase = "Budget Summary"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		summarySheet:  fmt.Sprintf("%d %s", time.Now().Year(), sheetBase),
	}, nil
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	credentialsJSON, ok, err := serviceAccountCredentials()
	if err != nil {
		return nil, err
	}
	if ok {
		service, err := gsheet.NewService(ctx,
			goption.WithCredentialsJSON(credentialsJSON),
			goption.WithScopes(gsheet.SpreadsheetsScope))
		if err != nil {
			return nil, fmt.Errorf("create sheets service: %w", err)
		}
		return service, nil
	}

	httpClient, err := oauthHTTPClient(ctx)
	if err != nil {
		return nil, err
	}
	service, err := gsheet.NewService(ctx, goption.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// serviceAccountCredentials resolves Service Account JSON from the
// environment. ok is false when none is configured, which falls through
// to the OAuth path.
func serviceAccountCredentials() (credentialsJSON []byte, ok bool, err error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case serviceAccountJSON != "":
		return []byte(serviceAccountJSON), true, nil
	case serviceAccountFile != "":
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, false, fmt.Errorf("read service account file: %w", err)
		}
		return b, true, nil
	default:
		return nil, false, nil
	}
}

// oauthHTTPClient builds an HTTP client from the OAuth client
// credentials and the token that oauth-init saved.
func oauthHTTPClient(ctx context.Context) (*http.Client, error) {
	clientJSON := strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_CLIENT_JSON"))
	clientFile := strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_CLIENT_FILE"))

	var b []byte
	var err error
	switch {
	case clientJSON != "":
		b = []byte(clientJSON)
	case clientFile != "":
		b, err = os.ReadFile(clientFile)
		if err != nil {
			return nil, fmt.Errorf("read oauth client file: %w", err)
		}
	default:
		return nil, errors.New("missing credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_APPLICATION_CREDENTIALS, or GOOGLE_OAUTH_CLIENT_JSON)")
	}

	cfg, err := goauth.ConfigFromJSON(b, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}

	tok, err := savedToken()
	if err != nil {
		return nil, err
	}
	return cfg.Client(ctx, tok), nil
}

// savedToken loads the token written by the oauth-init command.
func savedToken() (*oauth2.Token, error) {
	tokenJSON := strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_TOKEN_JSON"))
	tokenFile := strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_TOKEN_FILE"))

	var b []byte
	var err error
	switch {
	case tokenJSON != "":
		b = []byte(tokenJSON)
	case tokenFile != "":
		b, err = os.ReadFile(tokenFile)
		if err != nil {
			return nil, fmt.Errorf("read oauth token file: %w", err)
		}
	default:
		return nil, errors.New("missing oauth token (set GOOGLE_OAUTH_TOKEN_JSON or GOOGLE_OAUTH_TOKEN_FILE)")
	}

	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, fmt.Errorf("parse oauth token: %w", err)
	}
	return &tok, nil
}

// AppendSummary appends one row per budget status to the summary sheet:
// month, user, category, spent, limit, percentage, state.
func (c *Client) AppendSummary(ctx context.Context, userID string, statuses []budget.Status) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	if len(statuses) == 0 {
		return nil
	}

	rng := fmt.Sprintf("%s!A:A", c.summarySheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to get sheet dimensions for %s: %w", c.summarySheet, err)
	}
	nextRow := len(resp.Values) + 1

	values := make([][]any, 0, len(statuses))
	for _, s := range statuses {
		month := fmt.Sprintf("%04d-%02d", s.Window.Year, int(s.Window.Month))
		values = append(values, []any{
			month,
			userID,
			s.Category,
			s.Spent.Float64(),
			s.Limit.Float64(),
			s.Percentage,
			string(s.State),
		})
	}

	dataRange := fmt.Sprintf("%s!A%d:G%d", c.summarySheet, nextRow, nextRow+len(values)-1)
	vr := &gsheet.ValueRange{Values: values}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, dataRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", dataRange, err)
	}
	return nil
}
