// Package google writes month summaries to a Google spreadsheet using a
// user-consented OAuth token prepared by the oauth bootstrap binary.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	oauthgoogle "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"waterlog/internal/core"
	ports "waterlog/internal/export"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string
}

var _ ports.SummaryWriter = (*Client)(nil)

// Options locates the spreadsheet and the OAuth credential files.
type Options struct {
	SpreadsheetID string
	SheetName     string
	ClientFile    string
	TokenFile     string
}

// New builds a Sheets client from an OAuth client secret file plus a
// previously saved token file.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	sheetBase := strings.TrimSpace(opts.SheetName)
	if sheetBase == "" {
		sheetBase = "WaterLog"
	}

	clientJSON, err := os.ReadFile(opts.ClientFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth client file: %w", err)
	}
	cfg, err := oauthgoogle.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse oauth client: %w", err)
	}

	token, err := readToken(opts.TokenFile)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx, goption.WithHTTPClient(cfg.Client(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: opts.SpreadsheetID,
		sheetBase:     sheetBase,
	}, nil
}

func readToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open oauth token file: %w", err)
	}
	defer f.Close()

	token := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(token); err != nil {
		return nil, fmt.Errorf("decode oauth token: %w", err)
	}
	return token, nil
}

// WriteMonth replaces the month's rows on the "<base> <year>-<month>"
// tab. The tab must already exist on the spreadsheet.
func (c *Client) WriteMonth(ctx context.Context, user core.User, year int, month time.Month, days []core.DaySummary) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	sheetName := c.monthSheetName(year, month)

	values := make([][]any, 0, len(days)+2)
	values = append(values, []any{"Day", "Total (mL)", "Target (mL)", "Reached"})

	var monthTotal int64
	for _, day := range days {
		var total int64
		if day.Record != nil {
			total = day.Record.TotalDrank
		}
		monthTotal += total
		values = append(values, []any{day.DayKey, total, user.WaterTarget, total >= user.WaterTarget})
	}
	values = append(values, []any{"Total", monthTotal, "", ""})

	clearRange := fmt.Sprintf("%s!A:D", sheetName)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("clear %s: %w", clearRange, err)
	}

	writeRange := fmt.Sprintf("%s!A1:D%d", sheetName, len(values))
	vr := &gsheet.ValueRange{Values: values}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, writeRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("update %s: %w", writeRange, err)
	}

	return writeRange, nil
}

func (c *Client) monthSheetName(year int, month time.Month) string {
	return fmt.Sprintf("%s %d-%02d", c.sheetBase, year, int(month))
}
