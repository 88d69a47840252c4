package pokopred

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/DantesRevengeReloaded/pokopred/internal/logger"
	"github.com/PuerkitoBio/goquery"
)

// Datasource fetches raw match data from football-data.co.uk shaped sources.
// Season CSVs are cached on disk; downloads retry a bounded number of times
// before reporting a terminal error.
type Datasource struct {
	cfg    *Config
	client *http.Client
}

// NewDatasource returns a datasource bound to the run configuration
func NewDatasource(cfg *Config) *Datasource {
	return &Datasource{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// get performs an HTTP GET with bounded retries and growing backoff
func (ds *Datasource) get(url string) ([]byte, error) {
	var lastErr error
	backoff := ds.cfg.DownloadBackoff

	for attempt := 1; attempt <= ds.cfg.DownloadRetries; attempt++ {
		resp, err := ds.client.Get(url)
		if err == nil {
			body, rerr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if rerr == nil && resp.StatusCode == http.StatusOK {
				return body, nil
			}
			if rerr != nil {
				lastErr = rerr
			} else {
				lastErr = fmt.Errorf("unexpected status %d", resp.StatusCode)
			}
		} else {
			lastErr = err
		}

		logger.Warn("Download attempt failed", attempt, "of", ds.cfg.DownloadRetries, url, lastErr)
		if attempt < ds.cfg.DownloadRetries {
			time.Sleep(backoff)
			backoff *= 2
		}
	}

	return nil, fmt.Errorf("download failed after %d attempts for %s: %w",
		ds.cfg.DownloadRetries, url, lastErr)
}

// FetchSeasonCSV returns the raw season CSV for a league, from cache when
// available
func (ds *Datasource) FetchSeasonCSV(league, season string) (string, error) {
	normalized, err := ParseSeason(season)
	if err != nil {
		return "", err
	}
	code, err := SeasonURLCode(normalized)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(ds.cfg.CachePath, 0755); err != nil {
		return "", fmt.Errorf("failed to create cache directory: %w", err)
	}

	safeSeason := strings.ReplaceAll(normalized, "/", "-")
	cacheFilename := filepath.Join(ds.cfg.CachePath, fmt.Sprintf("raw-league-csv-%s-%s.csv", safeSeason, league))

	if cacheData, err := os.ReadFile(cacheFilename); err == nil {
		logger.Debug("Returning data from cached file for", league, normalized)
		return string(cacheData), nil
	}

	logger.Info("Fetching historical data from football-data.co.uk for", league, normalized)
	url := fmt.Sprintf("%s/%s/%s.csv", ds.cfg.DataBaseURL, code, league)
	body, err := ds.get(url)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(cacheFilename, body, 0644); err != nil {
		logger.Warn("Failed to write cache file", cacheFilename, err)
		// Continue processing even if caching fails
	}
	return string(body), nil
}

// ParseMatchCSV parses a football-data.co.uk season CSV into Match rows.
// Rows that cannot be parsed are skipped and logged; the rest come through.
func (ds *Datasource) ParseMatchCSV(csvData, league, season string) ([]*Match, error) {
	normalized, err := ParseSeason(season)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(strings.NewReader(csvData))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	if len(records) == 0 {
		return []*Match{}, nil
	}

	headers := records[0]
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], "\uFEFF")
	}

	var matches []*Match
	for i, record := range records[1:] {
		row := make(map[string]string)
		for j, value := range record {
			if j < len(headers) {
				row[headers[j]] = strings.TrimSpace(value)
			}
		}

		// Trailing empty rows are common in these files
		if row["HomeTeam"] == "" && row["AwayTeam"] == "" {
			continue
		}

		match, err := ds.parseMatchRow(row, league, normalized)
		if err != nil {
			logger.Warn("Failed to parse match at row", i+2, err)
			continue
		}
		matches = append(matches, match)
	}

	logger.Info("Parsed", len(matches), "matches from CSV for", league, normalized)
	return matches, nil
}

// parseMatchRow converts one CSV row into a Match
func (ds *Datasource) parseMatchRow(row map[string]string, league, season string) (*Match, error) {
	homeTeam := strings.TrimSpace(row["HomeTeam"])
	awayTeam := strings.TrimSpace(row["AwayTeam"])
	if homeTeam == "" || awayTeam == "" {
		return nil, fmt.Errorf("missing team names")
	}

	date, err := parseMatchDateTime(row)
	if err != nil {
		return nil, err
	}

	match := NewMatch(league, season, date, homeTeam, awayTeam)

	if v := row["FTHG"]; v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			match.HomeGoals = n
		}
	}
	if v := row["FTAG"]; v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			match.AwayGoals = n
		}
	}
	if v := row["HST"]; v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			match.HomeShotsOnTarget = n
		}
	}
	if v := row["AST"]; v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			match.AwayShotsOnTarget = n
		}
	}

	match.AvgHomeOdds, match.AvgDrawOdds, match.AvgAwayOdds = averageOdds(row)

	return match, nil
}

// parseMatchDateTime combines the Date and Time columns into a UTC time.
// football-data.co.uk publishes dd/mm/yyyy and, in older files, dd/mm/yy.
// Kickoff defaults to 15:00 local when the Time column is absent.
func parseMatchDateTime(row map[string]string) (time.Time, error) {
	dateStr := row["Date"]
	if dateStr == "" {
		return time.Time{}, fmt.Errorf("no Date field found")
	}

	dtStr := strings.TrimSpace(dateStr)
	if timeStr := strings.TrimSpace(row["Time"]); timeStr != "" {
		dtStr += " " + timeStr
	} else {
		dtStr += " 15:00"
	}

	formats := []string{
		"02/01/2006 15:04",
		"02/01/06 15:04",
	}

	var parsed time.Time
	var parseErr error
	for _, format := range formats {
		if t, err := time.Parse(format, dtStr); err == nil {
			parsed = t
			parseErr = nil
			break
		} else {
			parseErr = err
		}
	}
	if parseErr != nil {
		return time.Time{}, fmt.Errorf("could not parse date from %s: %w", dtStr, parseErr)
	}

	// The source publishes London kickoff times
	loc, err := time.LoadLocation("Europe/London")
	if err != nil {
		return parsed.UTC(), nil
	}
	london := time.Date(parsed.Year(), parsed.Month(), parsed.Day(),
		parsed.Hour(), parsed.Minute(), 0, 0, loc)
	return london.UTC(), nil
}

// averageOdds extracts average bookmaker odds from a CSV row, preferring the
// published averages and falling back to averaging individual bookmakers.
// Returns (-1, -1, -1) when no odds are present.
func averageOdds(row map[string]string) (float64, float64, float64) {
	read3 := func(h, d, a string) (float64, float64, float64, bool) {
		if row[h] == "" || row[d] == "" || row[a] == "" {
			return 0, 0, 0, false
		}
		ho, err1 := strconv.ParseFloat(row[h], 64)
		do, err2 := strconv.ParseFloat(row[d], 64)
		ao, err3 := strconv.ParseFloat(row[a], 64)
		if err1 != nil || err2 != nil || err3 != nil {
			return 0, 0, 0, false
		}
		return ho, do, ao, true
	}

	if ho, do, ao, ok := read3("AvgH", "AvgD", "AvgA"); ok {
		return ho, do, ao
	}
	if ho, do, ao, ok := read3("AvgCH", "AvgCD", "AvgCA"); ok {
		return ho, do, ao
	}

	bookies := []string{"B365", "BW", "IW", "PS", "WH", "VC"}
	var homeTotal, drawTotal, awayTotal float64
	count := 0
	for _, b := range bookies {
		if ho, do, ao, ok := read3(b+"H", b+"D", b+"A"); ok {
			homeTotal += ho
			drawTotal += do
			awayTotal += ao
			count++
		}
	}
	if count > 0 {
		n := float64(count)
		return homeTotal / n, drawTotal / n, awayTotal / n
	}

	return -1.0, -1.0, -1.0
}

/////////////////////////////////////////////////////////////////////////
////// Upcoming Fixtures
/////////////////////////////////////////////////////////////////////////

// fixturePayload mirrors the JSON embedded in the fixtures page
type fixturePayload struct {
	Props struct {
		PageProps struct {
			Fixtures []struct {
				League   string `json:"league"`
				Season   string `json:"season"`
				HomeTeam string `json:"homeTeam"`
				AwayTeam string `json:"awayTeam"`
				UTCTime  string `json:"utcTime"`
			} `json:"fixtures"`
		} `json:"pageProps"`
	} `json:"props"`
}

// FetchUpcomingFixtures pulls the embedded JSON payload out of the fixtures
// page and returns the scheduled matches for the configured leagues
func (ds *Datasource) FetchUpcomingFixtures(season string) ([]*Match, error) {
	normalized, err := ParseSeason(season)
	if err != nil {
		return nil, err
	}

	body, err := ds.get(ds.cfg.FixturesBaseURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("error parsing HTML: %w", err)
	}

	var scriptData string
	doc.Find("script#__NEXT_DATA__").Each(func(i int, s *goquery.Selection) {
		scriptData = s.Text()
	})
	if scriptData == "" {
		return nil, fmt.Errorf("could not find __NEXT_DATA__ script tag")
	}

	var payload fixturePayload
	if err := json.Unmarshal([]byte(scriptData), &payload); err != nil {
		return nil, fmt.Errorf("error parsing fixtures JSON: %w", err)
	}

	wanted := make(map[string]bool, len(ds.cfg.Leagues))
	for _, l := range ds.cfg.Leagues {
		wanted[l] = true
	}

	var fixtures []*Match
	for _, f := range payload.Props.PageProps.Fixtures {
		if !wanted[f.League] {
			continue
		}
		t, err := time.Parse(time.RFC3339, f.UTCTime)
		if err != nil {
			logger.Warn("Skipping fixture with bad kickoff time", f.HomeTeam, "vs", f.AwayTeam, err)
			continue
		}
		fixtures = append(fixtures, NewMatch(f.League, normalized, t, f.HomeTeam, f.AwayTeam))
	}

	logger.Info("Extracted", len(fixtures), "upcoming fixtures")
	return fixtures, nil
}
