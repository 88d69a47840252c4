package pokopred

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseSeason normalizes the various season spellings found in the wild into
// the canonical YYYY/YYYY form. Accepted inputs:
//
//	"2023/2024", "2023-2024"  full form, either delimiter
//	"2023/24",   "2023-24"    abbreviated second year
//	"2324"                    football-data.co.uk URL code
func ParseSeason(season string) (string, error) {
	ss := strings.TrimSpace(season)
	if ss == "" {
		return "", fmt.Errorf("must pass a season")
	}
	if len(ss) == 9 && (ss[4] == '/' || ss[4] == '-') {
		first, err := strconv.Atoi(ss[:4])
		if err != nil {
			return "", fmt.Errorf("invalid season format: %s", ss)
		}
		second, err := strconv.Atoi(ss[5:])
		if err != nil {
			return "", fmt.Errorf("invalid season format: %s", ss)
		}
		if second != first+1 {
			return "", fmt.Errorf("season years must be consecutive: %s", ss)
		}
		return fmt.Sprintf("%04d/%04d", first, second), nil
	}
	// abbreviated second year, e.g. 2023/24
	if len(ss) == 7 && (ss[4] == '/' || ss[4] == '-') {
		return ParseSeason(fmt.Sprintf("%s/%s%s", ss[:4], ss[:2], ss[5:]))
	}
	// four digit URL code, e.g. 2324 for 2023/2024
	if len(ss) == 4 {
		first, err := strconv.Atoi(ss[:2])
		if err != nil {
			return "", fmt.Errorf("invalid season format: %s", ss)
		}
		second, err := strconv.Atoi(ss[2:])
		if err != nil || second != (first+1)%100 {
			return "", fmt.Errorf("invalid season format: %s", ss)
		}
		return ParseSeason(fmt.Sprintf("20%02d/20%02d", first, first+1))
	}
	return "", fmt.Errorf("invalid season format: %s", ss)
}

// GetFirstYear returns the first year of a season in any accepted spelling
func GetFirstYear(season string) (int, error) {
	s, err := ParseSeason(season)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(s[:4])
}

// GetSecondYear returns the second year of a season in any accepted spelling
func GetSecondYear(season string) (int, error) {
	s, err := ParseSeason(season)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(s[5:])
}

// IsSameSeason reports whether two season spellings refer to the same season
func IsSameSeason(s1, s2 string) (bool, error) {
	a, err := ParseSeason(s1)
	if err != nil {
		return false, err
	}
	b, err := ParseSeason(s2)
	if err != nil {
		return false, err
	}
	return a == b, nil
}

// SeasonURLCode returns the football-data.co.uk URL code for a season,
// e.g. "2023/2024" becomes "2324"
func SeasonURLCode(season string) (string, error) {
	s, err := ParseSeason(season)
	if err != nil {
		return "", err
	}
	return s[2:4] + s[7:], nil
}
