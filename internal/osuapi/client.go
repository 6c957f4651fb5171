// Package osuapi is a thin client for the osu! legacy API (v1): user lookups
// and beatmap set listings. All numeric values arrive as JSON strings; only
// the fields the relay computes with are converted, the rest stay verbatim
// for display.
package osuapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const defaultBaseURL = "https://osu.ppy.sh/api"

// User is a resolved player profile.
type User struct {
	ID   string
	Name string
}

// Beatmap is one difficulty of a beatmap set, plus the set-level metadata the
// API repeats on every row.
type Beatmap struct {
	SetID        string
	Version      string
	StarRating   float64
	MaxCombo     string
	AR           string
	OD           string
	HP           string
	CS           string
	Artist       string
	Title        string
	Creator      string
	BPM          string
	TotalLength  int
	ApprovedDate string // raw server timestamp, e.g. "2007-10-06 17:46:31"
	Status       string
	Favourites   string
}

// Client calls the osu! API over HTTP.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates a client. baseURL may be empty for the production API;
// if client is nil a default client with a sane timeout is used.
func NewClient(baseURL, apiKey string, client *http.Client) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    client,
	}
}

// GetUser resolves a profile by username.
func (c *Client) GetUser(ctx context.Context, name string) (*User, error) {
	var rows []userRow
	if err := c.get(ctx, "/get_user", url.Values{"u": []string{name}}, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.Errorf("osuapi: user %q not found", name)
	}
	return &User{ID: rows[0].UserID, Name: rows[0].Username}, nil
}

// GetBeatmaps lists every difficulty of a beatmap set in API order.
func (c *Client) GetBeatmaps(ctx context.Context, setID string) ([]Beatmap, error) {
	var rows []beatmapRow
	if err := c.get(ctx, "/get_beatmaps", url.Values{"s": []string{setID}}, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.Errorf("osuapi: beatmap set %s not found", setID)
	}

	out := make([]Beatmap, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toBeatmap())
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, dst any) error {
	params.Set("k", c.apiKey)
	reqURL := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return errors.Wrap(err, "osuapi: build request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "osuapi: %s", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("osuapi: %s status %s", path, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5<<20))
	if err != nil {
		return errors.Wrapf(err, "osuapi: read %s", path)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return errors.Wrapf(err, "osuapi: decode %s", path)
	}
	return nil
}

type userRow struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

type beatmapRow struct {
	BeatmapsetID   string `json:"beatmapset_id"`
	Approved       string `json:"approved"`
	ApprovedDate   string `json:"approved_date"`
	TotalLength    string `json:"total_length"`
	Version        string `json:"version"`
	Artist         string `json:"artist"`
	Title          string `json:"title"`
	Creator        string `json:"creator"`
	BPM            string `json:"bpm"`
	MaxCombo       string `json:"max_combo"`
	DiffSize       string `json:"diff_size"`
	DiffOverall    string `json:"diff_overall"`
	DiffApproach   string `json:"diff_approach"`
	DiffDrain      string `json:"diff_drain"`
	Difficulty     string `json:"difficultyrating"`
	FavouriteCount string `json:"favourite_count"`
}

func (r beatmapRow) toBeatmap() Beatmap {
	stars, _ := strconv.ParseFloat(r.Difficulty, 64)
	length, _ := strconv.Atoi(r.TotalLength)
	return Beatmap{
		SetID:        r.BeatmapsetID,
		Version:      r.Version,
		StarRating:   stars,
		MaxCombo:     r.MaxCombo,
		AR:           r.DiffApproach,
		OD:           r.DiffOverall,
		HP:           r.DiffDrain,
		CS:           r.DiffSize,
		Artist:       r.Artist,
		Title:        r.Title,
		Creator:      r.Creator,
		BPM:          r.BPM,
		TotalLength:  length,
		ApprovedDate: r.ApprovedDate,
		Status:       statusName(r.Approved),
		Favourites:   r.FavouriteCount,
	}
}

// statusName maps the API's numeric approval code to its display name.
func statusName(code string) string {
	switch code {
	case "-2":
		return "Graveyard"
	case "-1":
		return "WIP"
	case "0":
		return "Pending"
	case "1":
		return "Ranked"
	case "2":
		return "Approved"
	case "3":
		return "Qualified"
	case "4":
		return "Loved"
	default:
		return fmt.Sprintf("Unknown(%s)", code)
	}
}
