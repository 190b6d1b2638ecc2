package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/VibhaNavale/CS597-Automated-Visual-Tech-Support/internal/domain/entity"
	"go.uber.org/zap"
)

const apiBaseURL = "https://www.googleapis.com/youtube/v3"

// Discovery finds the best tutorial video for a query through the YouTube
// Data API v3: a relevance search followed by a details lookup, filtered to
// short videos and ranked by definition then view count.
type Discovery struct {
	apiKey             string
	baseURL            string
	maxResults         int
	maxDurationSeconds int
	client             *http.Client
	logger             *zap.Logger
}

func NewDiscovery(apiKey string, maxDurationSeconds int, logger *zap.Logger) *Discovery {
	return &Discovery{
		apiKey:             apiKey,
		baseURL:            apiBaseURL,
		maxResults:         10,
		maxDurationSeconds: maxDurationSeconds,
		client:             &http.Client{Timeout: 15 * time.Second},
		logger:             logger,
	}
}

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title string `json:"title"`
		} `json:"snippet"`
	} `json:"items"`
	Error *apiError `json:"error"`
}

type detailsResponse struct {
	Items []struct {
		ID             string `json:"id"`
		ContentDetails struct {
			Duration   string `json:"duration"`
			Definition string `json:"definition"`
		} `json:"contentDetails"`
		Statistics struct {
			ViewCount string `json:"viewCount"`
		} `json:"statistics"`
		Snippet struct {
			Description string `json:"description"`
		} `json:"snippet"`
	} `json:"items"`
	Error *apiError `json:"error"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (d *Discovery) Find(ctx context.Context, query string) (*entity.VideoDescriptor, error) {
	var search searchResponse
	err := d.get(ctx, "search", url.Values{
		"part":              {"snippet"},
		"q":                 {query},
		"type":              {"video"},
		"maxResults":        {strconv.Itoa(d.maxResults)},
		"relevanceLanguage": {"en"},
		"order":             {"relevance"},
		"videoDefinition":   {"high"},
	}, &search)
	if err != nil {
		return nil, fmt.Errorf("video search: %w", err)
	}
	if search.Error != nil {
		return nil, fmt.Errorf("video search: api error %d: %s", search.Error.Code, search.Error.Message)
	}

	var ids []string
	titles := make(map[string]string, len(search.Items))
	for _, item := range search.Items {
		if item.ID.VideoID == "" {
			continue
		}
		ids = append(ids, item.ID.VideoID)
		titles[item.ID.VideoID] = item.Snippet.Title
	}
	if len(ids) == 0 {
		return nil, entity.ErrNoVideoFound
	}

	var details detailsResponse
	err = d.get(ctx, "videos", url.Values{
		"part": {"contentDetails,statistics,snippet"},
		"id":   {strings.Join(ids, ",")},
	}, &details)
	if err != nil {
		return nil, fmt.Errorf("video details: %w", err)
	}
	if details.Error != nil {
		return nil, fmt.Errorf("video details: api error %d: %s", details.Error.Code, details.Error.Message)
	}

	var candidates []*entity.VideoDescriptor
	for _, item := range details.Items {
		duration := parseISODuration(item.ContentDetails.Duration)
		if duration <= 0 || duration > d.maxDurationSeconds {
			continue
		}
		views, _ := strconv.ParseInt(item.Statistics.ViewCount, 10, 64)
		candidates = append(candidates, &entity.VideoDescriptor{
			ID:              item.ID,
			URL:             "https://www.youtube.com/watch?v=" + item.ID,
			Title:           titles[item.ID],
			DurationSeconds: duration,
			Views:           views,
			Definition:      item.ContentDetails.Definition,
			Description:     item.Snippet.Description,
		})
	}
	if len(candidates) == 0 {
		return nil, entity.ErrNoVideoFound
	}

	best := pickBest(candidates)
	d.logger.Info("video selected",
		zap.String("video_id", best.ID),
		zap.String("title", best.Title),
		zap.Int("duration", best.DurationSeconds),
		zap.Int64("views", best.Views),
	)
	return best, nil
}

// pickBest prefers HD videos, then the highest view count.
func pickBest(candidates []*entity.VideoDescriptor) *entity.VideoDescriptor {
	var best *entity.VideoDescriptor
	for _, c := range candidates {
		if best == nil {
			best = c
			continue
		}
		bestHD := best.Definition == "hd"
		cHD := c.Definition == "hd"
		if cHD != bestHD {
			if cHD {
				best = c
			}
			continue
		}
		if c.Views > best.Views {
			best = c
		}
	}
	return best
}

func (d *Discovery) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	params.Set("key", d.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/%s?%s", d.baseURL, endpoint, params.Encode()), nil)
	if err != nil {
		return err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return json.NewDecoder(resp.Body).Decode(out)
}

var isoDurationPattern = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// parseISODuration converts an ISO-8601 duration like "PT1M30S" to seconds.
func parseISODuration(s string) int {
	match := isoDurationPattern.FindStringSubmatch(s)
	if match == nil {
		return 0
	}
	hours, _ := strconv.Atoi(match[1])
	minutes, _ := strconv.Atoi(match[2])
	seconds, _ := strconv.Atoi(match[3])
	return hours*3600 + minutes*60 + seconds
}
