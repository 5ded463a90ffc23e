package placewatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/hazyhaar/reviewbuddy/fetchsafe"

	"github.com/hazyhaar/reviewbuddy/place"
	"github.com/hazyhaar/reviewbuddy/placewatch/internal/enrich"
	"github.com/hazyhaar/reviewbuddy/placewatch/internal/extractor"
	"github.com/hazyhaar/reviewbuddy/placewatch/internal/panel"
)

// InspectResult is the outcome of a one-shot static extraction.
type InspectResult struct {
	Source   string       `json:"source"`
	Found    bool         `json:"found"`
	Reason   string       `json:"reason,omitempty"`
	Place    *PlaceStatus `json:"place,omitempty"`
	Score    *ScoreStatus `json:"score,omitempty"`
	Markdown string       `json:"markdown"`
}

// Inspect extracts the place from a saved page (file path) or from the
// server-rendered markup at an http(s) URL, without a browser. With
// withScore the score service is queried once.
func Inspect(ctx context.Context, cfg *Config, src string, withScore bool, logger *slog.Logger) (*InspectResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	body, err := readSource(ctx, src)
	if err != nil {
		return nil, err
	}

	st, err := extractor.ParseStatic(bytes.NewReader(body), selectors(cfg), logger)
	if err != nil {
		return nil, err
	}

	res := &InspectResult{Source: src}
	d, reason := extractor.Decide(st.Read())
	if reason != nil {
		res.Reason = reason.Error()
	}

	view := panel.View{Score: place.Unavailable()}
	if d.Found {
		res.Found = true
		res.Place = placeStatus(d.Record)
		rec := d.Record
		view.Record = &rec
	}
	if d.Found && withScore {
		client := enrich.New(cfg.Enrich.Endpoint,
			enrich.WithReviews(cfg.Enrich.Reviews),
			enrich.WithTimeout(cfg.Enrich.Timeout),
			enrich.WithLogger(logger),
		)
		s := client.FetchScore(ctx, d.Record)
		ss := scoreStatus(s)
		res.Score = &ss
		view.Score = s
	}

	md, err := panel.Markdown(view)
	if err != nil {
		return nil, fmt.Errorf("placewatch: inspect: %w", err)
	}
	res.Markdown = md
	return res, nil
}

// readSource reads a saved page or fetches src when it is an http(s) URL.
// Both are capped at fetchsafe.MaxPageBody.
func readSource(ctx context.Context, src string) ([]byte, error) {
	var r io.Reader
	if fetchsafe.IsHTTPURL(src) {
		if _, err := fetchsafe.CheckURL(src); err != nil {
			return nil, fmt.Errorf("placewatch: inspect: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
		if err != nil {
			return nil, fmt.Errorf("placewatch: inspect: %w", err)
		}
		req.Header.Set("Accept", "text/html")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("placewatch: inspect: fetch: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("placewatch: inspect: status %d: %w", resp.StatusCode, errors.New(http.StatusText(resp.StatusCode)))
		}
		r = resp.Body
	} else {
		f, err := os.Open(src)
		if err != nil {
			return nil, fmt.Errorf("placewatch: inspect: %w", err)
		}
		defer f.Close()
		r = f
	}

	body, err := fetchsafe.LimitedReadAll(r, fetchsafe.MaxPageBody)
	if err != nil {
		return nil, fmt.Errorf("placewatch: inspect: read %s: %w", src, err)
	}
	return body, nil
}
