package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"expensetracker/internal/core"
	"expensetracker/internal/export"
)

const maxBodyBytes = 1 << 20

var errEmptyBody = errors.New("request body is required")

// decodeJSON reads one JSON value from the body into v. Trailing data is
// rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON value")
	}
	return nil
}

// parseExportOptions reads format, filename, from, to, category and metadata.
// category may repeat or hold a comma separated list; "all" selects every
// category.
func parseExportOptions(q url.Values) (export.Options, error) {
	var opts export.Options

	f, err := export.ParseFormat(q.Get("format"))
	if err != nil {
		return export.Options{}, err
	}
	opts.Format = f
	opts.Filename = strings.TrimSpace(q.Get("filename"))

	if v := strings.TrimSpace(q.Get("from")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return export.Options{}, fmt.Errorf("from: %w", err)
		}
		opts.DateRange.Start = &d
	}
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return export.Options{}, fmt.Errorf("to: %w", err)
		}
		opts.DateRange.End = &d
	}

	for _, raw := range q["category"] {
		for _, v := range strings.Split(raw, ",") {
			v = strings.TrimSpace(v)
			if v == "" || strings.EqualFold(v, string(core.CategoryAll)) {
				continue
			}
			c, err := core.ParseCategory(v)
			if err != nil {
				return export.Options{}, err
			}
			opts.Categories = append(opts.Categories, c)
		}
	}

	if v := strings.TrimSpace(q.Get("metadata")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return export.Options{}, fmt.Errorf("metadata: %w", err)
		}
		opts.IncludeMetadata = b
	}
	return opts, nil
}

// intParam returns def when name is absent.
func intParam(q url.Values, name string, def int) (int, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return n, nil
}
