package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatURLs Format = "urls"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatJSON, FormatURLs:
		return f, nil
	case "txt":
		return FormatURLs, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// DetectFormat guesses the format from the file name, then the content
// type, then the first bytes of the document.
func DetectFormat(name, contentType string, peek []byte) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return FormatCSV
	case ".json":
		return FormatJSON
	case ".txt":
		return FormatURLs
	}

	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		switch mt {
		case "text/csv":
			return FormatCSV
		case "application/json":
			return FormatJSON
		case "text/plain":
			return FormatURLs
		}
	}

	trimmed := bytes.TrimSpace(peek)
	if bytes.HasPrefix(trimmed, []byte("[")) {
		return FormatJSON
	}
	firstLine, _, _ := bytes.Cut(trimmed, []byte("\n"))
	if bytes.Contains(firstLine, []byte(",")) {
		return FormatCSV
	}
	return FormatURLs
}

// row is one decoded submission. Err is set when the row itself could not
// be read, the rest of the batch is unaffected.
type row struct {
	line int
	url  string
	meta *Metadata
	err  error
}

func decode(r io.Reader, format Format) ([]row, error) {
	switch format {
	case FormatCSV:
		return decodeCSV(r)
	case FormatJSON:
		return decodeJSON(r)
	case FormatURLs:
		return decodeURLs(r)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

func decodeCSV(r io.Reader) ([]row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &ValidationError{Field: "header", Reason: "empty document"}
	}
	if err != nil {
		return nil, &ValidationError{Field: "header", Reason: "unreadable", Err: err}
	}
	columns := map[string]int{}
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := columns["url"]; !ok {
		return nil, &ValidationError{Field: "header", Value: strings.Join(header, ","), Reason: "no url column"}
	}

	var rows []row
	for n := 1; ; n++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var pErr *csv.ParseError
		if errors.As(err, &pErr) {
			rows = append(rows, row{line: n, err: &ValidationError{Field: "row", Reason: "unreadable", Err: err}})
			continue
		}
		if err != nil {
			return rows, err
		}

		get := func(name string) string {
			i, ok := columns[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}
		rows = append(rows, csvRow(n, get))
	}

	return rows, nil
}

func csvRow(line int, get func(string) string) row {
	r := row{line: line, url: get("url")}
	meta := &Metadata{
		Title:      get("title"),
		Channel:    get("channel"),
		CategoryID: get("category_id"),
	}

	var err error
	if meta.Views, err = parseCount("views", get("views")); err != nil {
		r.err = err
		return r
	}
	if meta.Likes, err = parseCount("likes", get("likes")); err != nil {
		r.err = err
		return r
	}
	duration, err := parseCount("duration", get("duration"))
	if err != nil {
		r.err = err
		return r
	}
	meta.DurationSeconds = int(duration)
	if published := get("published_at"); published != "" {
		if meta.PublishedAt, err = time.Parse(time.RFC3339, published); err != nil {
			r.err = &ValidationError{Field: "published_at", Value: published, Reason: "not an RFC 3339 time"}
			return r
		}
	}
	r.meta = meta

	return r
}

func parseCount(field, s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, &ValidationError{Field: field, Value: s, Reason: "not a whole number"}
	}
	return n, nil
}

// flexInt takes both 123 and "123", since hand written json often quotes
// numbers.
type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return &ValidationError{Field: "number", Value: s, Reason: "not a whole number"}
	}
	*f = flexInt(n)
	return nil
}

type jsonRow struct {
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	Channel     string     `json:"channel"`
	CategoryID  string     `json:"category_id"`
	Views       flexInt    `json:"views"`
	Likes       flexInt    `json:"likes"`
	Duration    flexInt    `json:"duration"`
	PublishedAt *time.Time `json:"published_at"`
}

func decodeJSON(r io.Reader) ([]row, error) {
	var raw []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, &ValidationError{Field: "document", Reason: "expected a json array of objects", Err: err}
	}

	rows := make([]row, 0, len(raw))
	for n, item := range raw {
		var jr jsonRow
		if err := json.Unmarshal(item, &jr); err != nil {
			rows = append(rows, row{line: n + 1, err: &ValidationError{Field: "row", Reason: "unreadable", Err: err}})
			continue
		}
		meta := &Metadata{
			Title:           jr.Title,
			Channel:         jr.Channel,
			CategoryID:      jr.CategoryID,
			Views:           int64(jr.Views),
			Likes:           int64(jr.Likes),
			DurationSeconds: int(jr.Duration),
		}
		if jr.PublishedAt != nil {
			meta.PublishedAt = *jr.PublishedAt
		}
		rows = append(rows, row{line: n + 1, url: strings.TrimSpace(jr.URL), meta: meta})
	}

	return rows, nil
}

func decodeURLs(r io.Reader) ([]row, error) {
	var rows []row
	scanner := bufio.NewScanner(r)
	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rows = append(rows, row{line: n, url: line})
	}
	if err := scanner.Err(); err != nil {
		return rows, err
	}

	return rows, nil
}
