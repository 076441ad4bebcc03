// Package export writes event lists in their secondary, JSON form.
package export

import (
	"encoding/json"
	"fmt"

	"syllabuscal/internal/model"
)

const (
	JSONFilename    = "syllabus-events.json"
	JSONContentType = "application/json"
)

// JSON serializes events verbatim, collapsed or expanded as given. A nil
// list is written as [].
func JSON(events []model.Event) ([]byte, error) {
	if events == nil {
		events = []model.Event{}
	}
	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export: json: %w", err)
	}
	return append(data, '\n'), nil
}

// Result serializes a full stage result, events plus warnings, the shape
// the CLI prints and the HTTP API returns.
func Result(res model.Result) ([]byte, error) {
	if res.Events == nil {
		res.Events = []model.Event{}
	}
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export: json: %w", err)
	}
	return append(data, '\n'), nil
}
