package roster

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// locationLine accepts both the chat-completions batch result shape and the
// flat shape written by the extract command.
type locationLine struct {
	CustomID string  `json:"custom_id"`
	Location *string `json:"location,omitempty"`
	Response *struct {
		Body struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
		} `json:"body"`
	} `json:"response,omitempty"`
}

func (l locationLine) text() (string, bool) {
	if l.Location != nil {
		return *l.Location, true
	}
	if l.Response != nil && len(l.Response.Body.Choices) > 0 {
		return l.Response.Body.Choices[0].Message.Content, true
	}
	return "", false
}

// LocationRecord is one line of the flat extracted-location format.
type LocationRecord struct {
	CustomID string `json:"custom_id"`
	Location string `json:"location"`
}

// CustomID formats a row index the way extraction requests are keyed.
func CustomID(i int) string {
	return fmt.Sprintf("%04d", i)
}

// ReadLocations loads extracted location text keyed by row index.
func ReadLocations(ctx context.Context, path string) (map[int]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "roster: open locations %s", path)
	}
	defer f.Close() //nolint:errcheck
	return readLocations(ctx, f)
}

func readLocations(ctx context.Context, r io.Reader) (map[int]string, error) {
	out := make(map[int]string)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "roster: locations context cancelled")
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var rec locationLine
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, eris.Wrapf(err, "roster: parse locations line %d", lineNo)
		}
		idx, err := strconv.Atoi(strings.TrimSpace(rec.CustomID))
		if err != nil {
			return nil, eris.Wrapf(err, "roster: custom_id %q on line %d", rec.CustomID, lineNo)
		}
		text, ok := rec.text()
		if !ok {
			zap.L().Debug("roster: location line without content", zap.Int("line", lineNo))
			continue
		}
		out[idx] = text
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrap(err, "roster: read locations")
	}
	return out, nil
}

// WriteLocations writes records in the flat JSONL format.
func WriteLocations(w io.Writer, records []LocationRecord) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return eris.Wrapf(err, "roster: write location %s", rec.CustomID)
		}
	}
	return nil
}
