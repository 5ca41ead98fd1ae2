package capture

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/abdul-hamid-achik/uploadprobe/packages/http"
	"github.com/tidwall/gjson"
)

// ErrInvalidJSON is returned when a response body is not valid JSON
var ErrInvalidJSON = errors.New("response body is not valid JSON")

// MissingFieldError reports a JSON body without an expected key
type MissingFieldError struct {
	Field      string
	StatusCode int
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("response (status %d) has no %q field", e.StatusCode, e.Field)
}

// ParseJSON decodes the body for display
func ParseJSON(resp *http.Response) (any, error) {
	if !gjson.ValidBytes(resp.Body) {
		return nil, invalidJSON(resp)
	}

	v, err := resp.BodyJSON()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return v, nil
}

// Field returns the raw JSON text stored at path, untouched, so it can be
// forwarded byte for byte. Path uses gjson syntax. When a key is repeated
// the last occurrence wins, matching what ParseJSON shows.
func Field(resp *http.Response, path string) (json.RawMessage, error) {
	if !gjson.ValidBytes(resp.Body) {
		return nil, invalidJSON(resp)
	}

	result := lookup(resp.Body, path)
	if !result.Exists() {
		return nil, &MissingFieldError{Field: path, StatusCode: resp.StatusCode}
	}

	return json.RawMessage(result.Raw), nil
}

// lookup walks a dotted path one key at a time. gjson stops at the first
// duplicate key while encoding/json keeps the last, so object keys are
// scanned in full. Wildcards, queries and modifiers go straight to gjson.
func lookup(body []byte, path string) gjson.Result {
	if strings.ContainsAny(path, `*?#|@\`) {
		return gjson.GetBytes(body, path)
	}

	cur := gjson.ParseBytes(body)
	for _, key := range strings.Split(path, ".") {
		switch {
		case cur.IsObject():
			var found gjson.Result
			cur.ForEach(func(k, v gjson.Result) bool {
				if k.String() == key {
					found = v
				}
				return true
			})
			cur = found
		case cur.IsArray():
			cur = cur.Get(key)
		default:
			return gjson.Result{}
		}
		if !cur.Exists() {
			return cur
		}
	}
	return cur
}

// invalidJSON names the content type when the server did not claim JSON
func invalidJSON(resp *http.Response) error {
	if ct := resp.ContentType(); ct != "" && !resp.IsJSON() {
		return fmt.Errorf("%w (content type %s): %s", ErrInvalidJSON, ct, snippet(resp.Body))
	}
	return fmt.Errorf("%w: %s", ErrInvalidJSON, snippet(resp.Body))
}

func snippet(body []byte) string {
	const limit = 80
	if len(body) == 0 {
		return "(empty body)"
	}
	if len(body) <= limit {
		return string(body)
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return string(body[:cut]) + "..."
}
