package feeds

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Keksclan/minutodash/feed"
	"github.com/Keksclan/minutodash/fetch"
)

// decodeList accepts either a bare JSON array of T (the backend proxy shape)
// or an object carrying the array under field (the upstream shape). In the
// object form abuse.ch's "no_result(s)" status is an empty batch and any other
// non-"ok" status (e.g. "unknown_auth_key") is a decode failure.
func decodeList[T any](field string) func(json.RawMessage) (feed.Batch[T], error) {
	return func(raw json.RawMessage) (feed.Batch[T], error) {
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			recs, err := fetch.Decode[[]T](trimmed)
			return feed.Batch[T]{Records: recs}, err
		}

		var env map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return feed.Batch[T]{}, &fetch.Error{Reason: fetch.ReasonDecode, Err: err}
		}
		if qs, ok := env["query_status"]; ok {
			var status string
			_ = json.Unmarshal(qs, &status)
			switch status {
			case "ok":
			case "no_result", "no_results":
				return feed.Batch[T]{Records: []T{}}, nil
			default:
				return feed.Batch[T]{}, &fetch.Error{
					Reason: fetch.ReasonDecode,
					Err:    fmt.Errorf("query_status %q", status),
				}
			}
		}
		list, ok := env[field]
		if !ok {
			return feed.Batch[T]{}, &fetch.Error{Reason: fetch.ReasonDecode, Err: fmt.Errorf("missing %q", field)}
		}
		recs, err := fetch.Decode[[]T](list)
		return feed.Batch[T]{Records: recs}, err
	}
}

// authHeader returns the abuse.ch Auth-Key header, or nil when key is empty.
func authHeader(key string) http.Header {
	if key == "" {
		return nil
	}
	h := make(http.Header)
	h.Set("Auth-Key", key)
	return h
}
