package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
)

// maxBodyBytes bounds how much of an upstream response is read.
const maxBodyBytes = 8 << 20

// ErrScriptNotFound is returned when a scraped page lacks the expected element.
var ErrScriptNotFound = errors.New("script element not found")

var (
	scriptElement = regexp.MustCompile(`(?is)<script([^>]*)>(.*?)</script>`)
	scriptID      = regexp.MustCompile(`(?i)\bid=["']([^"']*)["']`)
)

func (s *Source) get(ctx context.Context, url, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", accept)
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// ExtractScriptJSON returns the contents of the <script> element with the
// given id, e.g. a framework's "__NEXT_DATA__" bootstrap blob.
func ExtractScriptJSON(html []byte, id string) ([]byte, error) {
	for _, m := range scriptElement.FindAllSubmatch(html, -1) {
		attr := scriptID.FindSubmatch(m[1])
		if attr != nil && string(attr[1]) == id {
			return m[2], nil
		}
	}
	return nil, fmt.Errorf("%w: #%s", ErrScriptNotFound, id)
}

// unwrapPageProps lifts {"props":{"pageProps":{...}}} bootstrap documents to
// their page props so the usual envelope fields can be found.
func unwrapPageProps(body []byte) []byte {
	var doc struct {
		Props struct {
			PageProps json.RawMessage `json:"pageProps"`
		} `json:"props"`
	}
	if err := json.Unmarshal(body, &doc); err != nil || len(doc.Props.PageProps) == 0 {
		return body
	}
	return doc.Props.PageProps
}
