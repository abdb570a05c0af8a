package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/piougy/CzechIdMng-sub011/internal/faults"
)

// REST talks to a target system exposing the generic object API:
//
//	GET    /objects?attribute=&operator=&value=   enumerate (filter optional)
//	GET    /objects/{uid}                         read one
//	POST   /objects                               create
//	PUT    /objects/{uid}                         update (body may carry new uid)
//	DELETE /objects/{uid}                         delete
//	POST   /objects/{uid}/authenticate            credential check
//	GET    /ping                                  liveness
//
// Requests are authenticated with an API key header. Every call carries the
// configured timeout so a hung remote cannot stall a run indefinitely.
type REST struct {
	baseURL string
	apiKey  string
	client  *http.Client
	caps    Capabilities
}

type restObject struct {
	UID        string              `json:"uid"`
	Attributes map[string][]string `json:"attributes"`
}

// NewREST creates a REST connector for the given base URL.
func NewREST(baseURL, apiKey string, timeout time.Duration, caps Capabilities) *REST {
	return &REST{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: timeout,
		},
		caps: caps,
	}
}

func (r *REST) Enumerate(ctx context.Context, filter *Filter, fn func(Record) error) error {
	path := "/objects"
	if filter != nil {
		q := url.Values{}
		q.Set("attribute", filter.Attribute)
		q.Set("operator", string(filter.Operator))
		q.Set("value", filter.Value)
		path += "?" + q.Encode()
	}

	var payload struct {
		Objects []restObject `json:"objects"`
	}
	if err := r.doRequest(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return err
	}
	for _, obj := range payload.Objects {
		rec := Record{UID: obj.UID, Attributes: obj.Attributes}
		// The remote may not implement server-side filtering.
		if !filter.Match(rec) {
			continue
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

func (r *REST) ReadObject(ctx context.Context, uid string) (*Record, error) {
	var obj restObject
	err := r.doRequest(ctx, http.MethodGet, "/objects/"+url.PathEscape(uid), nil, &obj)
	if err != nil {
		if faults.CodeOf(err) == "remote_status" && statusOf(err) == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &Record{UID: obj.UID, Attributes: obj.Attributes}, nil
}

func (r *REST) CreateObject(ctx context.Context, rec Record) error {
	body := restObject{UID: rec.UID, Attributes: rec.Attributes}
	return r.doRequest(ctx, http.MethodPost, "/objects", body, nil)
}

func (r *REST) UpdateObject(ctx context.Context, uid string, newUID string, attrs map[string][]string) error {
	body := struct {
		UID        string              `json:"uid,omitempty"`
		Attributes map[string][]string `json:"attributes"`
	}{UID: newUID, Attributes: attrs}
	return r.doRequest(ctx, http.MethodPut, "/objects/"+url.PathEscape(uid), body, nil)
}

func (r *REST) DeleteObject(ctx context.Context, uid string) error {
	return r.doRequest(ctx, http.MethodDelete, "/objects/"+url.PathEscape(uid), nil, nil)
}

func (r *REST) Authenticate(ctx context.Context, uid, secret string) error {
	body := map[string]string{"secret": secret}
	return r.doRequest(ctx, http.MethodPost, "/objects/"+url.PathEscape(uid)+"/authenticate", body, nil)
}

func (r *REST) Test(ctx context.Context) error {
	return r.doRequest(ctx, http.MethodGet, "/ping", nil, nil)
}

func (r *REST) Capabilities() Capabilities { return r.caps }

func (r *REST) doRequest(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Api-Key", r.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return faults.ConnectorWrap("remote_unreachable", map[string]any{"url": r.baseURL + path}, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return faults.Connector("credentials_rejected", map[string]any{"status": resp.StatusCode})
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return faults.Connector("remote_status", map[string]any{
			"status": resp.StatusCode,
			"body":   string(respBody),
		})
	}

	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return faults.ConnectorWrap("invalid_response", nil, err)
	}
	return nil
}

func statusOf(err error) int {
	var fe *faults.Error
	if !errors.As(err, &fe) {
		return 0
	}
	if s, ok := fe.Params["status"].(int); ok {
		return s
	}
	return 0
}
