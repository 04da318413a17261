package afs

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	quotaPathPrefix = "/storage/afs/data/v1/volume/"
	quotaPathSuffix = "/dir_quotas"

	// errorBodyLimit bounds how much of an error response is kept.
	errorBodyLimit = 200

	defaultRetryAfter = 60 * time.Second
)

// DirQuota is one directory quota entry from the dir_quotas endpoint.
// Quota values of zero mean unlimited.
type DirQuota struct {
	VolumeID              string `json:"volume_id"`
	Zone                  string `json:"zone"`
	DirPath               string `json:"dir_path"`
	FileQuantityQuota     int64  `json:"file_quantity_quota"`
	FileQuantityUsedQuota int64  `json:"file_quantity_used_quota"`
	CapacityQuota         int64  `json:"capacity_quota"`
	CapacityUsedQuota     int64  `json:"capacity_used_quota"`
	State                 int    `json:"state"`
}

// Client talks to the AFS dir-quota API. It performs no retries of its own;
// callers run requests under an executor.
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a Client for the given endpoint and credentials. The HTTP
// client is constructed once and reused; every request is signed by the
// transport.
func New(accessKey, secretKey, baseURL string, timeout time.Duration) *Client {
	rt := &signingRoundTripper{
		base:      http.DefaultTransport,
		accessKey: accessKey,
		secretKey: secretKey,
		now:       time.Now,
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Transport: rt, Timeout: timeout},
	}
}

// DirQuotas fetches the directory quota list for one volume in one zone.
// Items are returned with Zone filled in; the API omits it.
func (c *Client) DirQuotas(ctx context.Context, volumeID, zone string) ([]DirQuota, error) {
	u := c.baseURL + quotaPathPrefix + url.PathEscape(volumeID) + quotaPathSuffix

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &DataError{Msg: "build request", Err: err}
	}
	q := req.URL.Query()
	q.Set("volume_id", volumeID)
	q.Set("zone", zone)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	slog.Debug("afs: requesting dir quotas", "volume_id", volumeID, "zone", zone)

	resp, err := c.http.Do(req)
	if err != nil {
		var ue *url.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ue) && ue.Timeout()) {
			return nil, &TimeoutError{Op: "dir_quotas request"}
		}
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if err := responseError(resp, volumeID, zone); err != nil {
		return nil, err
	}

	var payload struct {
		DirQuotaList *[]DirQuota `json:"dir_quota_list"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &DataError{Msg: "decode response", Err: err}
	}
	if payload.DirQuotaList == nil {
		return nil, &DataError{Msg: "response missing dir_quota_list"}
	}

	quotas := *payload.DirQuotaList
	for i := range quotas {
		quotas[i].Zone = zone
	}
	slog.Debug("afs: retrieved dir quotas", "volume_id", volumeID, "directories", len(quotas))
	return quotas, nil
}

// responseError maps a non-200 response to the error taxonomy. The body is
// consumed for its snippet, so callers must not read it again on error.
func responseError(resp *http.Response, volumeID, zone string) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return &AuthError{Status: resp.StatusCode, Msg: "invalid credentials or signature"}
	case http.StatusForbidden:
		return &AuthError{Status: resp.StatusCode, Msg: "access forbidden"}
	case http.StatusNotFound:
		return &APIError{
			Status: resp.StatusCode,
			Body:   fmt.Sprintf("volume %s not found in zone %s", volumeID, zone),
		}
	case http.StatusTooManyRequests:
		return &RateLimitError{After: retryAfterHeader(resp)}
	default:
		return &APIError{Status: resp.StatusCode, Body: bodySnippet(resp.Body)}
	}
}

// retryAfterHeader reads the Retry-After response header in seconds, falling
// back to the default when absent or unparseable.
func retryAfterHeader(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultRetryAfter
}

func bodySnippet(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, errorBodyLimit))
	if err != nil {
		return ""
	}
	// The byte limit can split a multi-byte rune; the partial rune must not
	// survive into error messages and label values.
	return strings.TrimSpace(strings.ToValidUTF8(string(b), ""))
}

// signingRoundTripper signs outgoing requests the way the AFS API expects:
// an X-Date header carrying the request time in GMT, and an Authorization
// header holding the base64 HMAC-SHA256 of "x-date: <date>" keyed by the
// secret key.
type signingRoundTripper struct {
	base      http.RoundTripper
	accessKey string
	secretKey string
	now       func() time.Time
}

func (t *signingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	date := t.now().UTC().Format(http.TimeFormat)

	mac := hmac.New(sha256.New, []byte(t.secretKey))
	mac.Write([]byte("x-date: " + date))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	req = req.Clone(req.Context())
	req.Header.Set("X-Date", date)
	req.Header.Set("Authorization", fmt.Sprintf(
		"hmac accesskey=%q,algorithm=%q,headers=%q,signature=%q",
		t.accessKey, "hmac-sha256", "x-date", sig))
	return t.base.RoundTrip(req)
}
