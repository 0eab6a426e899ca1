package kobo

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultKFURL is the public KoboToolbox form-builder API host
	DefaultKFURL = "https://kf.kobotoolbox.org"

	// DefaultKCURL is the public KoboToolbox legacy data host that serves original media
	DefaultKCURL = "https://kc.kobotoolbox.org"

	// DataEndpoint is the endpoint pattern for an asset's submissions
	DataEndpoint = "/api/v2/assets/%s/data"

	// MediaEndpoint serves the original upload of an attachment
	MediaEndpoint = "/media/original"

	// AssetsEndpoint lists the assets visible to the token's account
	AssetsEndpoint = "/api/v2/assets/"
)

// DataURL constructs the data listing URL for an asset, without parameters
func DataURL(kfURL, assetUID string) string {
	return strings.TrimRight(kfURL, "/") + fmt.Sprintf(DataEndpoint, url.PathEscape(assetUID))
}

// AssetsURL returns a one-item asset listing, used to check a token
func AssetsURL(kfURL string) string {
	return strings.TrimRight(kfURL, "/") + AssetsEndpoint + "?format=json&limit=1"
}

// DataParams builds the listing query: format=json, limit and the optional
// Mongo-style query filter.
func DataParams(limit int, query string) url.Values {
	params := url.Values{}
	params.Set("format", "json")
	params.Set("limit", strconv.Itoa(limit))
	if query != "" {
		params.Set("query", query)
	}
	return params
}

// FirstPageURL constructs the URL of the first data page for an asset
func FirstPageURL(kfURL, assetUID string, limit int, query string) string {
	return DataURL(kfURL, assetUID) + "?" + DataParams(limit, query).Encode()
}

// WithParams adds every key of params that rawURL does not already carry.
// Next links already hold the cursor and usually the original filters, so
// existing values are left untouched.
func WithParams(rawURL string, params url.Values) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid page URL %q: %w", rawURL, err)
	}

	q := u.Query()
	changed := false
	for key, values := range params {
		if _, ok := q[key]; ok {
			continue
		}
		q[key] = values
		changed = true
	}
	if !changed {
		return rawURL, nil
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// MediaURL rewrites an attachment filename into a download URL on the
// legacy media host.
func MediaURL(kcURL, filename string) string {
	return strings.TrimRight(kcURL, "/") + MediaEndpoint + "?media_file=" + url.QueryEscape(filename)
}

// BaseName returns the last "/"-separated segment of an attachment filename
func BaseName(filename string) string {
	if i := strings.LastIndex(filename, "/"); i >= 0 {
		return filename[i+1:]
	}
	return filename
}
