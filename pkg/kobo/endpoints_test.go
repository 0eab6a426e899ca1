package kobo

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstPageURL(t *testing.T) {
	tests := []struct {
		name  string
		kfURL string
		limit int
		query string
		want  string
	}{
		{
			name:  "no query",
			kfURL: "https://kf.kobotoolbox.org",
			limit: 100,
			want:  "https://kf.kobotoolbox.org/api/v2/assets/aXyZ/data?format=json&limit=100",
		},
		{
			name:  "trailing slash",
			kfURL: "https://kf.kobotoolbox.org/",
			limit: 5,
			want:  "https://kf.kobotoolbox.org/api/v2/assets/aXyZ/data?format=json&limit=5",
		},
		{
			name:  "with query",
			kfURL: "https://kf.kobotoolbox.org",
			limit: 10,
			query: `{"_id": 5}`,
			want:  "https://kf.kobotoolbox.org/api/v2/assets/aXyZ/data?format=json&limit=10&query=%7B%22_id%22%3A+5%7D",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FirstPageURL(tt.kfURL, "aXyZ", tt.limit, tt.query))
		})
	}
}

func TestWithParams(t *testing.T) {
	params := DataParams(100, "")

	got, err := WithParams("https://kf.example.org/api/v2/assets/a/data?format=json&limit=100&start=100", params)
	require.NoError(t, err)
	assert.Equal(t, "https://kf.example.org/api/v2/assets/a/data?format=json&limit=100&start=100", got,
		"links that already carry the parameters are used verbatim")

	got, err = WithParams("https://kf.example.org/api/v2/assets/a/data?start=100&limit=7", params)
	require.NoError(t, err)
	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "json", u.Query().Get("format"))
	assert.Equal(t, "7", u.Query().Get("limit"), "existing values win")
	assert.Equal(t, "100", u.Query().Get("start"))

	_, err = WithParams("://broken", params)
	assert.Error(t, err)
}

func TestMediaURL(t *testing.T) {
	assert.Equal(t,
		"https://kc.kobotoolbox.org/media/original?media_file=me%2Fattachments%2Fu-1%2Fcat+1.jpg",
		MediaURL("https://kc.kobotoolbox.org/", "me/attachments/u-1/cat 1.jpg"))
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "cat.jpg", BaseName("me/attachments/u-1/cat.jpg"))
	assert.Equal(t, "cat.jpg", BaseName("cat.jpg"))
	assert.Equal(t, "", BaseName("me/attachments/"))
}
