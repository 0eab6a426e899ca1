package kobo

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmissionUnmarshal(t *testing.T) {
	raw := `{
		"_uuid": "u-1",
		"_id": 42,
		"photo": "cat.jpg",
		"audio": null,
		"consent": true,
		"score": 3.5,
		"_attachments": [
			{"id": 7, "filename": "me/attachments/u-1/cat.jpg", "mimetype": "image/jpeg",
			 "download_url": "https://kf.example.org/a/7", "question_xpath": "photo"}
		]
	}`

	var s Submission
	require.NoError(t, json.Unmarshal([]byte(raw), &s))

	assert.Equal(t, "u-1", s.UUID)
	require.Len(t, s.Attachments, 1)
	assert.Equal(t, Attachment{
		ID:            7,
		Filename:      "me/attachments/u-1/cat.jpg",
		DownloadURL:   "https://kf.example.org/a/7",
		Mimetype:      "image/jpeg",
		QuestionXPath: "photo",
	}, s.Attachments[0])

	v, ok := s.Field("photo")
	assert.True(t, ok)
	assert.Equal(t, "cat.jpg", v)

	_, ok = s.Field("audio")
	assert.False(t, ok, "null answers are absent")

	_, ok = s.Field("video")
	assert.False(t, ok)

	v, _ = s.Field("_id")
	assert.Equal(t, "42", v)
	v, _ = s.Field("score")
	assert.Equal(t, "3.5", v)
	v, _ = s.Field("consent")
	assert.Equal(t, "True", v)
}

func TestSubmissionWithoutAttachments(t *testing.T) {
	var s Submission
	require.NoError(t, json.Unmarshal([]byte(`{"_uuid": "u-2"}`), &s))
	assert.Empty(t, s.Attachments)
}

func TestPageNext(t *testing.T) {
	var p Page
	require.NoError(t, json.Unmarshal([]byte(`{"count": 0, "next": null, "results": []}`), &p))
	assert.False(t, p.HasNext())
	assert.Equal(t, "", p.NextURL())

	require.NoError(t, json.Unmarshal([]byte(`{"count": 3, "next": "https://x/next", "results": []}`), &p))
	assert.True(t, p.HasNext())
	assert.Equal(t, "https://x/next", p.NextURL())
}
