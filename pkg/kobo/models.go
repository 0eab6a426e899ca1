package kobo

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Attachment is one media file attached to a submission. Filename is the
// server-side path, e.g. "user/attachments/<uuid>/photo_1.jpg".
type Attachment struct {
	ID            int64  `json:"id,omitempty"`
	Filename      string `json:"filename"`
	DownloadURL   string `json:"download_url,omitempty"`
	Mimetype      string `json:"mimetype,omitempty"`
	QuestionXPath string `json:"question_xpath,omitempty"`
}

// Submission is one survey response from the data endpoint
type Submission struct {
	UUID        string
	Attachments []Attachment
	// Fields holds the whole submission object, answers included.
	// Numbers are kept as json.Number.
	Fields map[string]interface{}
}

// UnmarshalJSON decodes the submission keeping every raw field around so
// answers can be looked up by question name.
func (s *Submission) UnmarshalJSON(data []byte) error {
	var known struct {
		UUID        string       `json:"_uuid"`
		Attachments []Attachment `json:"_attachments"`
	}
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var fields map[string]interface{}
	if err := dec.Decode(&fields); err != nil {
		return err
	}

	s.UUID = known.UUID
	s.Attachments = known.Attachments
	s.Fields = fields
	return nil
}

// Field returns the answer stored under name as a string. The second
// result is false when the field is missing or null.
func (s *Submission) Field(name string) (string, bool) {
	v, ok := s.Fields[name]
	if !ok || v == nil {
		return "", false
	}

	switch val := v.(type) {
	case string:
		return val, true
	case json.Number:
		return val.String(), true
	case bool:
		if val {
			return "True", true
		}
		return "False", true
	default:
		return fmt.Sprint(val), true
	}
}

// Page is one page of the paginated data listing
type Page struct {
	Count    int          `json:"count"`
	Next     *string      `json:"next"`
	Previous *string      `json:"previous"`
	Results  []Submission `json:"results"`
}

// HasNext reports whether the server advertised another page
func (p *Page) HasNext() bool {
	return p.Next != nil && *p.Next != ""
}

// NextURL returns the next page link, or "" on the last page
func (p *Page) NextURL() string {
	if !p.HasNext() {
		return ""
	}
	return *p.Next
}
