package index

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Metadata is the decoded form of one metadata*.json file.
// ID, Date, Message, GroupedID and the Media key are required; a file
// missing any of them is skipped as malformed.
type Metadata struct {
	ID        int64
	Date      time.Time
	Message   string
	GroupedID int64
	Media     *MediaDescriptor // nil when the "media" key is JSON null
	ReplyTo   *ReplyTo
	Replies   *Replies
}

// MediaDescriptor is the "media" object of a metadata file. Exactly one of
// the known payload kinds is set; kinds other than photo and document are
// recorded so the caller can ignore them without warning.
type MediaDescriptor struct {
	Photo    *FileRef `json:"photo"`
	Document *FileRef `json:"document"`

	Webpage       json.RawMessage `json:"webpage"`
	Poll          json.RawMessage `json:"poll"`
	ExtendedMedia json.RawMessage `json:"extended_media"`
}

// Ignored reports whether the descriptor names a kind the indexer skips
// without logging (web page preview, poll, extended media).
func (d *MediaDescriptor) Ignored() bool {
	return d.Webpage != nil || d.Poll != nil || d.ExtendedMedia != nil
}

// FileRef carries the numeric file id a payload descriptor points at.
type FileRef struct {
	ID int64 `json:"id"`
}

// ReplyTo is the reply-reference of a comment.
type ReplyTo struct {
	TopID *int64 `json:"reply_to_top_id"`
	MsgID *int64 `json:"reply_to_msg_id"`
}

// Replies is the reply summary of a post; MaxID points into the comment
// chain rooted under this post.
type Replies struct {
	MaxID *int64 `json:"max_id"`
}

type rawMetadata struct {
	ID        *int64          `json:"id"`
	Date      *metaTime       `json:"date"`
	Message   *string         `json:"message"`
	GroupedID *int64          `json:"grouped_id"`
	Media     json.RawMessage `json:"media"`
	ReplyTo   json.RawMessage `json:"reply_to"`
	Replies   *Replies        `json:"replies"`
}

// ParseMetadata decodes a metadata file. Any decode failure or missing
// required field is returned as an error; the caller logs and skips the file.
func ParseMetadata(data []byte) (*Metadata, error) {
	var raw rawMetadata
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}

	if raw.ID == nil {
		return nil, fmt.Errorf("metadata is missing required field %q", "id")
	}
	if raw.Date == nil {
		return nil, fmt.Errorf("metadata is missing required field %q", "date")
	}
	if raw.Message == nil {
		return nil, fmt.Errorf("metadata is missing required field %q", "message")
	}
	if raw.GroupedID == nil {
		return nil, fmt.Errorf("metadata is missing required field %q", "grouped_id")
	}
	if raw.Media == nil {
		return nil, fmt.Errorf("metadata is missing required field %q", "media")
	}

	m := &Metadata{
		ID:        *raw.ID,
		Date:      time.Time(*raw.Date).UTC(),
		Message:   *raw.Message,
		GroupedID: *raw.GroupedID,
		Replies:   raw.Replies,
	}

	if string(raw.Media) != "null" {
		var desc MediaDescriptor
		if err := json.Unmarshal(raw.Media, &desc); err != nil {
			return nil, fmt.Errorf("decoding media descriptor: %w", err)
		}
		m.Media = &desc
	}

	// reply_to must be an object to count as a reply reference; anything
	// else (null, a bare number) means an unthreaded message.
	if len(raw.ReplyTo) > 0 && raw.ReplyTo[0] == '{' {
		var rt ReplyTo
		if err := json.Unmarshal(raw.ReplyTo, &rt); err != nil {
			return nil, fmt.Errorf("decoding reply_to: %w", err)
		}
		m.ReplyTo = &rt
	}

	return m, nil
}

// metaTime accepts both RFC 3339 strings and integer unix timestamps, the
// two date encodings seen across backup generations.
type metaTime time.Time

func (t *metaTime) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty date value")
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("parsing date %q: %w", s, err)
		}
		*t = metaTime(parsed)
		return nil
	}

	secs, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("parsing date %q: %w", string(data), err)
	}
	*t = metaTime(time.Unix(secs, 0).UTC())
	return nil
}
