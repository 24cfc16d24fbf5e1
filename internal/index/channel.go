package index

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"tgsearch-go/internal/logging"
	"tgsearch-go/internal/model"
)

// ChannelInfo carries the numeric identities needed to render permalinks.
// Backup directories are named "<name>_<id>"; the channel id is required,
// the discussion-group id is optional.
type ChannelInfo struct {
	ChannelID         int64
	DiscussionGroupID int64 // 0 when no discussion group is indexed
}

// NewChannelInfo derives the ids from the backup directory names.
func NewChannelInfo(logger logging.Logger, channelDir, discussionDir string) (*ChannelInfo, error) {
	channelID, err := dirID(channelDir)
	if err != nil {
		return nil, fmt.Errorf("channel directory: %w", err)
	}

	info := &ChannelInfo{ChannelID: channelID}

	if discussionDir != "" {
		discussionID, err := dirID(discussionDir)
		if err != nil {
			logger.Warn("failed to parse discussion group id from directory name", "dir", discussionDir, "error", err)
		} else {
			info.DiscussionGroupID = discussionID
		}
	}

	return info, nil
}

// Link renders the t.me permalink for an item. Comments link into the
// discussion group, posts into the channel.
func (c *ChannelInfo) Link(item *model.Item) string {
	id := c.ChannelID
	if item.Kind == model.KindComment {
		id = c.DiscussionGroupID
	}
	return fmt.Sprintf("https://t.me/c/%d/%d", id, item.MessageID)
}

func dirID(dir string) (int64, error) {
	name := filepath.Base(strings.TrimRight(dir, string(filepath.Separator)))
	underscore := strings.LastIndex(name, "_")
	if underscore == -1 {
		return 0, fmt.Errorf("%q is not a <name>_<id> directory name", name)
	}

	id, err := strconv.ParseInt(name[underscore+1:], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing id from %q: %w", name, err)
	}
	return id, nil
}
