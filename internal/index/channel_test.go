package index

import (
	"testing"

	"tgsearch-go/internal/logging"
	"tgsearch-go/internal/model"
)

func TestNewChannelInfo(t *testing.T) {
	t.Parallel()

	t.Run("parses ids from directory names", func(t *testing.T) {
		t.Parallel()
		info, err := NewChannelInfo(logging.NewNopLogger(), "/backups/mychannel_1391447956", "/backups/mychannel_chat_1556744387")
		if err != nil {
			t.Fatalf("NewChannelInfo() error = %v", err)
		}
		if info.ChannelID != 1391447956 {
			t.Errorf("ChannelID = %d, want 1391447956", info.ChannelID)
		}
		if info.DiscussionGroupID != 1556744387 {
			t.Errorf("DiscussionGroupID = %d, want 1556744387", info.DiscussionGroupID)
		}
	})

	t.Run("channel id is required", func(t *testing.T) {
		t.Parallel()
		if _, err := NewChannelInfo(logging.NewNopLogger(), "/backups/nodigits", ""); err == nil {
			t.Error("NewChannelInfo() error = nil, want error")
		}
	})

	t.Run("bad discussion dir only warns", func(t *testing.T) {
		t.Parallel()
		info, err := NewChannelInfo(logging.NewNopLogger(), "/backups/mychannel_77", "/backups/nodigits")
		if err != nil {
			t.Fatalf("NewChannelInfo() error = %v", err)
		}
		if info.DiscussionGroupID != 0 {
			t.Errorf("DiscussionGroupID = %d, want 0", info.DiscussionGroupID)
		}
	})
}

func TestChannelInfo_Link(t *testing.T) {
	t.Parallel()

	info := &ChannelInfo{ChannelID: 100, DiscussionGroupID: 200}

	post := &model.Item{Kind: model.KindPost, MessageID: 42}
	if got, want := info.Link(post), "https://t.me/c/100/42"; got != want {
		t.Errorf("Link(post) = %q, want %q", got, want)
	}

	cm := &model.Item{Kind: model.KindComment, MessageID: 7}
	if got, want := info.Link(cm), "https://t.me/c/200/7"; got != want {
		t.Errorf("Link(comment) = %q, want %q", got, want)
	}
}
