package index

import (
	"tgsearch-go/internal/logging"
	"tgsearch-go/internal/model"
)

// ItemParser handles the kind-specific part of a metadata file after the
// core fields have been merged into the item.
type ItemParser interface {
	// ParseItem inspects the metadata in the context of the given item.
	ParseItem(item *model.Item, meta *Metadata)

	// DrainAttachments returns and clears the post-to-chain attachments
	// produced since the last call. Parsers that never attach return nil.
	DrainAttachments() []*Attachment
}

// CommentParser classifies each comment's reply reference into a chain edge.
type CommentParser struct {
	logger logging.Logger
	chains *ChainSet
}

func NewCommentParser(logger logging.Logger, chains *ChainSet) *CommentParser {
	return &CommentParser{logger: logger, chains: chains}
}

func (p *CommentParser) ParseItem(item *model.Item, meta *Metadata) {
	if item.Kind != model.KindComment {
		return
	}

	if meta.ReplyTo == nil {
		// Just a message in the discussion group.
		p.chains.Add(OrphanChainKey, item)
		return
	}

	if meta.ReplyTo.TopID == nil || meta.ReplyTo.MsgID == nil {
		p.logger.Warn("comment has reply_to without reply_to_top_id or reply_to_msg_id", "message_id", item.MessageID)
		return
	}

	topID, msgID := *meta.ReplyTo.TopID, *meta.ReplyTo.MsgID
	switch {
	case topID == 0 && msgID != 0:
		// Direct comment under a post.
		p.chains.Add(msgID, item)
	case topID != 0 && msgID != 0:
		// Reply to another comment.
		p.chains.Add(topID, item)
	default:
		p.logger.Warn("comment has reply_to, but is neither a top comment nor a reply to a comment", "message_id", item.MessageID)
	}
}

func (p *CommentParser) DrainAttachments() []*Attachment { return nil }

// PostParser attaches previously built comment chains to posts via the
// replies.max_id field. An attachment happens at most once per post: album
// metadata files after the first one are skipped, as are posts that already
// have comments from an earlier run.
type PostParser struct {
	logger   logging.Logger
	chains   *ChainSet
	attached map[*model.Item]bool
	pending  []*Attachment
}

func NewPostParser(logger logging.Logger, chains *ChainSet) *PostParser {
	return &PostParser{
		logger:   logger,
		chains:   chains,
		attached: make(map[*model.Item]bool),
	}
}

func (p *PostParser) ParseItem(item *model.Item, meta *Metadata) {
	if item.Kind != model.KindPost {
		return
	}

	if item.CommentCount > 0 || p.attached[item] {
		return
	}

	if meta.Replies == nil {
		return
	}
	if meta.Replies.MaxID == nil {
		p.logger.Warn("post has replies without max_id", "message_id", item.MessageID)
		return
	}

	maxID := *meta.Replies.MaxID
	chain := p.chains.FindByCommentID(maxID)
	if chain == nil {
		p.logger.Warn("no comment chain contains the post's max_id", "message_id", item.MessageID, "max_id", maxID)
		return
	}

	p.attached[item] = true
	p.pending = append(p.pending, &Attachment{Post: item, Comments: chain.Comments()})
}

func (p *PostParser) DrainAttachments() []*Attachment {
	out := p.pending
	p.pending = nil
	return out
}
