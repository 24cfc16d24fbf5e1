package index

import "tgsearch-go/internal/model"

// OrphanChainKey is the reserved root for comments with no reply reference:
// plain messages in the discussion group that never reply to anything.
const OrphanChainKey int64 = -1

// Chain is one reconstructed reply thread: a root message id plus every
// comment that transitively replies to it, keyed by comment message id.
type Chain struct {
	RootID   int64
	comments map[int64]*model.Item
}

// Comments returns the chain's comments in no particular order.
func (c *Chain) Comments() []*model.Item {
	out := make([]*model.Item, 0, len(c.comments))
	for _, cm := range c.comments {
		out = append(out, cm)
	}
	return out
}

// Contains reports whether the chain holds a comment with the given message id.
func (c *Chain) Contains(msgID int64) bool {
	_, ok := c.comments[msgID]
	return ok
}

// ChainSet collects reply chains during one ingestion pass and answers
// "which chain contains comment id X" through an inverted index instead of
// a scan over all chains.
type ChainSet struct {
	chains map[int64]*Chain // root id -> chain
	index  map[int64]*Chain // comment message id -> chain
}

func NewChainSet() *ChainSet {
	return &ChainSet{
		chains: make(map[int64]*Chain),
		index:  make(map[int64]*Chain),
	}
}

// Add inserts a comment into the chain rooted at rootID, creating the chain
// on first use. Re-inserting a message id already present in the chain is a
// no-op, which makes reparsing an album's metadata files idempotent.
func (s *ChainSet) Add(rootID int64, comment *model.Item) {
	chain, ok := s.chains[rootID]
	if !ok {
		chain = &Chain{RootID: rootID, comments: make(map[int64]*model.Item)}
		s.chains[rootID] = chain
	}

	if chain.Contains(comment.MessageID) {
		return
	}
	chain.comments[comment.MessageID] = comment

	if _, taken := s.index[comment.MessageID]; !taken {
		s.index[comment.MessageID] = chain
	}
}

// FindByCommentID returns the chain containing the given comment message id,
// or nil when no chain holds it.
func (s *ChainSet) FindByCommentID(msgID int64) *Chain {
	return s.index[msgID]
}

// Len returns the number of chains built so far.
func (s *ChainSet) Len() int { return len(s.chains) }
