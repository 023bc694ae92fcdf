package agent

import (
	"container/list"
	"sync"

	"github.com/fyrsmithlabs/steward/internal/llm"
)

// conversationStore keeps recent chat histories in memory. Bounded two
// ways: an LRU cap on conversations and a message cap per conversation,
// so a chatty deployment cannot grow without limit. Histories are scoped
// by user; a conversation id never returns another user's turns.
type conversationStore struct {
	mu       sync.Mutex
	max      int
	maxMsgs  int
	order    *list.List // front = most recent
	sessions map[string]*session
}

type session struct {
	key      string
	userID   string
	messages []llm.Message
	elem     *list.Element
}

func newConversationStore(maxConversations, maxMessages int) *conversationStore {
	return &conversationStore{
		max:      maxConversations,
		maxMsgs:  maxMessages,
		order:    list.New(),
		sessions: make(map[string]*session),
	}
}

// get returns a copy of the history, or nil if unknown or owned by a
// different user.
func (c *conversationStore) get(userID, convID string) []llm.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[convID]
	if !ok || s.userID != userID {
		return nil
	}
	c.order.MoveToFront(s.elem)
	out := make([]llm.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// put stores the history, trimming old turns past the message cap while
// keeping the leading system prompt, and evicting the least recently
// used conversation past the conversation cap.
func (c *conversationStore) put(userID, convID string, messages []llm.Message) {
	if c.maxMsgs > 0 && len(messages) > c.maxMsgs {
		trimmed := make([]llm.Message, 0, c.maxMsgs)
		if messages[0].Role == llm.RoleSystem {
			trimmed = append(trimmed, messages[0])
			messages = messages[len(messages)-(c.maxMsgs-1):]
		} else {
			messages = messages[len(messages)-c.maxMsgs:]
		}
		messages = append(trimmed, messages...)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.sessions[convID]; ok && s.userID == userID {
		s.messages = messages
		c.order.MoveToFront(s.elem)
		return
	}

	s := &session{key: convID, userID: userID, messages: messages}
	s.elem = c.order.PushFront(s)
	c.sessions[convID] = s

	for c.max > 0 && len(c.sessions) > c.max {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		old := c.order.Remove(oldest).(*session)
		delete(c.sessions, old.key)
	}
}

// len reports how many conversations are held.
func (c *conversationStore) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}
