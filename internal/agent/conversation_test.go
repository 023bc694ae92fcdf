package agent

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/steward/internal/llm"
)

func TestConversationStoreScopesByUser(t *testing.T) {
	c := newConversationStore(10, 20)
	c.put("alice", "conv-1", []llm.Message{{Role: llm.RoleUser, Content: "hello"}})

	got := c.get("alice", "conv-1")
	require.Len(t, got, 1)

	assert.Nil(t, c.get("bob", "conv-1"), "another user's conversation id must not leak history")
	assert.Nil(t, c.get("alice", "conv-2"))
}

func TestConversationStoreReturnsCopy(t *testing.T) {
	c := newConversationStore(10, 20)
	c.put("alice", "conv-1", []llm.Message{{Role: llm.RoleUser, Content: "original"}})

	got := c.get("alice", "conv-1")
	got[0].Content = "mutated"

	again := c.get("alice", "conv-1")
	assert.Equal(t, "original", again[0].Content)
}

func TestConversationStoreTrimsKeepingSystemPrompt(t *testing.T) {
	c := newConversationStore(10, 4)

	msgs := []llm.Message{{Role: llm.RoleSystem, Content: "prompt"}}
	for i := 0; i < 10; i++ {
		msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: "turn " + strconv.Itoa(i)})
	}
	c.put("alice", "conv-1", msgs)

	got := c.get("alice", "conv-1")
	require.Len(t, got, 4)
	assert.Equal(t, llm.RoleSystem, got[0].Role, "system prompt survives trimming")
	assert.Equal(t, "turn 9", got[3].Content, "newest turns are kept")
}

func TestConversationStoreEvictsLRU(t *testing.T) {
	c := newConversationStore(2, 20)
	c.put("alice", "conv-1", []llm.Message{{Role: llm.RoleUser, Content: "one"}})
	c.put("alice", "conv-2", []llm.Message{{Role: llm.RoleUser, Content: "two"}})

	// Touch conv-1 so conv-2 becomes the eviction candidate.
	require.NotNil(t, c.get("alice", "conv-1"))

	c.put("alice", "conv-3", []llm.Message{{Role: llm.RoleUser, Content: "three"}})

	assert.Equal(t, 2, c.len())
	assert.NotNil(t, c.get("alice", "conv-1"))
	assert.Nil(t, c.get("alice", "conv-2"))
	assert.NotNil(t, c.get("alice", "conv-3"))
}
