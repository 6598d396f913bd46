package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probelabs/probe/core"
)

func TestCollapseUserMessages(t *testing.T) {
	in := []core.Content{
		core.NewUserContent("a"),
		core.NewUserContent("b"),
		core.NewAssistantContent("c"),
		core.NewUserContent("d"),
	}
	out := CollapseUserMessages(in)
	require.Len(t, out, 3)
	assert.Equal(t, "ab", out[0].Text())
	assert.Equal(t, "c", out[1].Text())
	assert.Equal(t, "d", out[2].Text())

	// input untouched
	assert.Equal(t, "a", in[0].Text())
}

func TestSimpleInputMessages_FoldsSystemIntoFirstUser(t *testing.T) {
	in := []core.Content{
		core.NewSystemContent("be terse"),
		core.NewUserContent("hello"),
		core.NewAssistantContent("hi"),
	}
	out := SimpleInputMessages(in)
	require.Len(t, out, 2)
	assert.Equal(t, "user", out[0].Role)
	assert.Equal(t, "be terse\n\nhello", out[0].Text())
	assert.Equal(t, "assistant", out[1].Role)
}

func TestSimpleInputMessages_NoUserMessage(t *testing.T) {
	in := []core.Content{
		core.NewSystemContent("be terse"),
		core.NewAssistantContent("hi"),
	}
	out := SimpleInputMessages(in)
	require.Len(t, out, 2)
	assert.Equal(t, "user", out[0].Role)
	assert.Equal(t, "be terse", out[0].Text())
}

func TestGenerateConfig_Merge(t *testing.T) {
	temp := 0.2
	base := GenerateConfig{MaxRetries: 5, Cache: true}
	merged := base.Merge(&GenerateConfig{Temperature: &temp, MaxRetries: 2})
	assert.Equal(t, 2, merged.MaxRetries)
	assert.Equal(t, &temp, merged.Temperature)
	assert.True(t, merged.Cache)

	same := base.Merge(nil)
	assert.Equal(t, base, same)
}
