package service

import (
	"testing"

	"study-with-speech/internal/config"
	"study-with-speech/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromptBuilderDefaults(t *testing.T) {
	b := NewPromptBuilder(config.PromptConfig{})

	assert.Equal(t, LevelIntermediate, b.ResolveLevel(""))
	assert.Equal(t, LevelIntermediate, b.ResolveLevel("expert"))
	assert.Equal(t, LevelUniversity, b.ResolveLevel(" Universitario "))

	msgs := b.Build("O que é DNA?", "avancado", false)
	require.Len(t, msgs, 2)
	assert.Equal(t, llm.RoleSystem, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, defaultPersona)
	assert.Contains(t, msgs[0].Content, defaultLevelStyles[LevelAdvanced])
	assert.NotContains(t, msgs[0].Content, defaultNarration)
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "O que é DNA?"}, msgs[1])
}

func TestPromptBuilderConfigOverrides(t *testing.T) {
	b := NewPromptBuilder(config.PromptConfig{
		Persona:      "You are a patient tutor.",
		DefaultLevel: "avancado",
		Narration:    "Keep it speakable.",
		Levels:       map[string]string{"Kids": "Explain like I am five."},
	})

	assert.Equal(t, LevelAdvanced, b.ResolveLevel("unknown"))
	assert.Equal(t, "kids", b.ResolveLevel("KIDS"))

	msgs := b.Build("why is the sky blue", "kids", true)
	assert.Contains(t, msgs[0].Content, "You are a patient tutor.")
	assert.Contains(t, msgs[0].Content, "Explain like I am five.")
	assert.Contains(t, msgs[0].Content, "Keep it speakable.")
}
