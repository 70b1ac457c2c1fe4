package service

import (
	"strings"

	"study-with-speech/internal/config"
	"study-with-speech/pkg/llm"
)

// 学习等级
const (
	LevelBeginner     = "iniciante"
	LevelIntermediate = "intermediario"
	LevelAdvanced     = "avancado"
	LevelUniversity   = "universitario"
)

const defaultPersona = "Você é o EduBot AI, um assistente educacional que responde de forma clara e didática. " +
	"Sempre responda em português brasileiro, use exemplos práticos e analogias quando possível, " +
	"seja encorajador e, se a pergunta for vaga, peça esclarecimentos específicos."

const defaultNarration = "A resposta será narrada por voz: use pontuação adequada para pausas naturais, " +
	"frases curtas e diretas, conectivos para transições suaves, e evite abreviações, números e símbolos " +
	"que não são lidos naturalmente."

var defaultLevelStyles = map[string]string{
	LevelBeginner:     "Responda de forma muito simples, usando linguagem básica e exemplos do dia a dia. Evite termos técnicos. Use frases curtas e diretas.",
	LevelIntermediate: "Responda de forma clara, usando exemplos práticos e alguns termos técnicos explicados. Mantenha um equilíbrio entre simplicidade e profundidade.",
	LevelAdvanced:     "Responda com detalhes técnicos, teorias mais profundas e conceitos complexos. Mantenha a clareza mesmo com termos especializados.",
	LevelUniversity:   "Responda no nível acadêmico superior, com rigor científico e referências teóricas. Mantenha a precisão técnica sem perder a didática.",
}

// PromptBuilder 根据学习等级与语音选项组装发送给模型的消息。
type PromptBuilder struct {
	persona      string
	narration    string
	defaultLevel string
	levels       map[string]string
}

// NewPromptBuilder 使用配置覆盖内置的提示词，未配置的部分保持默认。
func NewPromptBuilder(cfg config.PromptConfig) *PromptBuilder {
	b := &PromptBuilder{
		persona:      defaultPersona,
		narration:    defaultNarration,
		defaultLevel: LevelIntermediate,
		levels:       make(map[string]string, len(defaultLevelStyles)),
	}
	for k, v := range defaultLevelStyles {
		b.levels[k] = v
	}
	if strings.TrimSpace(cfg.Persona) != "" {
		b.persona = strings.TrimSpace(cfg.Persona)
	}
	if strings.TrimSpace(cfg.Narration) != "" {
		b.narration = strings.TrimSpace(cfg.Narration)
	}
	// viper 会把 map 的 key 转为小写
	for k, v := range cfg.Levels {
		if v = strings.TrimSpace(v); v != "" {
			b.levels[strings.ToLower(k)] = v
		}
	}
	if _, ok := b.levels[strings.ToLower(cfg.DefaultLevel)]; ok {
		b.defaultLevel = strings.ToLower(cfg.DefaultLevel)
	}
	return b
}

// ResolveLevel 返回可用的等级，未知或为空时回退到默认等级。
func (b *PromptBuilder) ResolveLevel(level string) string {
	level = strings.ToLower(strings.TrimSpace(level))
	if _, ok := b.levels[level]; ok {
		return level
	}
	return b.defaultLevel
}

// Build 生成 system + user 两轮消息。
func (b *PromptBuilder) Build(content, level string, speech bool) []llm.Message {
	level = b.ResolveLevel(level)

	var sb strings.Builder
	sb.WriteString(b.persona)
	sb.WriteString("\n\nNível atual do usuário: ")
	sb.WriteString(level)
	sb.WriteString("\n")
	sb.WriteString(b.levels[level])
	if speech {
		sb.WriteString("\n\n")
		sb.WriteString(b.narration)
	}

	return []llm.Message{
		{Role: llm.RoleSystem, Content: sb.String()},
		{Role: llm.RoleUser, Content: content},
	}
}
