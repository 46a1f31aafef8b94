// Package persona builds the system instruction for each assistant
// profile. Two personas times two languages gives four fixed base
// templates; retrieved knowledge and caller-supplied file text are
// appended as clearly delimited sections.
package persona

import (
	"fmt"
	"strings"

	"github.com/daosail/compass/internal/knowledge"
	"github.com/daosail/compass/internal/roles"
)

// DefaultLanguage is used when the requested (persona, language) pair
// has no template.
const DefaultLanguage = "ru"

type templateKey struct {
	persona  knowledge.Persona
	language string
}

var templates = map[templateKey]string{
	{knowledge.PersonaNavigator, "ru"}: "Ты — Навигатор, дружелюбный помощник парусной школы. " +
		"Ты помогаешь новичкам разобраться в основах яхтинга: устройство яхты, курсы относительно ветра, " +
		"навигация, погода и снаряжение. Объясняй простым языком, без снисходительности, " +
		"приводи примеры из практики. Если вопрос выходит за рамки твоих знаний или касается " +
		"безопасности жизни, честно скажи об этом и посоветуй обратиться к инструктору. Отвечай на русском языке.",

	{knowledge.PersonaNavigator, "en"}: "You are Navigator, a friendly sailing school assistant. " +
		"You help newcomers understand the basics of yachting: boat anatomy, points of sail, " +
		"navigation, weather and equipment. Explain in plain language without condescension and " +
		"use practical examples. If a question is beyond your knowledge or concerns life safety, " +
		"say so honestly and recommend talking to an instructor. Answer in English.",

	{knowledge.PersonaSkipper, "ru"}: "Ты — Шкипер, опытный наставник для действующих яхтсменов. " +
		"Твои темы: безопасность экипажа, управление командой, действия в аварийных ситуациях и гоночная практика. " +
		"Отвечай по существу, как офицер на брифинге: сначала главное, потом детали. " +
		"В вопросах безопасности будь консервативен и не давай советов, противоречащих хорошей морской практике. " +
		"Отвечай на русском языке.",

	{knowledge.PersonaSkipper, "en"}: "You are Skipper, an experienced mentor for active sailors. " +
		"Your topics are crew safety, crew management, emergency response and racing practice. " +
		"Answer to the point, like an officer at a briefing: the essentials first, details after. " +
		"On safety questions stay conservative and never advise against good seamanship. Answer in English.",
}

var contextHeaders = map[string]string{
	"ru": "Контекст из базы знаний",
	"en": "Context from knowledge base",
}

var filesHeaders = map[string]string{
	"ru": "Прикреплённые файлы:",
	"en": "Attached files:",
}

const blockSeparator = "\n\n---\n\n"

// BaseTemplate returns the instruction template for a (persona,
// language) pair, falling back to navigator/ru when the pair is
// unrecognized.
func BaseTemplate(p knowledge.Persona, language string) string {
	if tpl, ok := templates[templateKey{p, language}]; ok {
		return tpl
	}
	return templates[templateKey{knowledge.PersonaNavigator, DefaultLanguage}]
}

// Assemble builds the full system instruction. With no snippets and no
// auxiliary text the base template is returned verbatim.
func Assemble(p knowledge.Persona, language string, snippets []knowledge.Snippet, auxiliaryText string) string {
	base := BaseTemplate(p, language)
	if _, ok := templates[templateKey{p, language}]; !ok {
		language = DefaultLanguage
	}

	var b strings.Builder
	b.WriteString(base)

	if len(snippets) > 0 {
		b.WriteString("\n\n")
		b.WriteString(contextHeader(language, snippets))
		b.WriteString("\n\n")
		blocks := make([]string, len(snippets))
		for i, sn := range snippets {
			blocks[i] = fmt.Sprintf("**%s** (%s, %s)\n%s",
				sn.Title, roles.DisplayName(sn.AccessTier, language), sn.Category, sn.Content)
		}
		b.WriteString(strings.Join(blocks, blockSeparator))
	}

	if auxiliaryText != "" {
		b.WriteString("\n\n")
		b.WriteString(filesHeaders[language])
		b.WriteString("\n")
		b.WriteString(auxiliaryText)
	}

	return b.String()
}

// contextHeader names the tiers present in the snippet set so the
// model knows what access level the material represents.
func contextHeader(language string, snippets []knowledge.Snippet) string {
	var tiers []string
	seen := make(map[roles.Tier]struct{})
	for _, sn := range snippets {
		if _, ok := seen[sn.AccessTier]; ok {
			continue
		}
		seen[sn.AccessTier] = struct{}{}
		tiers = append(tiers, roles.DisplayName(sn.AccessTier, language))
	}
	return fmt.Sprintf("%s (%s):", contextHeaders[language], strings.Join(tiers, ", "))
}
