package persona

import "github.com/daosail/compass/internal/knowledge"

// quickQuestions offers conversation starters per persona and language.
// Shown by clients before the first question is asked.
var quickQuestions = map[templateKey][]string{
	{persona: knowledge.PersonaNavigator, language: "ru"}: {
		"С чего начать обучение яхтингу?",
		"Что такое курсы относительно ветра?",
		"Как читать прогноз погоды для выхода в море?",
		"Какое снаряжение нужно новичку?",
	},
	{persona: knowledge.PersonaNavigator, language: "en"}: {
		"Where do I start learning to sail?",
		"What are the points of sail?",
		"How do I read a marine weather forecast?",
		"What gear does a beginner need?",
	},
	{persona: knowledge.PersonaSkipper, language: "ru"}: {
		"Как распределить роли в экипаже?",
		"Что входит в брифинг по безопасности?",
		"Как действовать при человеке за бортом?",
		"С чего начать участие в регатах?",
	},
	{persona: knowledge.PersonaSkipper, language: "en"}: {
		"How should I assign crew roles?",
		"What goes into a safety briefing?",
		"What is the man-overboard procedure?",
		"How do I get started with racing?",
	},
}

// QuickQuestions returns the suggested starter questions for a persona
// and language. Unknown combinations fall back the same way Assemble
// does.
func QuickQuestions(p knowledge.Persona, language string) []string {
	qs, ok := quickQuestions[templateKey{persona: p, language: language}]
	if !ok {
		qs = quickQuestions[templateKey{persona: knowledge.PersonaNavigator, language: DefaultLanguage}]
	}
	out := make([]string, len(qs))
	copy(out, qs)
	return out
}
