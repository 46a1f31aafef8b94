package persona

import (
	"testing"

	"github.com/daosail/compass/internal/knowledge"
)

func TestQuickQuestions(t *testing.T) {
	tests := []struct {
		name     string
		persona  knowledge.Persona
		language string
	}{
		{"navigator ru", knowledge.PersonaNavigator, "ru"},
		{"navigator en", knowledge.PersonaNavigator, "en"},
		{"skipper ru", knowledge.PersonaSkipper, "ru"},
		{"skipper en", knowledge.PersonaSkipper, "en"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qs := QuickQuestions(tt.persona, tt.language)
			if len(qs) != 4 {
				t.Fatalf("QuickQuestions(%s, %s) = %d entries, want 4", tt.persona, tt.language, len(qs))
			}
			for i, q := range qs {
				if q == "" {
					t.Errorf("question %d is empty", i)
				}
			}
		})
	}
}

func TestQuickQuestionsFallsBack(t *testing.T) {
	def := QuickQuestions(knowledge.PersonaNavigator, DefaultLanguage)

	got := QuickQuestions(knowledge.Persona("pirate"), "fr")
	if len(got) != len(def) || got[0] != def[0] {
		t.Error("unknown persona/language should fall back to navigator defaults")
	}
}

func TestQuickQuestionsReturnsCopy(t *testing.T) {
	first := QuickQuestions(knowledge.PersonaSkipper, "en")
	first[0] = "mutated"

	second := QuickQuestions(knowledge.PersonaSkipper, "en")
	if second[0] == "mutated" {
		t.Error("callers must not be able to mutate the shared question list")
	}
}
