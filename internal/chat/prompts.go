package chat

// Instruction sentences appended to the backend-facing query so the model
// answers in the reader's language. These never appear in the transcript.
var queryInstructions = map[string]string{
	"en": " Please answer in English.",
	"fr": " Réponds en français, s'il te plaît.",
	"ar": " الرجاء الإجابة باللغة العربية.",
}

const defaultQueryInstruction = " Please answer in the same language as the question."

func queryInstruction(locale string) string {
	if s, ok := queryInstructions[locale]; ok {
		return s
	}
	return defaultQueryInstruction
}

// QuickPrompt is a predefined one-click prompt shown on the empty state of
// a chat or quiz view. Key is stable across locales.
type QuickPrompt struct {
	Key  string
	Text string
}

var chatPrompts = map[string][]QuickPrompt{
	"en": {
		{Key: "explain", Text: "Explain a concept from my course"},
		{Key: "homework", Text: "Help me with my homework"},
		{Key: "summarize", Text: "Summarize my document"},
		{Key: "revise", Text: "Help me revise for an exam"},
	},
	"fr": {
		{Key: "explain", Text: "Explique-moi un concept de mon cours"},
		{Key: "homework", Text: "Aide-moi avec mes devoirs"},
		{Key: "summarize", Text: "Résume mon document"},
		{Key: "revise", Text: "Aide-moi à réviser pour un examen"},
	},
	"ar": {
		{Key: "explain", Text: "اشرح لي مفهوماً من درسي"},
		{Key: "homework", Text: "ساعدني في واجباتي المنزلية"},
		{Key: "summarize", Text: "لخص لي مستندي"},
		{Key: "revise", Text: "ساعدني في المراجعة للامتحان"},
	},
}

var quizPrompts = map[string][]QuickPrompt{
	"en": {
		{Key: "generate10", Text: "Generate 10 questions from my documents"},
		{Key: "fromDocument", Text: "Create a quiz from a specific document"},
		{Key: "quick5min", Text: "Quick 5-minute quiz"},
		{Key: "advanced", Text: "Advanced difficulty quiz"},
		{Key: "trueFalse", Text: "True or false questions only"},
		{Key: "mixed", Text: "Mixed question types"},
	},
	"fr": {
		{Key: "generate10", Text: "Génère 10 questions à partir de mes documents"},
		{Key: "fromDocument", Text: "Crée un QCM à partir d'un document précis"},
		{Key: "quick5min", Text: "QCM rapide de 5 minutes"},
		{Key: "advanced", Text: "QCM de niveau avancé"},
		{Key: "trueFalse", Text: "Questions vrai ou faux uniquement"},
		{Key: "mixed", Text: "Types de questions variés"},
	},
	"ar": {
		{Key: "generate10", Text: "أنشئ 10 أسئلة من مستنداتي"},
		{Key: "fromDocument", Text: "أنشئ اختباراً من مستند محدد"},
		{Key: "quick5min", Text: "اختبار سريع لمدة 5 دقائق"},
		{Key: "advanced", Text: "اختبار بمستوى متقدم"},
		{Key: "trueFalse", Text: "أسئلة صح أو خطأ فقط"},
		{Key: "mixed", Text: "أنواع أسئلة متنوعة"},
	},
}

// ChatQuickPrompts returns the chat view's quick prompts for a locale,
// falling back to English.
func ChatQuickPrompts(locale string) []QuickPrompt {
	if prompts, ok := chatPrompts[locale]; ok {
		return prompts
	}
	return chatPrompts["en"]
}

// QuizQuickPrompts returns the quiz view's quick prompts for a locale,
// falling back to English.
func QuizQuickPrompts(locale string) []QuickPrompt {
	if prompts, ok := quizPrompts[locale]; ok {
		return prompts
	}
	return quizPrompts["en"]
}
