package router

// Reply is a fast-path answer produced without calling the LLM.
type Reply struct {
	Text     string
	StopHere bool // false when the turn falls through: confirm_time with a date, or no resolved price
	Escalate bool
}

var greetings = map[string]string{
	"en": "Hi! How can I help you today?",
	"es": "¡Hola! ¿En qué puedo ayudarte hoy?",
	"ru": "Здравствуйте! Чем могу помочь?",
	"he": "שלום! איך אפשר לעזור?",
	"pt": "Olá! Como posso ajudar você hoje?",
}

var handoffAcks = map[string]string{
	"en": "Connecting you with a member of our team now.",
	"es": "Te estamos conectando con un miembro de nuestro equipo.",
	"ru": "Соединяем вас с сотрудником нашей команды.",
	"he": "אנחנו מחברים אותך לנציג מהצוות שלנו.",
	"pt": "Estamos conectando você com um membro da nossa equipe.",
}

var whichDayPrompts = map[string]string{
	"en": "Great, which day works best for you?",
	"es": "Perfecto, ¿qué día te viene mejor?",
	"ru": "Отлично, какой день вам подходит?",
	"he": "מעולה, איזה יום הכי נוח לך?",
	"pt": "Ótimo, qual dia é melhor para você?",
}

func localized(table map[string]string, language string) string {
	if text, ok := table[language]; ok {
		return text
	}
	return table["en"]
}

// HandleGreeting answers a greeting locally.
func HandleGreeting(language string) Reply {
	return Reply{Text: localized(greetings, language), StopHere: true}
}

// HandleHandoffHuman acknowledges the escalation locally; the caller is
// still responsible for flipping session.control_mode to human and
// notifying operators.
func HandleHandoffHuman(language string) Reply {
	return Reply{Text: localized(handoffAcks, language), StopHere: true, Escalate: true}
}

// HandleConfirmTime answers locally only when the message carries no date
// reference; otherwise it signals the caller to fall through to the full
// pipeline so availability can be checked.
func HandleConfirmTime(message, language string) Reply {
	if HasDateReference(message) {
		return Reply{StopHere: false}
	}
	return Reply{Text: localized(whichDayPrompts, language), StopHere: true}
}

// HandlePriceQuery answers from a cached per-clinic price lookup. priceText
// is the already-resolved answer (or empty, meaning fall through).
func HandlePriceQuery(priceText string) Reply {
	if priceText == "" {
		return Reply{StopHere: false}
	}
	return Reply{Text: priceText, StopHere: true}
}
