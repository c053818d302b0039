// Package router classifies an inbound message into an intent and, for a
// handful of intents, answers it without ever touching the LLM.
package router

import "regexp"

// Intent is the classified purpose of an inbound message.
type Intent string

const (
	IntentGreeting        Intent = "greeting"
	IntentHandoffHuman    Intent = "handoff_human"
	IntentConfirmTime     Intent = "confirm_time"
	IntentBookAppointment Intent = "book_appointment"
	IntentReschedule      Intent = "reschedule"
	IntentCancel          Intent = "cancel"
	IntentPriceQuery      Intent = "price_query"
	IntentFAQQuery        Intent = "faq_query"
	IntentUnknown         Intent = "unknown"
)

// fastHandled is the set of intents the router can answer locally when
// fast-path is enabled; a handler may still fall through (see Reply.StopHere).
var fastHandled = map[Intent]bool{
	IntentGreeting:     true,
	IntentHandoffHuman: true,
	IntentConfirmTime:  true,
	IntentPriceQuery:   true,
}

// HasFastHandler reports whether intent can be answered without the LLM.
func HasFastHandler(intent Intent) bool {
	return fastHandled[intent]
}

type pattern struct {
	intent Intent
	re     *regexp.Regexp
}

// Order matters: more specific patterns are listed before general ones so
// a message matching several cues resolves to the most actionable intent.
var patternsByLanguage = map[string][]pattern{
	"en": {
		{IntentHandoffHuman, regexp.MustCompile(`(?i)\b(human|agent|representative|real person|speak to someone)\b`)},
		{IntentCancel, regexp.MustCompile(`(?i)\bcancel\b`)},
		{IntentReschedule, regexp.MustCompile(`(?i)\b(reschedule|change my appointment|move my appointment)\b`)},
		{IntentConfirmTime, regexp.MustCompile(`(?i)\b(yes that works|that time works|confirm|works for me|sounds good)\b`)},
		{IntentPriceQuery, regexp.MustCompile(`(?i)\b(how much|price|cost|fee)\b`)},
		{IntentBookAppointment, regexp.MustCompile(`(?i)\b(book|schedule|appointment|make an appointment)\b`)},
		{IntentFAQQuery, regexp.MustCompile(`(?i)\b(hours|address|location|parking|insurance)\b`)},
		{IntentGreeting, regexp.MustCompile(`(?i)^\s*(hi|hello|hey|good (morning|afternoon|evening))\b`)},
	},
	"es": {
		{IntentHandoffHuman, regexp.MustCompile(`(?i)\b(humano|agente|persona real|hablar con alguien)\b`)},
		{IntentCancel, regexp.MustCompile(`(?i)\bcancelar\b`)},
		{IntentReschedule, regexp.MustCompile(`(?i)\b(reprogramar|cambiar mi cita)\b`)},
		{IntentConfirmTime, regexp.MustCompile(`(?i)\b(s[ií] me sirve|confirmo|me funciona|perfecto)\b`)},
		{IntentPriceQuery, regexp.MustCompile(`(?i)\b(cu[aá]nto cuesta|precio|costo)\b`)},
		{IntentBookAppointment, regexp.MustCompile(`(?i)\b(reservar|agendar|cita)\b`)},
		{IntentFAQQuery, regexp.MustCompile(`(?i)\b(horario|direcci[oó]n|ubicaci[oó]n|estacionamiento|seguro)\b`)},
		{IntentGreeting, regexp.MustCompile(`(?i)^\s*(hola|buenos d[ií]as|buenas tardes|buenas noches)\b`)},
	},
	"ru": {
		{IntentHandoffHuman, regexp.MustCompile(`(?i)(человек|оператор|живой человек|поговорить с кем)`)},
		{IntentCancel, regexp.MustCompile(`(?i)отмен`)},
		{IntentReschedule, regexp.MustCompile(`(?i)(перенести|перенос запис)`)},
		{IntentConfirmTime, regexp.MustCompile(`(?i)(подтверждаю|мне подходит|хорошо, подходит)`)},
		{IntentPriceQuery, regexp.MustCompile(`(?i)(сколько стоит|цена|стоимость)`)},
		{IntentBookAppointment, regexp.MustCompile(`(?i)(записаться|запись на прием|забронировать)`)},
		{IntentFAQQuery, regexp.MustCompile(`(?i)(часы работы|адрес|парковка|страховк)`)},
		{IntentGreeting, regexp.MustCompile(`(?i)^\s*(привет|здравствуйте|добрый день)`)},
	},
	"he": {
		{IntentHandoffHuman, regexp.MustCompile(`(?i)(נציג|אדם אמיתי|לדבר עם מישהו)`)},
		{IntentCancel, regexp.MustCompile(`(?i)לבטל`)},
		{IntentReschedule, regexp.MustCompile(`(?i)לשנות תור`)},
		{IntentConfirmTime, regexp.MustCompile(`(?i)(מאשר|מתאים לי|בסדר גמור)`)},
		{IntentPriceQuery, regexp.MustCompile(`(?i)(כמה עולה|מחיר|עלות)`)},
		{IntentBookAppointment, regexp.MustCompile(`(?i)(לקבוע תור|להזמין תור)`)},
		{IntentFAQQuery, regexp.MustCompile(`(?i)(שעות פתיחה|כתובת|חניה|ביטוח)`)},
		{IntentGreeting, regexp.MustCompile(`(?i)^\s*(שלום|היי|בוקר טוב)`)},
	},
	"pt": {
		{IntentHandoffHuman, regexp.MustCompile(`(?i)\b(humano|atendente|pessoa real|falar com algu[eé]m)\b`)},
		{IntentCancel, regexp.MustCompile(`(?i)\bcancelar\b`)},
		{IntentReschedule, regexp.MustCompile(`(?i)\b(reagendar|mudar minha consulta)\b`)},
		{IntentConfirmTime, regexp.MustCompile(`(?i)\b(confirmo|me atende|perfeito, serve)\b`)},
		{IntentPriceQuery, regexp.MustCompile(`(?i)\b(quanto custa|pre[cç]o|valor)\b`)},
		{IntentBookAppointment, regexp.MustCompile(`(?i)\b(agendar|marcar consulta)\b`)},
		{IntentFAQQuery, regexp.MustCompile(`(?i)\b(hor[aá]rio|endere[cç]o|estacionamento|seguro)\b`)},
		{IntentGreeting, regexp.MustCompile(`(?i)^\s*(ol[aá]|bom dia|boa tarde|boa noite)\b`)},
	},
}

var datePattern = regexp.MustCompile(`(?i)\b(\d{1,2}[/.\-]\d{1,2}|mon|tue|wed|thu|fri|sat|sun|tomorrow|today|lunes|martes|mi[eé]rcoles|jueves|viernes|s[aá]bado|domingo|понедельник|вторник|среда|четверг|пятниц|суббот|воскресенье)\b`)

// Classify maps message (already language-detected) to an Intent. Falls
// back to the English pattern set for languages without a dedicated one.
func Classify(message, language string) Intent {
	patterns := patternsByLanguage[language]
	if patterns == nil {
		patterns = patternsByLanguage["en"]
	}
	for _, p := range patterns {
		if p.re.MatchString(message) {
			return p.intent
		}
	}
	return IntentUnknown
}

// HasDateReference reports whether message contains a recognizable date
// or weekday token, used to decide whether confirm_time can be answered
// locally or must fall through to the full pipeline.
func HasDateReference(message string) bool {
	return datePattern.MatchString(message)
}
