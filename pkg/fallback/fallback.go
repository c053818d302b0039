// Package fallback holds the localized, user-safe strings shown when a
// pipeline step fails or an LLM call times out. Internal errors are
// never surfaced verbatim; the patient only ever sees one of these.
package fallback

// genericErrors is shown for any step failure (recoverable or
// unexpected) that doesn't have a more specific fallback.
var genericErrors = map[string]string{
	"en": "I'm sorry, I encountered an error. Please try again.",
	"es": "Lo siento, encontré un error. Por favor, intente de nuevo.",
	"ru": "Извините, произошла ошибка. Пожалуйста, попробуйте снова.",
	"he": "סליחה, אירעה שגיאה. אנא נסה שוב.",
	"pt": "Desculpe, ocorreu um erro. Por favor, tente novamente.",
}

// llmTimeoutGeneric is used when the LLM call times out and the query
// wasn't doctor-related.
var llmTimeoutGeneric = map[string]string{
	"en": "Sorry, that's taking longer than expected. Could you try again in a moment?",
	"es": "Disculpe, esto está tardando más de lo esperado. ¿Podría intentarlo de nuevo en un momento?",
	"ru": "Извините, это занимает больше времени, чем обычно. Попробуйте ещё раз через минуту.",
	"he": "סליחה, זה לוקח יותר זמן מהצפוי. אפשר לנסות שוב בעוד רגע?",
	"pt": "Desculpe, isso está demorando mais do que o esperado. Pode tentar novamente em instantes?",
}

// llmTimeoutDoctorRelated is used when the LLM call times out on a
// query that looked doctor-related. It tells the patient a doctor will
// follow up; it does not list the clinic's doctors.
var llmTimeoutDoctorRelated = map[string]string{
	"en": "I'm having trouble looking that up right now — one of our doctors will follow up with you shortly.",
	"es": "Estoy teniendo problemas para consultarlo ahora mismo; uno de nuestros doctores le responderá en breve.",
	"ru": "Сейчас не получается это проверить — один из наших врачей свяжется с вами в ближайшее время.",
	"he": "אני מתקשה לבדוק את זה כרגע — אחד הרופאים שלנו יחזור אליך בקרוב.",
	"pt": "Estou com dificuldade para verificar isso agora — um de nossos médicos entrará em contato em breve.",
}

// metaResetConfirmations confirm a meta-reset command was honored.
var metaResetConfirmations = map[string]string{
	"en": "Understood, starting fresh! What would you like to discuss?",
	"es": "Entendido, empezamos de nuevo! ¿De qué quieres hablar?",
	"ru": "Понял, начинаем с чистого листа! О чём вы хотите поговорить?",
	"he": "הבנתי, מתחילים מחדש! על מה תרצה לדבר?",
	"pt": "Entendido, começando de novo! O que você gostaria de discutir?",
}

// escalationHoldingMessages are sent immediately when a turn is escalated
// to a human, before the operator has had a chance to respond.
var escalationHoldingMessages = map[string]string{
	"en": "I've flagged this for a member of our team — they'll be with you shortly.",
	"es": "He marcado esto para un miembro de nuestro equipo; le atenderán en breve.",
	"ru": "Я передал это сотруднику нашей команды — с вами скоро свяжутся.",
	"he": "העברתי את זה לנציג מהצוות שלנו — הוא יחזור אליך בקרוב.",
	"pt": "Encaminhei isso para um membro da nossa equipe — você será atendido em breve.",
}

func lookup(table map[string]string, language string) string {
	if text, ok := table[language]; ok {
		return text
	}
	return table["en"]
}

// Generic returns the localized "something went wrong" reply.
func Generic(language string) string {
	return lookup(genericErrors, language)
}

// LLMTimeout returns the localized LLM-timeout reply, tailored for
// whether the query that timed out looked doctor-related.
func LLMTimeout(language string, doctorRelated bool) string {
	if doctorRelated {
		return lookup(llmTimeoutDoctorRelated, language)
	}
	return lookup(llmTimeoutGeneric, language)
}

// MetaResetConfirmation returns the localized "starting fresh" reply.
func MetaResetConfirmation(language string) string {
	return lookup(metaResetConfirmations, language)
}

// EscalationHolding returns the localized holding message sent when a
// turn is escalated to a human operator.
func EscalationHolding(language string) string {
	return lookup(escalationHoldingMessages, language)
}
