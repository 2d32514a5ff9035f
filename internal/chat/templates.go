package chat

type ResponseType string

const (
	ResponseEmergency      ResponseType = "emergency_warning"
	ResponseMedicalLimit   ResponseType = "medical_limit"
	ResponseRxLimit        ResponseType = "rx_limit"
	ResponseClinic         ResponseType = "clinic_recommendation"
	ResponseNormal         ResponseType = "normal"
	ResponseRateLimited    ResponseType = "rate_limited"
	ResponseGeneratorError ResponseType = "generator_error"
)

// Template is a fixed reply served without calling the generator.
type Template struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

const (
	EmergencyMessage = "🚨 **Atención urgente**\n\n" +
		"Según lo que describes, esto podría ser una **emergencia veterinaria**. Este chat no puede atender emergencias ni realizar valoraciones clínicas.\n\n" +
		"**Te recomiendo acudir a tu veterinario o a un servicio de urgencias veterinarias de forma inmediata.**\n\n" +
		"Podemos recomendarte los mejores veterinarios de tu zona. Solo indícanos tu código postal."

	MedicalLimitMessage = "Entiendo tu preocupación. No puedo diagnosticar, prescribir ni ajustar dosis/tratamientos.\n" +
		"Lo mejor es que tu veterinario lo valore.\n\n" +
		"Si me dices el producto que estás valorando (o el peso/especie), puedo orientarte sobre las diferencias entre opciones y su uso general según la ficha.\n\n" +
		"También podemos recomendarte los mejores veterinarios de tu zona. Solo indícanos tu código postal."

	RxLimitMessage = "Para medicamentos que requieren receta veterinaria, la indicación y la dosis deben venir de un veterinario.\n\n" +
		"Podemos recomendarte los mejores veterinarios de tu zona. Solo indícanos tu código postal."

	WelcomeMessage = "¡Hola! 👋 Soy **MIA**, tu asistente veterinario en MundoMascotix.\n\n" +
		"Te ayudo a elegir el mejor producto para tu mascota. Pregúntame sobre alimentación, antiparasitarios, higiene y más.\n\n" +
		"¿En qué puedo ayudarte?"

	SymptomTransitionMessage = "Si tu consulta está relacionada con síntomas, lo más indicado es que tu veterinario lo valore.\n\n" +
		"Si por el contrario necesitas elegir un producto (antiparasitario, dieta, higiene, etc.), dime la especie y el peso aproximado y te sugiero opciones del catálogo."

	NoClinicMessage = "¡Ups! 🐾\n\n" +
		"Todavía no hemos evaluado ninguna clínica veterinaria en tu zona para poder recomendártela con total confianza.\n\n" +
		"Si quieres, déjanos tu email y te avisamos en cuanto una clínica de tu área supere nuestro control de calidad ✅✨\n\n" +
		"Así serás el primero en enterarte."

	RateLimitedMessage = "Disculpa, estamos recibiendo muchas consultas en este momento. Por favor, inténtalo de nuevo en unos segundos."

	GeneratorErrorMessage = "Lo siento, ha ocurrido un error al procesar tu consulta. Por favor, inténtalo de nuevo."
)

var templates = map[string]string{
	string(ResponseEmergency):    EmergencyMessage,
	string(ResponseMedicalLimit): MedicalLimitMessage,
	string(ResponseRxLimit):      RxLimitMessage,
	"welcome":                    WelcomeMessage,
	"symptom_transition":         SymptomTransitionMessage,
}

// GetTemplate returns the named template, or false for an unknown name.
func GetTemplate(name string) (Template, bool) {
	message, ok := templates[name]
	if !ok {
		return Template{}, false
	}
	return Template{Type: name, Message: message}, true
}

func Welcome() Template {
	return Template{Type: "welcome", Message: WelcomeMessage}
}
