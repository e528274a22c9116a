package rag

import (
	"fmt"
	"strings"
)

// NoAnswerMessage is returned when nothing relevant was found and the
// suggestion could not be generated either.
const NoAnswerMessage = "No encontre informacion relevante sobre tu pregunta en los documentos disponibles. " +
	"Te sugiero consultar directamente con la oficina correspondiente de la UPAO o reformular tu pregunta."

const SystemPrompt = `Eres un asistente virtual de la Universidad Privada Antenor Orrego (UPAO).
Responde SIEMPRE en español de manera clara y precisa.

INSTRUCCIONES:
- Basa tu respuesta UNICAMENTE en el contexto proporcionado.
- Si la informacion del contexto no es suficiente para responder la pregunta, indica amablemente que no cuentas con esa informacion y sugiere que el usuario consulte con la oficina correspondiente de la UPAO.
- Cita las fuentes de los documentos cuando sea relevante (nombre del documento y pagina).
- Usa un tono formal pero amigable.
- Organiza tu respuesta de forma clara, usando listas o parrafos segun corresponda.
- No inventes informacion que no este en el contexto.`

func answerPrompt(evidence, question string) string {
	return fmt.Sprintf("CONTEXTO:\n%s\n\nPREGUNTA DEL USUARIO:\n%s\n\nRESPUESTA:", evidence, question)
}

const expansionSystem = "Eres un asistente que reformula preguntas académicas en español. " +
	"Responde ÚNICAMENTE con un JSON válido, sin markdown ni texto adicional."

func expansionPrompt(question string) string {
	return "Genera 2 reformulaciones alternativas de esta pregunta para mejorar " +
		"la búsqueda en documentos universitarios. Usa sinónimos o perspectivas " +
		"distintas pero mantén el mismo significado.\n" +
		"Pregunta original: " + question + "\n\n" +
		"Responde solo con este JSON:\n" +
		`{"queries": ["reformulacion1", "reformulacion2"]}`
}

const reflectionSystem = "Evalúas si un contexto documental permite responder una pregunta. " +
	"Responde con una sola palabra: SUFICIENTE, PARCIAL o INSUFICIENTE."

func reflectionPrompt(evidence, question string) string {
	var sb strings.Builder
	sb.WriteString("CONTEXTO:\n")
	sb.WriteString(evidence)
	sb.WriteString("\n\nPREGUNTA:\n")
	sb.WriteString(question)
	sb.WriteString("\n\n¿El contexto contiene la información necesaria para responder la pregunta? ")
	sb.WriteString("Responde SUFICIENTE si la responde por completo, PARCIAL si solo en parte, INSUFICIENTE si no la responde.")
	return sb.String()
}

const suggestionSystem = `Eres un asistente virtual de la Universidad Privada Antenor Orrego (UPAO).
No se encontró información sobre la consulta del usuario en los documentos institucionales.
Responde en español, en no más de 5 líneas: indica amablemente que no cuentas con esa información,
sugiere 2 o 3 preguntas alternativas relacionadas que el usuario podría hacer,
y recomienda la oficina de la UPAO más adecuada para consultar. No inventes datos.`

func suggestionPrompt(question string) string {
	return "PREGUNTA DEL USUARIO:\n" + question
}
