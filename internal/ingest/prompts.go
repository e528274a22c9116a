package ingest

import (
	"fmt"
	"strings"

	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/features/category"
)

const categorizeSystem = "Eres un clasificador de documentos académicos universitarios. " +
	"Debes responder ÚNICAMENTE con un objeto JSON válido, sin markdown ni texto adicional."

func categorizePrompt(title, sample string, cats []category.Category) string {
	var list strings.Builder
	for _, c := range cats {
		fmt.Fprintf(&list, "- ID: %s | Nombre: %s", c.ID, c.Name)
		if c.Description != "" {
			fmt.Fprintf(&list, " | Descripción: %s", c.Description)
		}
		list.WriteString("\n")
	}

	return fmt.Sprintf("TÍTULO DEL DOCUMENTO: %s\n\n"+
		"CONTENIDO (primeros %d caracteres):\n%s\n\n"+
		"CATEGORÍAS DISPONIBLES:\n%s\n"+
		"Elige la categoría más adecuada para este documento. "+
		"Si ninguna categoría aplica, usa \"ninguna\". "+
		"Responde SOLO con este JSON:\n"+
		`{"category_id": "<id exacto de la categoría o ninguna>"}`,
		title, categorizeSampleRunes, sample, list.String())
}

const summarySystem = "Eres un asistente que resume documentos institucionales universitarios en español. " +
	"Escribe un resumen breve y factual, sin inventar información."

func summaryPrompt(title, excerpt string) string {
	return fmt.Sprintf("DOCUMENTO: %s\n\nEXTRACTO:\n%s\n\n"+
		"Resume en un párrafo de 3 a 5 oraciones de qué trata el documento, "+
		"a quién está dirigido y qué temas principales cubre.", title, excerpt)
}
