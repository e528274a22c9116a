package originality

import (
	"context"
	"fmt"
	"strings"

	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/adapter/gemini"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/llmjson"
)

const (
	analysisPairs       = 3
	analysisTemperature = 0.1
	analysisNumCtx      = 2048
	rawAnalysisRunes    = 300
)

const analysisSystem = "Eres un evaluador académico. Analiza los fragmentos proporcionados y responde " +
	"ÚNICAMENTE con un objeto JSON válido en español, sin markdown ni texto adicional."

type Analysis struct {
	CommonThemes   []string `json:"common_themes"`
	Technologies   []string `json:"technologies"`
	Methods        []string `json:"methods"`
	Approach       string   `json:"approach"`
	ProblemOverlap string   `json:"problem_overlap"`
	Analysis       string   `json:"analysis"`
}

func analysisPrompt(title string, pairs []Pair) string {
	probe := make([]string, len(pairs))
	source := make([]string, len(pairs))
	for i, p := range pairs {
		probe[i] = fmt.Sprintf("[Fragmento %d]: %s", i+1, p.ProbeText)
		source[i] = fmt.Sprintf("[Fragmento %d]: %s", i+1, p.SourceText)
	}

	return fmt.Sprintf("TESIS EN EVALUACIÓN (fragmentos más similares):\n%s\n\n"+
		"DOCUMENTO DE REFERENCIA: %q\nFragmentos similares:\n%s\n\n"+
		"Analiza los fragmentos e identifica coincidencias académicas. "+
		"Devuelve SOLO este JSON sin markdown:\n"+
		`{"common_themes": ["tema1", "tema2"], `+
		`"technologies": ["tech1", "tech2"], `+
		`"methods": ["metodo1", "metodo2"], `+
		`"approach": "Una oración sobre el enfoque compartido.", `+
		`"problem_overlap": "Una oración: ¿resuelven el mismo problema completo o partes distintas?", `+
		`"analysis": "2-3 oraciones de análisis general de la coincidencia académica."}`,
		strings.Join(probe, "\n\n"), title, strings.Join(source, "\n\n"))
}

// analyze asks the model to compare a submission with one source using its
// best scoring pairs. Output that is not JSON is kept, shortened, as free text.
func analyze(ctx context.Context, gen Generator, title string, pairs []Pair) (Analysis, error) {
	raw, err := gen.Generate(ctx, analysisPrompt(title, pairs), gemini.GenerateOptions{
		Temperature: analysisTemperature,
		NumCtx:      analysisNumCtx,
		System:      analysisSystem,
	})
	if err != nil {
		return Analysis{}, err
	}

	var a Analysis
	if err := llmjson.Decode(raw, &a); err != nil {
		text := []rune(strings.TrimSpace(raw))
		if len(text) > rawAnalysisRunes {
			text = text[:rawAnalysisRunes]
		}
		return Analysis{Analysis: string(text)}, nil
	}
	return a, nil
}

func (m *SourceMatch) apply(a Analysis) {
	m.CommonThemes = nonNil(a.CommonThemes)
	m.Technologies = nonNil(a.Technologies)
	m.Methods = nonNil(a.Methods)
	m.Approach = a.Approach
	m.ProblemOverlap = a.ProblemOverlap
	m.LLMAnalysis = a.Analysis
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
