// Package synth implements C8, Retrieval + Answer Synthesizer: a
// temporal-filtered vector search followed by a grounded-prompt call to the
// LLM oracle. The prompt template and the "no information found" fallback
// text are carried over verbatim in meaning from the original system's
// LlamaModel._build_rag_prompt/_get_default_rag_system_prompt
// (models/llm.py), translated into Go string building.
package synth

import "strings"

const systemPrompt = "Você é um assistente especializado em regulamentação de aviação civil brasileira. " +
	"Responda sempre em português, de forma clara e precisa, citando as fontes. " +
	"Seja factual e baseie suas respostas apenas nas informações fornecidas."

// AbstentionAnswer is returned verbatim when the search (temporal-filtered
// or plain) yields zero hits, so the caller never asks the LLM oracle to hallucinate
// an answer from no context.
const AbstentionAnswer = "Não encontrei informações relevantes nos documentos disponíveis."

// LLMFailureAnswer is returned when the LLM oracle call fails or times out,
// per spec.md §7's recovery rule for LLMOracleError: "return canned fallback
// answer with retrieved sources attached" rather than failing the request.
const LLMFailureAnswer = "Não foi possível gerar uma resposta no momento, mas seguem as fontes regulatórias encontradas."

// buildContext formats each hit as "[regulation_id - Versão version]\ntext",
// joined with a blank line, matching _build_context_string.
func buildContext(hits []Hit) string {
	parts := make([]string, 0, len(hits))
	for _, h := range hits {
		header := "[" + h.RegulationID
		if h.Version != "" {
			header += " - Versão " + h.Version
		}
		header += "]"
		parts = append(parts, header+"\n"+h.Text)
	}
	return strings.Join(parts, "\n\n")
}

// buildPrompt composes the grounded user prompt from the query and the
// formatted context block.
func buildPrompt(query, context string) string {
	var b strings.Builder
	b.WriteString("Você é um assistente especializado em regulamentação de aviação civil brasileira.\n\n")
	b.WriteString("Sua tarefa é responder perguntas com base APENAS nas normas regulatórias fornecidas abaixo.\n")
	b.WriteString("Sempre cite a fonte (número da lei/regulamento e artigo) quando mencionar informações.\n\n")
	b.WriteString("Se a informação necessária para responder não estiver nas normas fornecidas, diga claramente\n")
	b.WriteString("que não encontrou a informação nos documentos disponíveis.\n\n")
	b.WriteString("=== NORMAS REGULATÓRIAS ===\n")
	b.WriteString(context)
	b.WriteString("\n\n=== PERGUNTA DO USUÁRIO ===\n")
	b.WriteString(query)
	b.WriteString("\n\n=== RESPOSTA ===\nBaseado nas normas fornecidas:\n")
	return b.String()
}
