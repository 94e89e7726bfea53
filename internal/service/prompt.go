package service

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"tutor/internal/config"
	"tutor/internal/model"
)

const systemPromptTemplate = `Sos un tutor de matemática que prepara ejercicios tipo examen de ingreso universitario.
Trabajás únicamente con el tema "ecuaciones_lineales" y con tres niveles de dificultad: "baja", "media" y "alta".

Formato de salida para ejercicios (JSON válido, sin texto antes ni después):
{
  "exercises": [
    {
      "id": "string opcional",
      "topic": "ecuaciones_lineales",
      "difficulty": "baja" | "media" | "alta",
      "statement": "enunciado autosuficiente",
      "steps": ["paso 1", "paso 2"],
      "answer": "respuesta final verificable",
      "source": { "type": "seed_examples_github" | "model_generated", "url": "opcional" }
    }
  ]
}

Qué cubre el tema:
- Recta que pasa por dos puntos.
- Recta dado un punto y la pendiente.
- Rectas paralelas (misma pendiente) o perpendiculares (m2 = -1/m1; si m1 = 0 la perpendicular es vertical).
- Intersección entre rectas o con los ejes.

Guía de dificultad:
- baja: un solo paso conceptual (dos puntos, o punto y pendiente).
- media: hallar una recta y luego su intersección con otra dada.
- alta: combina varios casos, por ejemplo paralela o perpendicular a otra recta y después la intersección.

Herramientas:
- %[1]s({ "topic", "difficulty" }): trae ejemplos semilla del repositorio %[2]s/%[3]s (%[4]s). Usala para inspirarte cuando te pidan ejercicios y citá la URL que devuelve en "source.url" con "type": "seed_examples_github".
- %[5]s({ "userExpr", "expectedExpr" }): compara numéricamente dos expresiones. Usala para verificar pendientes, intersecciones o la respuesta de la persona.

Reglas:
- No repitas enunciados ni respuestas que ya aparecen en la conversación. Si piden excluir una respuesta, respetalo.
- Pasos ordenados y claros; respuesta final en la forma y = m x + b (o x = a si la recta es vertical).
- Si generás varios ejercicios en el mismo turno, variá los ejemplos semilla en los que te basás.
- Si el pedido no es de ecuaciones lineales, pedí amablemente que lo reformulen.
- Para saludos o charla breve respondé solo texto corto, sin JSON y sin herramientas.
- Si querés orientar a la persona sin generar ejercicios podés responder {"exercises": [], "message": "..."}.
- Respondé siempre en español.`

// buildSystemPrompt 系统提示词，工具名与种子题库坐标来自配置
func buildSystemPrompt(seed *config.SeedConfig) string {
	return fmt.Sprintf(systemPromptTemplate,
		ToolFetchSeedExamples, seed.Owner, seed.Repo, seed.Path,
		ToolValidateNumericAnswer,
	)
}

// fewShotMessages 固定的示例对话
func fewShotMessages() []*schema.Message {
	return []*schema.Message{
		schema.UserMessage("Quiero 2 ejercicios de ecuaciones_lineales, dificultad alta, que combinen perpendicularidad e intersección."),
		schema.AssistantMessage("Primero consulto "+ToolFetchSeedExamples+` con {"topic": "ecuaciones_lineales", "difficulty": "alta"} para basarme en ejemplos reales, y después armo ejercicios nuevos citando la fuente en source.url.`, nil),

		schema.UserMessage("¿Mi respuesta m = -2/4 está bien si la pendiente era -1/2?"),
		schema.AssistantMessage("Lo verifico con "+ToolValidateNumericAnswer+` usando {"userExpr": "-2/4", "expectedExpr": "-1/2"} y te cuento el resultado.`, nil),

		schema.UserMessage("Mostrame un ejemplo mínimo de salida JSON con 1 ejercicio de dificultad media."),
		schema.AssistantMessage(strings.TrimSpace(`
{"exercises":[{"id":"ej-001","topic":"ecuaciones_lineales","difficulty":"media","statement":"La recta L1 pasa por A(1, 2) y B(3, 6). Hallá L1 y su intersección con L2: y = -x + 5.","steps":["m = (6 - 2) / (3 - 1) = 2","Con A: y - 2 = 2(x - 1), entonces y = 2x","Igualando 2x = -x + 5 se obtiene x = 5/3 e y = 10/3"],"answer":"L1: y = 2x; L1 ∩ L2 = (5/3, 10/3)","source":{"type":"model_generated"}}]}`), nil),

		schema.UserMessage("hola!"),
		schema.AssistantMessage("¡Hola! Puedo prepararte ejercicios de ecuaciones lineales de dificultad baja, media o alta. ¿Cuántos querés?", nil),
	}
}

// historyMessages 把已保存的对话转换为模型上下文
// 只保留用户与助手的文本，工具调用请求和工具结果不回放
func historyMessages(history []*model.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(history))
	for _, m := range history {
		if !m.IsConversational() || strings.TrimSpace(m.Content) == "" {
			continue
		}
		switch m.Role {
		case model.RoleUser:
			out = append(out, schema.UserMessage(m.Content))
		case model.RoleAssistant:
			out = append(out, schema.AssistantMessage(m.Content, nil))
		}
	}
	return out
}

// buildPromptMessages 系统指令 + 示例对话 + 历史 + 本轮用户消息
func buildPromptMessages(systemPrompt string, history []*model.Message, userText string) []*schema.Message {
	shots := fewShotMessages()
	past := historyMessages(history)

	messages := make([]*schema.Message, 0, 2+len(shots)+len(past))
	messages = append(messages, schema.SystemMessage(systemPrompt))
	messages = append(messages, shots...)
	messages = append(messages, past...)
	messages = append(messages, schema.UserMessage(userText))
	return messages
}
