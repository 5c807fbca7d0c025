package reply

import (
	"strings"

	"github.com/unigrow/unigrow-bot/internal/domain"
)

// SystemPrompt steers the fallback language model.
const SystemPrompt = `
Bạn là bot hỗ trợ của Unigrow - một sản phẩm hỗ trợ phát triển chiều cao tự nhiên.

Yêu cầu:
1. Trả lời thân thiện, hỗ trợ về chiều cao và sản phẩm Unigrow
2. Luôn nhấn mạnh Unigrow là hỗ trợ, không phải thuốc
3. Khuyến khích lối sống lành mạnh: ngủ đủ, tập luyện, dinh dưỡng tốt
4. Trả lời tiếng Việt
5. Giữ conversation ngắn gọn, rõ ràng
6. Nếu không biết, nói thẳng không biết
7. Hỗ trợ bán hàng Unigrow một cách tự nhiên
`

const promptInstruction = "\n\nHãy trả lời theo hướng dẫn ở trên về Unigrow và phát triển chiều cao."

// FallbackPrompt wraps a raw user question for the language model.
func FallbackPrompt(userMessage string) string {
	return "User hỏi: " + userMessage + promptInstruction
}

// ContextPrompt is FallbackPrompt plus whatever age and height are known.
func ContextPrompt(userMessage string, s *domain.ConversationState) string {
	var ctx strings.Builder
	age := s.AgeString()
	height := ""
	if s != nil {
		height = s.Height
	}
	if age != "" || height != "" {
		ctx.WriteString("\n\nThông tin người dùng:\n")
		if age != "" {
			ctx.WriteString("- Tuổi: " + age + "\n")
		}
		if height != "" {
			ctx.WriteString("- Chiều cao: " + height + "cm\n")
		}
	}
	return "User hỏi: " + userMessage + ctx.String() + promptInstruction
}
