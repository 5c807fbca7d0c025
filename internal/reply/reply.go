// Package reply builds the user-facing Unigrow texts from conversation slots.
package reply

import (
	"strconv"
	"strings"

	"github.com/unigrow/unigrow-bot/internal/domain"
)

// Fixed replies.
const (
	Greeting = "Xin chào! 👋 Mình là trợ lý Unigrow. Mình có thể giúp gì cho bạn về chiều cao và sản phẩm Unigrow?"
	Goodbye  = "Tạm biệt bạn! Chúc bạn một ngày vui vẻ và cao lớn mỗi ngày! 😊"
	AskAge   = "Có thể cho mình biết bạn bao nhiêu tuổi?"

	ProductInfo = "Unigrow là sản phẩm hỗ trợ phát triển chiều cao tự nhiên với công thức riêng: " +
		"Canxi, Vitamin D3, Zinc, Arginine & L-Lysine. Unigrow là thực phẩm hỗ trợ, không phải thuốc."

	DefaultFallback = "Xin lỗi, mình không hiểu câu hỏi của bạn. " +
		"Bạn có thể hỏi về:\n" +
		"- Chiều cao & cách phát triển\n" +
		"- Unigrow & cách dùng\n" +
		"- Giá cả & mua hàng\n" +
		"Hoặc nhắn lại với cách hỏi khác nhé! 😊"

	PurchaseQuestion = "Bạn có muốn mua Unigrow để bắt đầu hỗ trợ phát triển chiều cao không?"

	PricingOptions = `🛍️ **GÓI UNIGROW CÓ SẴN:**

📦 **Gói Cơ Bản** - 1 Hộp (30 viên)
   Giá: 299.000đ
   Dùng được: ~1 tháng

📦📦 **Gói Tiết Kiệm** - 3 Hộp (90 viên) ⭐
   Giá: 799.000đ (Tiết kiệm 100k)
   Dùng được: ~3 tháng

📦📦📦 **Gói Tối Ưu** - 6 Hộp (180 viên) 🔥
   Giá: 1.499.000đ (Tiết kiệm 300k)
   Dùng được: ~6 tháng

💡 **Khuyến nghị:** Gói 3 hoặc 6 hộp để thấy hiệu quả tốt hơn!

Bạn muốn chọn gói nào?`
)

// NurtureSequence is the drip sequence sent to a new lead.
var NurtureSequence = []string{
	"Cảm ơn bạn đã quan tâm Unigrow! 😊",
	"Unigrow là sản phẩm hỗ trợ phát triển chiều cao với công thức riêng.",
	"Thành phần chứa Canxi, Vitamin D3, Zinc, Arginine & L-Lysine để hỗ trợ phát triển.",
	"Bạn có muốn biết thêm về cách dùng và hiệu quả không?",
	"Đặc biệt, hôm nay chúng tôi có khuyến mãi gói 3 hộp: chỉ 799k (tiết kiệm 100k)! 🔥",
}

// AgeAcknowledgement confirms a stated age.
func AgeAcknowledgement(age string) string {
	return "Bạn " + age + " tuổi - tuổi phát triển tốt! 💪"
}

// HeightAcknowledgement echoes the first height found in a message.
func HeightAcknowledgement(height string) string {
	return "Mình hiểu bạn cao khoảng " + height + "cm. Bạn muốn cao bao nhiêu nữa?"
}

// TargetAcknowledgement asks for the current height once a goal is known.
func TargetAcknowledgement(target string) string {
	return "Mục tiêu " + target + "cm, tuyệt vời! Bạn hiện cao bao nhiêu?"
}

// HeightGoal is sent once both the current and target heights are known.
func HeightGoal(current, target string) string {
	return "Vậy từ " + current + "cm muốn tới " + target + "cm. " +
		"Tôi sẽ giúp bạn! Unigrow + dinh dưỡng + tập luyện sẽ giúp bạn đạt được mục tiêu. 💯"
}

// PurchaseConfirmation restates what is known about the user before asking to buy.
func PurchaseConfirmation(s *domain.ConversationState) string {
	var parts []string
	if age := s.AgeString(); age != "" {
		parts = append(parts, "Bạn "+age+" tuổi")
	}
	if s != nil && s.Height != "" {
		parts = append(parts, "cao "+s.Height+"cm")
	}
	if s != nil && s.TargetHeight != "" {
		parts = append(parts, "muốn "+s.TargetHeight+"cm")
	}
	if len(parts) == 0 {
		return PurchaseQuestion
	}
	return "Tôi đã hiểu: " + strings.Join(parts, ", ") + ".\n\n" +
		"Unigrow sẽ hỗ trợ bạn đạt được mục tiêu này. Bạn có muốn mua không?"
}

// ProductRecommendation tailors the usage advice to the user's age.
func ProductRecommendation(s *domain.ConversationState) string {
	rec := "Unigrow phù hợp cho tất cả lứa tuổi từ 8-30 tuổi. "
	if s == nil || s.Age == nil {
		return rec
	}
	age := strconv.Itoa(*s.Age)
	switch {
	case *s.Age < 18:
		rec += "Ở tuổi " + age + ", bạn vẫn đang trong giai đoạn phát triển vàng. " +
			"Unigrow sẽ giúp bạn tối ưu hóa chiều cao trong thời kỳ này. " +
			"Khuyến nghị dùng 3-6 tháng liên tục để thấy kết quả."
	case *s.Age < 25:
		rec += "Ở tuổi " + age + ", bạn vẫn còn cơ hội phát triển. " +
			"Unigrow sẽ hỗ trợ tối đa trong giai đoạn này. " +
			"Kết hợp với ngủ đủ, dinh dưỡng, tập luyện sẽ rất hiệu quả."
	default:
		rec += "Ở tuổi " + age + ", cơ hội phát triển chiều cao còn lại thấp. " +
			"Tuy nhiên Unigrow vẫn có thể hỗ trợ, đặc biệt khi kết hợp lối sống lành mạnh."
	}
	return rec
}

// Summary lists the known slots followed by the standard advice.
func Summary(s *domain.ConversationState) string {
	var b strings.Builder
	b.WriteString("**📋 Tóm Tắt Thông Tin:**\n\n")
	if age := s.AgeString(); age != "" {
		b.WriteString("• Tuổi: " + age + " tuổi\n")
	}
	if s != nil && s.Height != "" {
		b.WriteString("• Chiều cao hiện tại: " + s.Height + "cm\n")
	}
	if s != nil && s.TargetHeight != "" {
		b.WriteString("• Chiều cao mong muốn: " + s.TargetHeight + "cm\n")
	}
	b.WriteString("\n💪 **Khuyến nghị:**\n" +
		"1. Sử dụng Unigrow 3-6 tháng liên tục\n" +
		"2. Ngủ đủ 8 giờ/ngày\n" +
		"3. Tập luyện 30 phút/ngày (đặc biệt bơi lội, bóng rổ)\n" +
		"4. Ăn đủ protein, canxi, vitamin D\n" +
		"5. Kiên trì và đừng bỏ cuộc!")
	return b.String()
}
