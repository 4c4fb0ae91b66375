package ai

import (
	"errors"
	"math/rand"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
)

// FallbackResponses are canned agronomy advisories served when the upstream
// model reports quota exhaustion.
var FallbackResponses = []string{
	"For that crop, I recommend regular irrigation every 2-3 days during the dry season. Ensure soil moisture is around 60-70% to promote healthy growth and prevent diseases.",
	"The best time to apply fertilizer is during the early morning or late evening to minimize nutrient loss. Use NPK (15-15-15) for general crops, or consult your local agricultural office for specific recommendations.",
	"To prevent common pests like leaf beetles and aphids, try companion planting with marigolds and neem. Spray neem oil solution every 10 days during peak season for best results.",
	"Your soil pH should be tested every 2 years. For most crops, aim for pH 6.5-7.5. If too acidic, add lime; if too alkaline, add sulfur gradually over the season.",
	"Crop rotation is essential! After harvesting, rotate with legumes (beans, peas) to fix nitrogen in soil. This reduces pest cycles and improves soil fertility naturally.",
	"Drip irrigation saves up to 50% water compared to flood irrigation. Install drip lines 30-40cm apart for vegetable crops and adjust timing based on local rainfall.",
	"Mulching with straw or coconut coir keeps soil cool and moist, reduces weeds by 80%, and slowly decomposes to improve soil structure. Apply 5-10cm layer around plants.",
}

// FallbackResponse picks uniformly from the pool.
func FallbackResponse() string {
	return FallbackResponses[rand.Intn(len(FallbackResponses))]
}

// IsQuotaExhausted reports whether err is a quota/rate-limit failure. The
// structured googleapi code is checked first; the substring match covers
// transports that only surface a message string.
func IsQuotaExhausted(err error) bool {
	if err == nil {
		return false
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusTooManyRequests {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "RESOURCE_EXHAUSTED")
}
