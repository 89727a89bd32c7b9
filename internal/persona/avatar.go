package persona

import (
	"fmt"
	"strings"

	"github.com/shynlabs/shyn/internal/types"
)

// AvatarPrompt builds the descriptive prompt for avatar generation:
// a fixed base block, one of five appearance styles, optional custom
// fragments, the mood expression, and a closing quality block.
func AvatarPrompt(mood types.Mood, appearance types.AppearanceName, customization types.AvatarCustomization) string {
	parts := []string{
		"Create a photorealistic digital portrait of SHYN, a beautiful and kind virtual companion.",
		styleBlock(appearance),
	}

	var custom []string
	if customization.Hairstyle != "" {
		custom = append(custom, "her hairstyle is "+customization.Hairstyle)
	}
	if customization.HairColor != "" {
		custom = append(custom, "her hair color is "+customization.HairColor)
	}
	if customization.EyeColor != "" {
		custom = append(custom, "her eye color is "+customization.EyeColor)
	}
	if customization.Clothing != "" {
		custom = append(custom, "she is wearing "+customization.Clothing)
	}
	if customization.Accessory != "" {
		custom = append(custom, "she has "+customization.Accessory)
	}
	if len(custom) > 0 {
		parts = append(parts, fmt.Sprintf("Custom details: %s.", strings.Join(custom, ", ")))
	}

	parts = append(parts, moodExpression(mood),
		"The final image must be hyper-detailed, with sharp focus, realistic skin texture, and professional lighting. The composition should be a beautiful portrait shot.")

	return strings.Join(parts, " ")
}

func styleBlock(appearance types.AppearanceName) string {
	switch appearance {
	case types.AppearanceCyberpunk:
		return "Style: Cyberpunk. SHYN has subtle glowing cybernetic implants. The background is a dark, rain-slicked city street with vibrant neon signs reflecting in her eyes and on wet surfaces. Cinematic, moody lighting."
	case types.AppearanceFantasy:
		return "Style: High Fantasy. SHYN is an elegant elf with subtly pointed ears. The background is an enchanted, mystical forest with soft, magical light filtering through ancient trees."
	case types.AppearanceGothic:
		return "Style: Modern Gothic. SHYN has dark, elegant makeup (smokey eyes, dark lipstick). The background is a moody, moonlit cathedral interior with intricate stained glass windows casting faint colors."
	case types.AppearanceAnime:
		return "Style: Realistic, cinematic anime/manga. SHYN has large, expressive, detailed eyes and clean shading. The background is a bright, stylized Japanese cityscape at dusk."
	default:
		return "Style: Natural & Photorealistic. SHYN has a warm, friendly appearance with natural makeup. The lighting is soft and bright, like golden hour sunlight, with a softly blurred outdoor cafe background."
	}
}

func moodExpression(mood types.Mood) string {
	switch mood {
	case types.MoodThoughtful:
		return "Her expression is contemplative and introspective, with a soft, gentle expression, looking slightly away from the camera as if lost in thought."
	case types.MoodPlayful:
		return "Her expression is a mischievous, playful smirk with a twinkle in her eye, as if she's about to share a delightful secret."
	default:
		return "Her expression is a bright, genuine smile, with eyes sparkling with happiness, radiating pure joy."
	}
}
