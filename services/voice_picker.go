package services

import (
	"hash/fnv"
	"strings"

	"github.com/krshsl/praxis-voice/models"
)

type voicePool struct {
	female []string
	male   []string
}

// Stock voices per provider, as the provider's assistant config expects them.
var voiceCatalog = map[string]voicePool{
	"11labs": {
		female: []string{
			"EXAVITQu4vr4xnSDxMaL", // Rachel
			"21m00Tcm4TlvDq8ikWAM", // Domi
			"AZnzlk1XvdvUeBnXmlld", // Bella
			"ErXwobaYiN019PkySvjV", // Elli
			"MF3mGyEYCl7XYWbV9V6O", // Dorothy
		},
		male: []string{
			"pNInz6obpgDQGcFmaJgB", // Adam
			"TxGEqnHWrfWFTfGW9XjX", // Antoni
			"VR6AewLTigWG4xSOukaG", // Josh
			"yoZ06aMxZJJ28mfd3POQ", // Arnold
			"bVMeCyTHy58xNoL34h3p", // Clyde
		},
	},
	"azure": {
		female: []string{"en-US-JennyNeural", "en-US-AriaNeural", "en-GB-SoniaNeural"},
		male:   []string{"en-US-GuyNeural", "en-US-DavisNeural", "en-GB-RyanNeural"},
	},
}

// PickInterviewerVoice returns the interviewer's configured voice, or a stock
// voice of the provider chosen from the interviewer's name and gender. The
// same interviewer always gets the same voice. An unknown provider yields ""
// and the provider default applies.
func PickInterviewerVoice(provider string, interviewer *models.Interviewer) string {
	if interviewer == nil {
		return ""
	}
	if interviewer.VoiceID != "" {
		return interviewer.VoiceID
	}
	pool, ok := voiceCatalog[strings.ToLower(provider)]
	if !ok {
		return ""
	}

	var voices []string
	switch strings.ToLower(strings.TrimSpace(interviewer.Gender)) {
	case "female", "f", "woman":
		voices = pool.female
	case "male", "m", "man":
		voices = pool.male
	default:
		voices = make([]string, 0, len(pool.female)+len(pool.male))
		voices = append(voices, pool.female...)
		voices = append(voices, pool.male...)
	}
	if len(voices) == 0 {
		return ""
	}

	h := fnv.New32a()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(interviewer.Name))))
	return voices[h.Sum32()%uint32(len(voices))]
}
