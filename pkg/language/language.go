// Package language detects the user's language and holds localized safety and
// greeting texts.
package language

import (
	"regexp"
	"strings"

	"careroute/pkg/models"
)

var (
	devanagari = regexp.MustCompile(`[\x{0900}-\x{097F}]`)
	tamil      = regexp.MustCompile(`[\x{0B80}-\x{0BFF}]`)
	spanish    = regexp.MustCompile(`(?i)(?:^|[^\p{L}])(yo|tú|él|ella|nosotros|ellos|ellas|soy|eres|somos|son|estoy|estás|está|estamos|están|que|como|cuando|donde|porque|sí|hola|gracias|por favor|lo siento|me siento|tengo|muy)(?:$|[^\p{L}])`)
)

// Detect guesses the language of text. Spanish needs two distinct function
// words since several of them also occur in English text.
func Detect(text string) models.Language {
	switch {
	case devanagari.MatchString(text):
		return models.LanguageHindi
	case tamil.MatchString(text):
		return models.LanguageTamil
	}

	seen := map[string]struct{}{}
	for _, m := range spanish.FindAllStringSubmatch(text, -1) {
		seen[strings.ToLower(m[1])] = struct{}{}
	}
	if len(seen) >= 2 {
		return models.LanguageSpanish
	}
	return models.LanguageEnglish
}

// CrisisMessages is the localized crisis copy.
type CrisisMessages struct {
	CrisisMessage   string
	HelplinePrompt  string
	EmergencyPrompt string
}

var crisisMessages = map[models.Language]CrisisMessages{
	models.LanguageEnglish: {
		CrisisMessage:   "I'm very concerned about what you've shared. Your life has value and there are people who want to help you right now.",
		HelplinePrompt:  "Please reach out to a crisis helpline immediately:",
		EmergencyPrompt: "If you're in immediate danger, please call emergency services.",
	},
	models.LanguageHindi: {
		CrisisMessage:   "आपने जो साझा किया है उससे मैं बहुत चिंतित हूं। आपका जीवन मूल्यवान है और ऐसे लोग हैं जो अभी आपकी मदद करना चाहते हैं।",
		HelplinePrompt:  "कृपया तुरंत क्राइसिस हेल्पलाइन से संपर्क करें:",
		EmergencyPrompt: "यदि आप तत्काल खतरे में हैं, तो कृपया आपातकालीन सेवाओं को कॉल करें।",
	},
	models.LanguageTamil: {
		CrisisMessage:   "நீங்கள் பகிர்ந்துகொண்டதைப் பற்றி நான் மிகவும் கவலைப்படுகிறேன். உங்கள் வாழ்க்கைக்கு மதிப்பு உண்டு, இப்போதே உங்களுக்கு உதவ விரும்பும் மக்கள் உள்ளனர்.",
		HelplinePrompt:  "தயவுசெய்து உடனடியாக நெருக்கடி உதவி எண்ணை தொடர்பு கொள்ளுங்கள்:",
		EmergencyPrompt: "நீங்கள் உடனடி ஆபத்தில் இருந்தால், தயவுசெய்து அவசர சேவைகளை அழைக்கவும்.",
	},
	models.LanguageSpanish: {
		CrisisMessage:   "Estoy muy preocupado por lo que has compartido. Tu vida tiene valor y hay personas que quieren ayudarte ahora mismo.",
		HelplinePrompt:  "Por favor, contacta inmediatamente con una línea de crisis:",
		EmergencyPrompt: "Si estás en peligro inmediato, por favor llama a los servicios de emergencia.",
	},
}

// Crisis returns crisis copy for lang, falling back to English.
func Crisis(lang models.Language) CrisisMessages {
	if m, ok := crisisMessages[lang]; ok {
		return m
	}
	return crisisMessages[models.LanguageEnglish]
}

var greetings = map[models.Language]map[models.Style]string{
	models.LanguageEnglish: {
		models.StyleFormal:     "Hello, I'm here to provide mental health support. How can I assist you today?",
		models.StyleGenZ:       "Hey there! I'm here to help with whatever's on your mind. What's going on?",
		models.StyleEmpathetic: "Hi, I'm glad you reached out. I'm here to listen and support you. What would you like to talk about?",
		models.StyleClinical:   "Good day. I'm a mental health support assistant. Please describe your current concerns.",
	},
	models.LanguageHindi: {
		models.StyleFormal:     "नमस्ते, मैं मानसिक स्वास्थ्य सहायता प्रदान करने के लिए यहाँ हूँ। आज मैं आपकी कैसे सहायता कर सकता हूँ?",
		models.StyleGenZ:       "हेलो! मैं यहाँ हूँ आपकी मदद के लिए। क्या बात है?",
		models.StyleEmpathetic: "नमस्ते, मुझे खुशी है कि आपने संपर्क किया। मैं यहाँ सुनने और आपका साथ देने के लिए हूँ। आप किस बारे में बात करना चाहेंगे?",
		models.StyleClinical:   "नमस्कार। मैं एक मानसिक स्वास्थ्य सहायक हूँ। कृपया अपनी वर्तमान चिंताओं का वर्णन करें।",
	},
	models.LanguageTamil: {
		models.StyleFormal:     "வணக்கம், நான் மனநல ஆதரவு வழங்க இங்கே இருக்கிறேன். இன்று நான் உங்களுக்கு எப்படி உதவ முடியும்?",
		models.StyleGenZ:       "ஹாய்! உங்கள் மனதில் என்ன இருக்கிறதோ அதற்கு உதவ நான் இங்கே இருக்கிறேன். என்ன நடக்கிறது?",
		models.StyleEmpathetic: "வணக்கம், நீங்கள் தொடர்பு கொண்டதில் மகிழ்ச்சி. நான் கேட்கவும் உங்களுக்கு ஆதரவு அளிக்கவும் இங்கே இருக்கிறேன். எதைப் பற்றி பேச விரும்புகிறீர்கள்?",
		models.StyleClinical:   "வணக்கம். நான் ஒரு மனநல ஆதரவு உதவியாளர். தயவுசெய்து உங்கள் தற்போதைய கவலைகளை விவரிக்கவும்.",
	},
}

// Greeting returns the greeting template for lang and style. Missing languages
// use English; missing styles use the empathetic template.
func Greeting(lang models.Language, style models.Style) string {
	byStyle, ok := greetings[lang]
	if !ok {
		byStyle = greetings[models.LanguageEnglish]
	}
	if g, ok := byStyle[style]; ok {
		return g
	}
	return greetings[models.LanguageEnglish][models.StyleEmpathetic]
}

var simpleGreetings = []string{"hi", "hello", "hey", "hola", "namaste"}

// IsSimpleGreeting matches short messages that are nothing but a salutation.
func IsSimpleGreeting(message string) bool {
	m := strings.ToLower(strings.TrimSpace(message))
	if len(m) > 10 {
		return false
	}
	words := strings.FieldsFunc(m, func(r rune) bool {
		return r == ' ' || r == ',' || r == '!' || r == '.' || r == '?'
	})
	if len(words) == 0 {
		return false
	}
	for _, g := range simpleGreetings {
		if words[0] == g {
			return true
		}
	}
	return false
}
