package filter

// defaultWords covers common English and Russian profanity.
var defaultWords = []string{
	// en
	"arse", "arsehole", "asshole", "bastard", "bitch", "bollocks", "bullshit",
	"cock", "crap", "cunt", "dick", "dickhead", "fuck", "fucked", "fucker",
	"fucking", "motherfucker", "piss", "prick", "shit", "shitty", "slut",
	"twat", "wanker", "whore",
	// ru
	"бля", "блядь", "блять", "говно", "дерьмо", "ебать", "ёбаный", "мудак",
	"пидор", "пизда", "сука", "хер", "хуй", "хуйня", "шлюха",
}

// DefaultWords returns a copy of the built-in dictionary.
func DefaultWords() []string {
	return append([]string(nil), defaultWords...)
}
