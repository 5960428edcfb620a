package speech

import (
	"strings"
)

// parseEspeakVoices reads `espeak-ng --voices`:
//
//	Pty Language       Age/Gender VoiceName          File          Other Languages
//	 5  en-us           --/M      English_(America)  gmw/en-US     (en 3)
func parseEspeakVoices(out string) []Voice {
	var voices []Voice
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 4 || fields[0] == "Pty" {
			continue
		}
		voices = append(voices, Voice{Name: fields[3], Locale: fields[1]})
	}
	return voices
}

// parseSayVoices reads `say -v ?`:
//
//	Bad News            en_US    # The light you see at the end of the tunnel...
func parseSayVoices(out string) []Voice {
	var voices []Voice
	for _, line := range strings.Split(out, "\n") {
		head, _, _ := strings.Cut(line, "#")
		fields := strings.Fields(head)
		if len(fields) < 2 {
			continue
		}
		voices = append(voices, Voice{
			Name:   strings.Join(fields[:len(fields)-1], " "),
			Locale: fields[len(fields)-1],
		})
	}
	return voices
}

// parseSpdVoices reads `spd-say -L`:
//
//	            NAME    LANGUAGE     VARIANT
//	English (America)      en-US        none
func parseSpdVoices(out string) []Voice {
	var voices []Voice
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 || fields[0] == "NAME" {
			continue
		}
		voices = append(voices, Voice{
			Name:   strings.Join(fields[:len(fields)-2], " "),
			Locale: fields[len(fields)-2],
		})
	}
	return voices
}

func normalizeLocale(tag string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(tag), "_", "-"))
}

// SelectVoice returns the first voice whose locale matches, or nil for the
// synthesiser default.
func SelectVoice(voices []Voice, locale string) *Voice {
	want := normalizeLocale(locale)
	if want == "" {
		return nil
	}
	for i := range voices {
		if normalizeLocale(voices[i].Locale) == want {
			v := voices[i]
			return &v
		}
	}
	return nil
}
