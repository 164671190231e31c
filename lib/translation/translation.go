package translation

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/leonelquinteros/gotext"
	log "github.com/sirupsen/logrus"
)

const domain = "default"

// Configure loads the catalogue for lang from dir, falling back to English when the
// language has no catalogue.
func Configure(dir, lang string) {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		lang = "en"
	}
	if _, err := os.Stat(filepath.Join(dir, lang)); err != nil {
		log.Warnf("No translations for %q in %s, using en", lang, dir)
		lang = "en"
	}
	gotext.Configure(dir, lang, domain)
}

func GetLanguage() string {
	lang := gotext.GetLanguage()

	if lang == "und" || lang == "" {
		return "en"
	}

	return lang
}

// Translate looks msgID up in the catalogue and formats it with vars. Unknown ids are
// used as the format string itself.
func Translate(msgID string, vars ...interface{}) string {
	return gotext.Get(msgID, vars...)
}
